package resolution

import (
	"fmt"

	"github.com/turtacn/entigo/internal/config"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/entigo/internal/intelligence/detectors"
	"github.com/turtacn/entigo/internal/intelligence/entity_detect"
	"github.com/turtacn/entigo/internal/intelligence/valueexpr"
	"github.com/turtacn/entigo/pkg/errors"
)

var _ entity_detect.Metrics = (*prometheus.EngineMetrics)(nil)

// BuildEngine registers every detector declared in cfg, in order, on a new
// engine.  Any misconfiguration aborts with ErrCodeDetectorMisconfigured.
func BuildEngine(cfg *config.Config, logger logging.Logger, metrics entity_detect.Metrics) (*entity_detect.Engine, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	opts := []entity_detect.EngineOption{
		entity_detect.WithLogger(logger.Named("engine")),
		entity_detect.WithConfig(cfg.Engine),
	}
	if metrics != nil {
		opts = append(opts, entity_detect.WithMetrics(metrics))
	}
	engine := entity_detect.NewEngine(opts...)

	for i, d := range cfg.Detectors {
		if err := register(engine, d, logger); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDetectorMisconfigured, "invalid detector configuration").
				WithDetail(fmt.Sprintf("detectors[%d] name=%s", i, d.Name))
		}
	}

	logger.Info("entity engine built",
		logging.Strings("detectors", engine.Detectors()),
		logging.Int("max_iterations", cfg.Engine.MaxIterations))
	return engine, nil
}

func register(engine *entity_detect.Engine, d config.DetectorConfig, logger logging.Logger) error {
	if d.Builtin != "" {
		det, ok := detectors.Lookup(d.Builtin)
		if !ok {
			return errors.Misconfigured("unknown builtin detector").
				WithDetailf("builtin=%s known=%v", d.Builtin, detectors.Names())
		}
		return engine.Register(d.Name, det, entity_detect.Options{
			Anonymize:    d.Anonymize,
			Dependencies: d.Dependencies,
		})
	}

	opts := entity_detect.Options{
		Anonymize:         d.Anonymize,
		ExtractValueFrom:  d.ExtractValue,
		MatchWholeWords:   d.MatchWholeWords,
		ReplaceDiacritics: d.ReplaceDiacritics,
	}
	if d.ValueExpr != "" {
		expr, err := valueexpr.Compile(d.Name, d.ValueExpr)
		if err != nil {
			return err
		}
		opts.ExtractValue = expr.Extractor(logger.Named("valueexpr"))
	}
	return engine.RegisterRegexp(d.Name, d.Pattern, opts)
}

//Personal.AI order the ending
