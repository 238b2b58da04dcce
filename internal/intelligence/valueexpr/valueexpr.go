// Package valueexpr compiles CEL expressions that compute entity values for
// regex detectors declared in configuration.
//
// An expression sees two variables:
//
//	match     list(string)             whole match followed by the capture groups
//	entities  list(map(string, dyn))   dependency entities inside the match
//
// Each entity map carries the keys entity, start, end, text, score, value.
//
//	double(match[1]) * 100
//	entities.size() > 0 ? entities[0].value : match[0]
package valueexpr

import (
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/internal/intelligence/entity_detect"
	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/entity"
)

// Expression is a compiled value expression.  It is safe for concurrent use.
type Expression struct {
	Name       string
	Expression string
	program    cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("match", cel.ListType(cel.StringType)),
		cel.Variable("entities", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
	)
}

// Compile parses and checks expression.  name is the entity the expression
// belongs to and only appears in errors.
func Compile(name, expression string) (*Expression, error) {
	if name == "" {
		return nil, errors.New(errors.ErrCodeValueExpression, "value expression needs an entity name")
	}
	if expression == "" {
		return nil, errors.New(errors.ErrCodeValueExpression, "value expression must not be empty").WithDetailf("entity=%s", name)
	}

	env, err := newEnv()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "error creating CEL environment")
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrap(issues.Err(), errors.ErrCodeValueExpression, "error compiling value expression").
			WithDetailf("entity=%s expression=%s", name, expression)
	}
	p, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValueExpression, "error creating value program").
			WithDetailf("entity=%s", name)
	}
	return &Expression{Name: name, Expression: expression, program: p}, nil
}

// Eval runs the expression against one regex match.
func (x *Expression) Eval(groups []string, ents []entity.Entity) (interface{}, error) {
	list := make([]map[string]interface{}, len(ents))
	for i, e := range ents {
		list[i] = map[string]interface{}{
			"entity": e.Entity,
			"start":  e.Start,
			"end":    e.End,
			"text":   e.Text,
			"score":  e.Score,
			"value":  e.Value,
		}
	}
	if groups == nil {
		groups = []string{}
	}

	out, _, err := x.program.Eval(map[string]interface{}{
		"match":    groups,
		"entities": list,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValueExpression, "error evaluating value expression").
			WithDetailf("entity=%s", x.Name)
	}
	return native(out)
}

func native(v ref.Val) (interface{}, error) {
	switch v.(type) {
	case traits.Lister:
		return v.ConvertToNative(reflect.TypeOf([]interface{}{}))
	case traits.Mapper:
		return v.ConvertToNative(reflect.TypeOf(map[string]interface{}{}))
	default:
		return v.Value(), nil
	}
}

// Extractor adapts x to a regex value extractor.  Evaluation errors are
// logged and yield a nil value.
func (x *Expression) Extractor(logger logging.Logger) entity_detect.ValueExtractor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(groups []string, ents []entity.Entity) interface{} {
		v, err := x.Eval(groups, ents)
		if err != nil {
			logger.WithError(err).Warn("value expression failed",
				logging.String("entity", x.Name),
				logging.String("expression", x.Expression),
			)
			return nil
		}
		return v
	}
}

//Personal.AI order the ending
