package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/entigo/internal/application/resolution"
	"github.com/turtacn/entigo/internal/intelligence/entity_detect"
	"github.com/turtacn/entigo/pkg/types/entity"
)

func newResolveCmd() *cobra.Command {
	var (
		expect []string
		single string
	)
	cmd := &cobra.Command{
		Use:   "resolve TEXT...",
		Short: "Resolve entities in an utterance",
		Long: "Resolve runs all detectors over TEXT and prints the anonymised text with\n" +
			"the final entities.  With --entity only raw entities of that detector\n" +
			"(and its dependencies) are printed.",
		Example: "  entigo resolve \"my email is a@b.com\"\n" +
			"  entigo resolve --expect PRICE \"order 100 czk\"\n" +
			"  entigo resolve --entity NUMBER -o table \"call 42\"",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")

			if single != "" {
				ents, err := cliCtx.Service.Entities(cmd.Context(), &resolution.EntitiesInput{
					Text:             text,
					ExpectedEntities: expect,
					Entity:           single,
				})
				if err != nil {
					return err
				}
				if ents == nil {
					ents = []entity.Entity{}
				}
				return PrintResult(cmd, entitiesView(ents))
			}

			out, err := cliCtx.Service.Resolve(cmd.Context(), &resolution.ResolveInput{
				Text:             text,
				ExpectedEntities: expect,
			})
			if err != nil {
				return err
			}
			return PrintResult(cmd, resultView(out.Result))
		},
	}
	cmd.Flags().StringArrayVarP(&expect, "expect", "e", nil, "expected entity name (repeatable)")
	cmd.Flags().StringVar(&single, "entity", "", "extract raw entities of one detector")
	return cmd
}

func newValueCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "value NAME TEXT...",
		Short:   "Print the value of the first NAME entity in TEXT",
		Example: "  entigo value PRICE \"100 czk\"",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			v, err := cliCtx.Service.Value(cmd.Context(), &resolution.ValueInput{
				Entity: args[0],
				Text:   strings.Join(args[1:], " "),
			})
			if err != nil {
				return err
			}
			return PrintResult(cmd, valueView{Entity: args[0], Value: v})
		},
	}
}

func newDepsCmd() *cobra.Command {
	var known, unknown bool
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "List entities that detectors depend on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			filter := entity_detect.AllDependencies
			switch {
			case known:
				filter = entity_detect.KnownDependencies
			case unknown:
				filter = entity_detect.UnknownDependencies
			}
			deps := cliCtx.Service.Dependencies(filter)
			if deps == nil {
				deps = []string{}
			}
			return PrintResult(cmd, depsView(deps))
		},
	}
	cmd.Flags().BoolVar(&known, "known", false, "only dependencies with a registered detector")
	cmd.Flags().BoolVar(&unknown, "unknown", false, "only dependencies without a registered detector")
	cmd.MarkFlagsMutuallyExclusive("known", "unknown")
	return cmd
}

func newDetectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detectors",
		Short: "List registered detectors in scheduling order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return PrintResult(cmd, detectorsView(cliCtx.Service.Detectors()))
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "entigo %s (commit: %s, built: %s)\n", Version, GitCommit, BuildDate)
			return err
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

var entityHeaders = []string{"ENTITY", "START", "END", "TEXT", "VALUE", "SCORE"}

func entityRow(e entity.Entity) []string {
	return []string{
		e.Entity,
		strconv.Itoa(e.Start),
		strconv.Itoa(e.End),
		e.Text,
		formatValue(e.Value),
		strconv.FormatFloat(e.Score, 'f', 2, 64),
	}
}

func formatValue(v interface{}) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}

type resultView entity.Result

func (r resultView) String() string {
	var sb strings.Builder
	sb.WriteString(r.Text)
	for _, e := range r.Entities {
		fmt.Fprintf(&sb, "\n  %s [%d:%d] %q value=%s", e.Entity, e.Start, e.End, e.Text, formatValue(e.Value))
	}
	return sb.String()
}

func (r resultView) TableHeaders() []string { return entityHeaders }

func (r resultView) TableRows() [][]string {
	rows := make([][]string, len(r.Entities))
	for i, e := range r.Entities {
		rows[i] = entityRow(e)
	}
	return rows
}

type entitiesView []entity.Entity

func (v entitiesView) String() string {
	if len(v) == 0 {
		return "no entities found"
	}
	lines := make([]string, len(v))
	for i, e := range v {
		lines[i] = fmt.Sprintf("%s [%d:%d] %q value=%s", e.Entity, e.Start, e.End, e.Text, formatValue(e.Value))
	}
	return strings.Join(lines, "\n")
}

func (v entitiesView) TableHeaders() []string { return entityHeaders }

func (v entitiesView) TableRows() [][]string {
	rows := make([][]string, len(v))
	for i, e := range v {
		rows[i] = entityRow(e)
	}
	return rows
}

type valueView struct {
	Entity string      `json:"entity"`
	Value  interface{} `json:"value"`
}

func (v valueView) String() string { return formatValue(v.Value) }

func (v valueView) TableHeaders() []string { return []string{"ENTITY", "VALUE"} }

func (v valueView) TableRows() [][]string { return [][]string{{v.Entity, formatValue(v.Value)}} }

type depsView []string

func (v depsView) String() string { return strings.Join(v, "\n") }

func (v depsView) TableHeaders() []string { return []string{"DEPENDENCY"} }

func (v depsView) TableRows() [][]string {
	rows := make([][]string, len(v))
	for i, d := range v {
		rows[i] = []string{d}
	}
	return rows
}

type detectorsView []resolution.DetectorInfo

func (v detectorsView) String() string {
	lines := make([]string, len(v))
	for i, d := range v {
		line := d.Name
		if len(d.Dependencies) > 0 {
			line += " <- " + strings.Join(d.Dependencies, ", ")
		}
		if d.Anonymize {
			line += " (anonymized)"
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func (v detectorsView) TableHeaders() []string { return []string{"NAME", "DEPENDENCIES", "ANONYMIZE"} }

func (v detectorsView) TableRows() [][]string {
	rows := make([][]string, len(v))
	for i, d := range v {
		rows[i] = []string{d.Name, strings.Join(d.Dependencies, ","), strconv.FormatBool(d.Anonymize)}
	}
	return rows
}

//Personal.AI order the ending
