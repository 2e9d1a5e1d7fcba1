package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/TechIntel/internal/application/comparison"
	"github.com/turtacn/TechIntel/internal/application/tracking"
	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/pkg/errors"
)

// Payload sources accepted by compare --source.
const (
	SourceFile    = "file"
	SourceBackend = "backend"
	SourceMinIO   = "minio"
	SourceNeo4j   = "neo4j"
)

type compareOptions struct {
	metric          string
	source          string
	fromYear        int
	toYear          int
	nodeTypes       []string
	createIfMissing bool
}

// lister is implemented by sources that can enumerate their technologies.
type lister interface {
	List(ctx context.Context) ([]string, error)
}

// NewCompareCmd creates the compare command.
func NewCompareCmd(deps CommandDependencies) *cobra.Command {
	opts := &compareOptions{}

	cmd := &cobra.Command{
		Use:   "compare [file|technology]...",
		Short: "Compare technologies on one metric",
		Long: `Compare technologies on one metric: trend, patents, investment, market, kg or narrative.

With the default file source every argument is a payload JSON file, named after the
file unless given as name=path.  The backend, minio and neo4j sources take technology
names; minio compares every stored technology when no name is given.`,
		Example: `  techintel compare --metric trend quantum.json robotics.json
  techintel compare --metric patents --from-year 2021 q=quantum.json r=robotics.json
  techintel compare --metric kg --source neo4j --node-type organization quantum robotics
  techintel compare --metric narrative --source backend quantum robotics -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, deps, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.metric, "metric", "m", "", "metric: trend|patents|investment|market|kg|narrative (required)")
	f.StringVarP(&opts.source, "source", "s", SourceFile, "payload source: file|backend|minio|neo4j")
	f.IntVar(&opts.fromYear, "from-year", 0, "first year of trend and patent rows")
	f.IntVar(&opts.toYear, "to-year", 0, "last year of trend and patent rows")
	f.StringSliceVar(&opts.nodeTypes, "node-type", nil, "keep only these knowledge-graph node types")
	f.BoolVar(&opts.createIfMissing, "create", false, "ask the backend to create technologies it does not know")
	_ = cmd.MarkFlagRequired("metric")

	return cmd
}

func runCompare(cmd *cobra.Command, deps CommandDependencies, opts *compareOptions, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	metric, err := comparison.ParseMetric(opts.metric)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if cliCtx.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cliCtx.Timeout)
		defer cancel()
	}

	snap, err := loadSnapshot(ctx, cliCtx, deps, opts, args)
	if err != nil {
		return err
	}

	svc := comparison.NewService(comparison.Options{
		StaleAfter:      cliCtx.Config.Compare.StaleAfter,
		MaxTechnologies: cliCtx.Config.Compare.MaxTechnologies,
	}, cliCtx.Logger)

	res, err := svc.Compare(ctx, comparison.Request{
		Metric:   metric,
		Snapshot: snap,
		Filter: comparison.Filter{
			FromYear:  opts.fromYear,
			ToYear:    opts.toYear,
			NodeTypes: opts.nodeTypes,
		},
	})
	if err != nil {
		return err
	}
	if strings.EqualFold(cliCtx.OutputFormat, "json") {
		return printJSON(cmd, res)
	}
	return PrintResult(cmd, resultView{res})
}

func loadSnapshot(ctx context.Context, cliCtx *CLIContext, deps CommandDependencies, opts *compareOptions, args []string) (payload.Snapshot, error) {
	switch strings.ToLower(opts.source) {
	case "", SourceFile:
		return loadFiles(args)

	case SourceBackend:
		if len(args) == 0 {
			return payload.Snapshot{}, errors.New(errors.ErrCodeBadRequest, "technology names are required")
		}
		if deps.NewBackend == nil {
			return payload.Snapshot{}, notConfigured("backend source")
		}
		backend, err := deps.NewBackend(cliCtx.Config, cliCtx.Logger)
		if err != nil {
			return payload.Snapshot{}, err
		}
		create := opts.createIfMissing || cliCtx.Config.Backend.CreateIfMissing
		return tracking.FetchAll(ctx, backend, create, args...)

	case SourceMinIO, SourceNeo4j:
		if deps.OpenSource == nil {
			return payload.Snapshot{}, notConfigured(opts.source + " source")
		}
		src, release, err := deps.OpenSource(ctx, strings.ToLower(opts.source), cliCtx.Config, cliCtx.Logger)
		if err != nil {
			return payload.Snapshot{}, err
		}
		if release != nil {
			defer release()
		}
		names := args
		if len(names) == 0 {
			l, ok := src.(lister)
			if !ok {
				return payload.Snapshot{}, errors.New(errors.ErrCodeBadRequest, "technology names are required")
			}
			if names, err = l.List(ctx); err != nil {
				return payload.Snapshot{}, err
			}
		}
		return src.LoadSnapshot(ctx, names...)
	}
	return payload.Snapshot{}, errors.Newf(errors.ErrCodeBadRequest, "unknown source %q", opts.source)
}

// loadFiles reads one payload per argument.  An argument is either a path,
// named after its base name without extension, or name=path.  A file that
// cannot be read or decoded is skipped unless every file fails.
func loadFiles(args []string) (payload.Snapshot, error) {
	if len(args) == 0 {
		return payload.Snapshot{}, errors.New(errors.ErrCodeBadRequest, "at least one payload file is required")
	}

	names := make([]string, len(args))
	loaded := make([]payload.Payload, len(args))
	errs := make([]error, len(args))
	seen := make(map[string]bool, len(args))
	for i, arg := range args {
		name, path := splitFileArg(arg)
		if name == "" {
			return payload.Snapshot{}, errors.Newf(errors.ErrCodeValidation, "no technology name in %q", arg)
		}
		if seen[name] {
			return payload.Snapshot{}, errors.New(errors.ErrCodeDuplicateTechnology, "technology given twice").WithDetail(name)
		}
		seen[name] = true
		names[i] = name

		data, err := os.ReadFile(path)
		if err != nil {
			errs[i] = errors.Wrap(err, errors.ErrCodeBadRequest, "read payload file").WithDetail(path)
			continue
		}
		if loaded[i], err = payload.Decode(data); err != nil {
			errs[i] = errors.Wrap(err, errors.ErrCodePayloadDecodeFailed, "decode payload file").WithDetail(path)
		}
	}
	return payload.Collect(names, loaded, errs)
}

func splitFileArg(arg string) (name, path string) {
	if i := strings.Index(arg, "="); i > 0 {
		return strings.TrimSpace(arg[:i]), arg[i+1:]
	}
	base := filepath.Base(arg)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base))), arg
}

// ─────────────────────────────────────────────────────────────────────────────
// Result rendering
// ─────────────────────────────────────────────────────────────────────────────

// resultView renders a comparison result as text or a table.
type resultView struct {
	res *comparison.Result
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// TableHeaders implements tableProvider.
func (v resultView) TableHeaders() []string {
	r := v.res
	switch {
	case r.Series != nil:
		return append([]string{"year"}, r.Series.Entities...)
	case r.Investment != nil:
		return append([]string{"category"}, r.Technologies...)
	case r.Market != nil:
		return []string{"technology", "size_bn_usd", "title", "source"}
	case r.Graph != nil:
		return []string{"node", "type", "technologies"}
	case r.Signals != nil:
		return []string{"technology", "patents_recent", "patent_growth", "adoption", "investment", "market_bn_usd"}
	}
	return []string{"message"}
}

// TableRows implements tableProvider.
func (v resultView) TableRows() [][]string {
	r := v.res
	var rows [][]string
	switch {
	case r.Series != nil:
		for _, row := range r.Series.Rows {
			cells := []string{strconv.Itoa(row.Year)}
			for _, e := range r.Series.Entities {
				if val, ok := row.Value(e); ok {
					cells = append(cells, formatNumber(val))
				} else {
					cells = append(cells, "-")
				}
			}
			rows = append(rows, cells)
		}
	case r.Investment != nil:
		for _, row := range r.Investment {
			cells := []string{row.Category}
			for _, tech := range r.Technologies {
				cells = append(cells, formatNumber(row.Values[tech]))
			}
			rows = append(rows, cells)
		}
	case r.Market != nil:
		for _, d := range r.Market {
			for _, p := range d.Points {
				rows = append(rows, []string{d.Entity, formatNumber(p.ValueBillionUSD), p.Title, p.Source})
			}
		}
	case r.Graph != nil:
		for _, n := range r.Graph.Nodes {
			rows = append(rows, []string{n.ID, n.Type, strings.Join(n.Entities, ",")})
		}
	case r.Signals != nil:
		for _, s := range r.Signals {
			rows = append(rows, []string{
				s.Entity,
				formatNumber(s.PatentRecent),
				formatNumber(s.PatentGrowth),
				formatNumber(s.AdoptionLatest),
				formatNumber(s.InvestmentTotal),
				formatNumber(s.MarketSizeBillion),
			})
		}
	default:
		rows = append(rows, []string{r.Message})
	}
	return rows
}

// String is the text rendering: a heading, the narrative or table, then
// the excluded, stale and skipped technologies.
func (v resultView) String() string {
	r := v.res
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", r.Metric, strings.Join(r.Technologies, ", "))

	switch {
	case r.Message != "":
		sb.WriteString(r.Message)
		sb.WriteString("\n")
	case r.Narrative != nil:
		for _, p := range r.Narrative.Paragraphs() {
			sb.WriteString("\n")
			sb.WriteString(p)
			sb.WriteString("\n")
		}
	default:
		if r.Span != nil {
			fmt.Fprintf(&sb, "years %d-%d\n", r.Span.From, r.Span.To)
		}
		if r.Graph != nil {
			fmt.Fprintf(&sb, "%d nodes, %d edges\n", len(r.Graph.Nodes), len(r.Graph.Edges))
		}
		if r.Market != nil && !r.HasPoints {
			sb.WriteString("no market size reports\n")
		} else {
			sb.WriteString(FormatTable(v.TableHeaders(), v.TableRows()))
		}
	}

	if len(r.Excluded) > 0 {
		fmt.Fprintf(&sb, "no data: %s\n", strings.Join(r.Excluded, ", "))
	}
	if len(r.Stale) > 0 {
		fmt.Fprintf(&sb, "stale: %s\n", strings.Join(r.Stale, ", "))
	}
	for _, sk := range r.Skipped {
		fmt.Fprintf(&sb, "skipped: %s (%s)\n", sk.Name, sk.Reason)
	}
	return strings.TrimRight(sb.String(), "\n")
}
