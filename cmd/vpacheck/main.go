package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/speakeasy-api/jsonvpa"
	"github.com/speakeasy-api/jsonvpa/permexec"
	"github.com/speakeasy-api/jsonvpa/pkg/schemavpa"
	"github.com/speakeasy-api/jsonvpa/pkg/symdoc"
	"github.com/spf13/pflag"
)

const (
	exitOK = iota
	exitMismatch
	exitUsage
	exitInvalidGraph
	exitAborted
)

const symbolColumnWidth = 60

type config struct {
	automaton string
	schema    string
	openapi   string
	docs      string
	graph     bool
	permute   bool
	stats     bool
	logLevel  string
	parallel  int
	maxStates int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("vpacheck", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: vpacheck (--automaton FILE | --schema FILE) [--docs FILE] [options]\n\n")
		fmt.Fprintf(stderr, "vpacheck validates symbol documents against a visibly pushdown automaton\n")
		fmt.Fprintf(stderr, "while accepting any order of the key-value pairs of every object.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}

	var cfg config
	fs.StringVarP(&cfg.automaton, "automaton", "a", "", "Automaton definition (YAML)")
	fs.StringVarP(&cfg.schema, "schema", "s", "", "JSON Schema (YAML) to compile into an automaton")
	fs.StringVar(&cfg.openapi, "openapi", "", "OpenAPI document whose x-jsonvpa-document schema is compiled")
	fs.StringVarP(&cfg.docs, "docs", "d", "", "Documents to validate (YAML)")
	fs.BoolVarP(&cfg.graph, "graph", "g", false, "Print the key graph")
	fs.BoolVar(&cfg.permute, "permute", false, "Also validate every key reordering of each document")
	fs.BoolVar(&cfg.stats, "stats", false, "Print relation and exact-cover statistics")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Log level: error, warn, info, debug")
	fs.IntVarP(&cfg.parallel, "parallel", "p", 8, "Documents validated concurrently")
	fs.IntVar(&cfg.maxStates, "max-cover-states", 0, "Bound on exact-cover search states (0 = unbounded)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	sources := 0
	for _, src := range []string{cfg.automaton, cfg.schema, cfg.openapi} {
		if src != "" {
			sources++
		}
	}
	if sources != 1 {
		fmt.Fprintln(stderr, "exactly one of --automaton, --schema and --openapi is required")
		fs.Usage()
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := loadAutomaton(ctx, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	var counters permexec.Counters
	opts := permexec.DefaultOptions()
	opts.LogLevel = cfg.logLevel
	opts.Parallelism = cfg.parallel
	opts.MaxCoverStates = cfg.maxStates
	opts.Sink = &counters
	if cfg.logLevel != "" {
		opts.Logger = permexec.NewLogger(permexec.ParseLogLevel(cfg.logLevel), stderr)
	}

	p := newPrinter(stdout)
	v, err := permexec.Compile(ctx, a, opts)
	if err != nil {
		var invalid *permexec.InvalidGraphError
		if errors.As(err, &invalid) {
			fmt.Fprintf(stdout, "%s key %q can be read twice in one object\n", p.paint(colorRed, "INVALID"), invalid.First.Key)
			fmt.Fprintf(stdout, "  witness: %s\n", symdoc.Format(invalid.Witness))
			return exitInvalidGraph
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, permexec.ErrAborted) {
			return exitAborted
		}
		return exitUsage
	}

	if cfg.graph {
		p.graph(v.Graph())
	}

	code := exitOK
	if cfg.docs != "" {
		docs, err := symdoc.LoadFile(cfg.docs)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
		if cfg.permute {
			if docs, err = expandPermutations(docs, a.Alphabet()); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return exitUsage
			}
		}
		code, err = validate(ctx, v, docs, p)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitAborted
		}
	}

	if cfg.stats {
		s := counters.Snapshot()
		fmt.Fprintf(stdout, "relation: %d pairs in %d rounds\n", s.RelationPairs, s.RelationRounds)
		fmt.Fprintf(stdout, "exact cover: %d searches, %d states (max %d), %s\n", s.CoverSearches, s.CoverStates, s.CoverMaxStates, s.CoverTime)
	}
	return code
}

func loadAutomaton(ctx context.Context, cfg config, stderr io.Writer) (*jsonvpa.VPA, error) {
	if cfg.automaton != "" {
		return jsonvpa.ParseVPAFile(cfg.automaton)
	}
	path := cfg.schema
	if path == "" {
		path = cfg.openapi
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if cfg.schema != "" {
		s, err := schemavpa.LoadSchema(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return schemavpa.Compile(s)
	}

	marked, err := schemavpa.LoadOpenAPI(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(marked) == 0 {
		return nil, fmt.Errorf("%s: no schema is marked with %s", path, schemavpa.DocumentExtension)
	}
	if len(marked) > 1 {
		fmt.Fprintf(stderr, "%d schemas are marked, using %s\n", len(marked), marked[0].Location)
	}
	return schemavpa.Compile(marked[0].Schema)
}

func expandPermutations(docs []symdoc.Document, alpha *jsonvpa.Alphabet) ([]symdoc.Document, error) {
	var out []symdoc.Document
	for _, d := range docs {
		perms, err := symdoc.Permutations(d.Symbols, alpha, 0)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		for i, p := range perms {
			name := d.Name
			if i > 0 {
				name = fmt.Sprintf("%s #%d", d.Name, i)
			}
			out = append(out, symdoc.Document{Name: name, Symbols: p, Expect: d.Expect})
		}
	}
	return out, nil
}

func validate(ctx context.Context, v *permexec.Validator, docs []symdoc.Document, p *printer) (int, error) {
	words := make([][]jsonvpa.Symbol, len(docs))
	for i, d := range docs {
		words[i] = d.Symbols
	}
	verdicts, err := v.ValidateAll(ctx, words)
	if err != nil {
		return exitAborted, err
	}

	code := exitOK
	nameWidth := 0
	for _, d := range docs {
		nameWidth = max(nameWidth, runewidth.StringWidth(d.Name))
	}
	for i, d := range docs {
		got := verdicts[i]
		label, color := "reject", colorYellow
		if got {
			label, color = "accept", colorGreen
		}
		mark := " "
		if d.Expect != nil && *d.Expect != got {
			mark = p.paint(colorRed, "✗")
			code = exitMismatch
		} else if d.Expect != nil {
			mark = p.paint(colorGreen, "✓")
		}
		fmt.Fprintf(p.w, "%s %s  %s  %s\n",
			mark,
			runewidth.FillRight(d.Name, nameWidth),
			p.paint(color, label),
			runewidth.Truncate(symdoc.Format(d.Symbols), symbolColumnWidth, "…"))
	}
	return code, nil
}

type color string

const (
	colorRed    color = "\x1b[31m"
	colorGreen  color = "\x1b[32m"
	colorYellow color = "\x1b[33m"
	colorReset  color = "\x1b[0m"
)

type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok {
		p.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return p
}

func (p *printer) paint(c color, s string) string {
	if !p.color {
		return s
	}
	return string(c) + s + string(colorReset)
}

// graph prints one row per key-graph node.
func (p *printer) graph(g *permexec.KeyGraph) {
	rows := [][]string{{"node", "start", "key", "target", "closes for", "next", "path"}}
	for _, n := range g.SortedNodes() {
		next := make([]string, 0, len(g.Successors(n.ID)))
		for _, m := range g.Successors(n.ID) {
			next = append(next, fmt.Sprintf("#%d", m))
		}
		path := ""
		if g.OnAcceptingPath(n.ID) {
			path = "yes"
		}
		rows = append(rows, []string{
			fmt.Sprintf("#%d", n.ID),
			fmt.Sprint(n.Start),
			string(n.Key),
			fmt.Sprint(n.Target),
			n.Closing.String(),
			strings.Join(next, " "),
			path,
		})
	}

	widths := make([]int, len(rows[0]))
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], runewidth.StringWidth(c))
		}
	}
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = runewidth.FillRight(c, widths[i])
		}
		fmt.Fprintln(p.w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
	fmt.Fprintln(p.w)
}
