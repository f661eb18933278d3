package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/floodsim/internal/api"
	"github.com/lox/floodsim/internal/evaluation"
	"github.com/lox/floodsim/internal/ingest"
	"github.com/lox/floodsim/internal/policy"
	"github.com/lox/floodsim/internal/reservoir"
	"github.com/lox/floodsim/internal/store"
)

type Globals struct {
	DB             string  `help:"Path to SQLite database." default:"data/floodsim.db" env:"FLOODSIM_DB" type:"path"`
	Capacity       float64 `help:"Reservoir capacity (TAF)." default:"975" env:"FLOODSIM_CAPACITY"`
	FloodReference float64 `help:"Storage (TAF) flood control draws down to when not fitting history." default:"400" env:"FLOODSIM_FLOOD_REFERENCE"`
}

func (g *Globals) config() reservoir.Config {
	cfg := reservoir.DefaultConfig()
	cfg.Capacity = g.Capacity
	cfg.FixedFloodReference = g.FloodReference
	return cfg
}

func (g *Globals) openStore() (*store.Store, func(), error) {
	if dir := filepath.Dir(g.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

// Window is the [start, end) slice of the record a command works on.
type Window struct {
	Start string `help:"First day (YYYY-MM-DD), inclusive." placeholder:"DATE"`
	End   string `help:"Last day (YYYY-MM-DD), exclusive." placeholder:"DATE"`
}

func (w Window) bounds() (start, end time.Time, err error) {
	if start, err = parseDate(w.Start); err != nil {
		return
	}
	if end, err = parseDate(w.End); err != nil {
		return
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		err = fmt.Errorf("start %s is not before end %s", w.Start, w.End)
	}
	return
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// loadPolicy accepts a JSON policy tree file or a rule label such as Hedge_80.
func loadPolicy(ref string) (evaluation.Named, error) {
	if _, err := os.Stat(ref); err == nil {
		tree, err := policy.LoadTree(ref)
		if err != nil {
			return evaluation.Named{}, err
		}
		return evaluation.Named{Name: tree.Name, Policy: tree}, nil
	}
	rule, err := policy.ParseRule(ref)
	if err != nil {
		return evaluation.Named{}, fmt.Errorf("%q is neither a policy file nor a rule: %w", ref, err)
	}
	return evaluation.Named{Name: rule.String(), Policy: policy.Constant(rule)}, nil
}

type Sources struct {
	Days   string `help:"Daily inflow/storage CSV: path, ftp:// or http(s):// URL." env:"FLOODSIM_DAYS_SOURCE"`
	Demand string `help:"Demand table by water-year day: path, ftp:// or http(s):// URL." env:"FLOODSIM_DEMAND_SOURCE"`
}

type ImportCmd struct {
	Sources
	Window
}

func (c *ImportCmd) Run(g *Globals) error {
	if c.Days == "" && c.Demand == "" {
		return errors.New("nothing to import: set --days and/or --demand")
	}
	start, end, err := c.bounds()
	if err != nil {
		return err
	}

	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduler := ingest.NewScheduler(
		ingest.NewImporter(st, g.Capacity),
		ingest.NewFetcher(),
		ingest.Sources{Days: c.Days, Demand: c.Demand, Start: start, End: end},
		0,
	)
	if err := scheduler.ImportOnce(ctx); err != nil {
		return err
	}
	log.Println("done")
	return nil
}

type FetchCmd struct {
	URL string `arg:"" help:"ftp:// or http(s):// URL to retrieve."`
	Out string `short:"o" help:"Write to file instead of stdout." type:"path"`
}

func (c *FetchCmd) Run(g *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	body, err := ingest.NewFetcher().ReadSource(ctx, c.URL)
	if err != nil {
		return err
	}
	if c.Out == "" {
		_, err = os.Stdout.Write(body)
		return err
	}
	if err := os.WriteFile(c.Out, body, 0o644); err != nil {
		return err
	}
	log.Printf("fetch: wrote %d bytes to %s", len(body), c.Out)
	return nil
}

type EvaluateCmd struct {
	Window
	Policy        string `required:"" help:"Policy tree JSON file or rule label."`
	FitHistorical bool   `help:"Score by RMSE against observed storage and use the TOCS curve for flood control."`
}

func (c *EvaluateCmd) Run(g *Globals) error {
	score, _, err := runOne(g, c.Window, c.Policy, c.FitHistorical, reservoir.ModeOptimization)
	if err != nil {
		return err
	}
	fmt.Println(score)
	return nil
}

type SimulateCmd struct {
	Window
	Policy        string `required:"" help:"Policy tree JSON file or rule label."`
	FitHistorical bool   `help:"Score by RMSE against observed storage and use the TOCS curve for flood control."`
	Out           string `short:"o" help:"Write the trace CSV to file instead of stdout." type:"path"`
}

func (c *SimulateCmd) Run(g *Globals) error {
	_, trace, err := runOne(g, c.Window, c.Policy, c.FitHistorical, reservoir.ModeSimulation)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if c.Out != "" {
		f, err := os.Create(c.Out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := trace.WriteCSV(w); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	log.Printf("simulate: %d days, %d spill days, %d flood days, score=%.6g",
		trace.Len(), trace.SpillDays, trace.FloodDays, trace.Score)
	return nil
}

func runOne(g *Globals, win Window, ref string, fit bool, mode reservoir.Mode) (float64, *reservoir.Trace, error) {
	start, end, err := win.bounds()
	if err != nil {
		return 0, nil, err
	}
	named, err := loadPolicy(ref)
	if err != nil {
		return 0, nil, err
	}

	st, closeDB, err := g.openStore()
	if err != nil {
		return 0, nil, err
	}
	defer closeDB()

	out, err := evaluation.NewService(st, g.config()).Run(evaluation.Request{
		Named:         named,
		Mode:          mode,
		Start:         start,
		End:           end,
		FitHistorical: fit,
	})
	if err != nil {
		return 0, nil, err
	}
	return out.Score, out.Trace, nil
}

type CompareCmd struct {
	Window
	Policies      []string `arg:"" optional:"" help:"Policy tree JSON files or rule labels."`
	NoBaselines   bool     `help:"Skip the seven constant-rule baselines."`
	FitHistorical bool     `help:"Score by RMSE against observed storage."`
	Workers       int      `default:"4" help:"Concurrent evaluations."`
}

func (c *CompareCmd) Run(g *Globals) error {
	start, end, err := c.bounds()
	if err != nil {
		return err
	}

	var named []evaluation.Named
	for _, ref := range c.Policies {
		n, err := loadPolicy(ref)
		if err != nil {
			return err
		}
		named = append(named, n)
	}
	if !c.NoBaselines {
		named = append(named, evaluation.Baselines()...)
	}
	if len(named) == 0 {
		return errors.New("no policies to compare")
	}

	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rankings, err := evaluation.NewService(st, g.config()).Compare(ctx, named, start, end, c.FitHistorical, c.Workers)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPOLICY\tSCORE\tRUN")
	for i, r := range rankings {
		fmt.Fprintf(tw, "%d\t%s\t%.6g\t%d\n", i+1, r.Name, r.Score, r.RunID)
	}
	return tw.Flush()
}

type ServeCmd struct {
	Sources
	Port    string        `default:"8080" env:"PORT" help:"HTTP server port."`
	Refresh time.Duration `default:"24h" env:"FLOODSIM_REFRESH" help:"Re-import interval for --days/--demand sources (0 disables)."`
}

func (c *ServeCmd) Run(g *Globals) error {
	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if (c.Days != "" || c.Demand != "") && c.Refresh > 0 {
		scheduler := ingest.NewScheduler(
			ingest.NewImporter(st, g.Capacity),
			ingest.NewFetcher(),
			ingest.Sources{Days: c.Days, Demand: c.Demand},
			c.Refresh,
		)
		go scheduler.Run(ctx)
	} else {
		log.Println("refresh disabled")
	}

	server := api.NewServer(st, evaluation.NewService(st, g.config()), c.Port)
	return server.Run(ctx)
}

type CLI struct {
	Globals

	Import   ImportCmd   `cmd:"" help:"Import the daily record and demand table."`
	Fetch    FetchCmd    `cmd:"" help:"Download an input file from a data server."`
	Evaluate EvaluateCmd `cmd:"" help:"Score a policy (optimization mode)."`
	Simulate SimulateCmd `cmd:"" help:"Simulate a policy and write the daily trace as CSV."`
	Compare  CompareCmd  `cmd:"" help:"Rank policies by score."`
	Serve    ServeCmd    `cmd:"" help:"Run the HTTP API."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("floodsim"),
		kong.Description("Daily flood-control reservoir simulator."),
		kong.UsageOnError(),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
