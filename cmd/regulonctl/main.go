package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"regulon/internal/anneal"
	"regulon/internal/logging"
	"regulon/internal/netdoc"
	"regulon/internal/observability"
	"regulon/internal/simulate"
	"regulon/internal/storage"
	regapi "regulon/pkg/regulon"
)

const (
	runsDir       = "runs"
	exportsDir    = "exports"
	defaultDoc    = "experiment.yaml"
	defaultDBPath = "regulon.db"
)

func main() {
	ctx := context.Background()
	log := logging.NewFromEnv()
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	err = run(logging.ContextWithLogger(ctx, log), os.Args[1:])
	observability.ShutdownWithTimeout(ctx, shutdown, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "describe":
		return runDescribe(ctx, args[1:])
	case "simulate":
		return runSimulate(ctx, args[1:])
	case "search":
		return runSearch(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "summary":
		return runSummary(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	out := fs.String("out", defaultDoc, "path of the experiment document to write")
	force := fs.Bool("force", false, "overwrite an existing document")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(*out); err == nil {
			return fmt.Errorf("%s already exists; use --force to overwrite", *out)
		}
	}
	if err := netdoc.Save(*out, netdoc.Sample()); err != nil {
		return err
	}
	fmt.Printf("wrote sample experiment to=%s\n", filepath.Clean(*out))
	return nil
}

func runDescribe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	docPath := fs.String("doc", defaultDoc, "experiment document path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := newClient(ctx, storage.DefaultStoreKind(), defaultDBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	text, err := client.Describe(ctx, regapi.Source{Path: *docPath})
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func runSimulate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	docPath := fs.String("doc", defaultDoc, "experiment document path")
	outDir := fs.String("out", "", "directory for series.csv (empty to skip)")
	start := fs.Float64("start", 0, "override simulation start time")
	end := fs.Float64("end", 0, "override simulation end time")
	samples := fs.Int("samples", 0, "override number of samples")
	jsonOut := fs.Bool("json", false, "emit final concentrations as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := flagsSet(fs)

	var window *simulate.TimeSpec
	if set["start"] || set["end"] || set["samples"] {
		doc, err := netdoc.Load(*docPath)
		if err != nil {
			return err
		}
		spec := netdoc.DefaultSimulation
		if doc.Simulation != nil {
			spec = simulate.TimeSpec{Start: doc.Simulation.Start, End: doc.Simulation.End, Samples: doc.Simulation.Samples}
		}
		if set["start"] {
			spec.Start = *start
		}
		if set["end"] {
			spec.End = *end
		}
		if set["samples"] {
			spec.Samples = *samples
		}
		window = &spec
	}

	client, err := newClient(ctx, storage.DefaultStoreKind(), defaultDBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	out, err := client.Simulate(ctx, regapi.SimulateRequest{
		Source: regapi.Source{Path: *docPath},
		Time:   window,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"times":  len(out.Results.Times()),
			"final":  out.Final,
			"series": out.SeriesPath,
		})
	}

	times := out.Results.Times()
	fmt.Printf("simulated samples=%d t=[%g, %g] steps_accepted=%d steps_rejected=%d\n",
		len(times), times[0], times[len(times)-1], out.Stats.Accepted, out.Stats.Rejected)
	names := make([]string, 0, len(out.Final))
	for name := range out.Final {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s=%.6g\n", name, out.Final[name])
	}
	if out.SeriesPath != "" {
		fmt.Printf("series=%s\n", filepath.Clean(out.SeriesPath))
	}
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	docPath := fs.String("doc", defaultDoc, "experiment document path")
	runID := fs.String("run-id", "", "explicit run id (default: generated)")
	seed := fs.Int64("seed", 0, "override the document's random seed")
	acceptance := fs.String("acceptance", "", "override acceptance coin: exact|discretized")
	legacySign := fs.Bool("legacy-sign", false, "score moves as current minus neighbour penalty, as the legacy search did")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address during the search")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit the search summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *acceptance != "" {
		if _, err := anneal.AcceptanceByName(*acceptance); err != nil {
			return err
		}
	}
	req := regapi.SearchRequest{
		Source:     regapi.Source{Path: *docPath},
		RunID:      *runID,
		Acceptance: *acceptance,
		LegacySign: *legacySign,
	}
	if flagsSet(fs)["seed"] {
		req.Seed = seed
	}

	log := logging.FromContext(ctx)
	var observer anneal.Observer
	if *metricsAddr != "" {
		srv, err := startMetricsServer(*metricsAddr)
		if err != nil {
			return err
		}
		defer srv.stop(ctx)
		log.Info(ctx, "serving metrics", logging.String("addr", srv.addr))
		observer = srv.collector
	}

	client, err := regapi.New(regapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
		Logger:     log,
		Observer:   observer,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Search(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(summary)
	}

	outcome := "solved"
	if !summary.Solved {
		outcome = anneal.ErrNoSolutionFound.Error()
	}
	fmt.Printf("run_id=%s outcome=%q penalty=%.6g steps=%d\n", summary.RunID, outcome, summary.Penalty, summary.Steps)
	for _, v := range summary.Values {
		fmt.Printf("  %s=%g\n", v.Handle, v.Value)
	}
	fmt.Printf("artifacts=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient(ctx, storage.DefaultStoreKind(), defaultDBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, regapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		if items == nil {
			items = []regapi.RunItem{}
		}
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, item := range items {
		fmt.Printf("run_id=%s created_at=%s experiment=%s seed=%d acceptance=%s solved=%t penalty=%.6g steps=%d\n",
			item.RunID, item.CreatedAtUTC, item.Experiment, item.Seed, item.Acceptance, item.Solved, item.Penalty, item.Steps)
	}
	return nil
}

func runSummary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := newClient(ctx, storage.DefaultStoreKind(), defaultDBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	sum, err := client.Summary(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(sum)
	}
	if sum.TotalRuns == 0 {
		fmt.Println("no runs found")
		return nil
	}
	fmt.Printf("runs=%d solved=%d solve_rate=%.3f mean_steps=%.2f std_steps=%.2f mean_penalty=%.6g min_penalty=%.6g max_penalty=%.6g\n",
		sum.TotalRuns, sum.SolvedRuns, sum.SolveRate, sum.MeanSteps, sum.StdSteps, sum.MeanPenalty, sum.MinPenalty, sum.MaxPenalty)
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show history for the most recent run from run index")
	limit := fs.Int("limit", 0, "max steps to print (0 for all)")
	jsonOut := fs.Bool("json", false, "emit steps as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef(*runID, *latest, "history"); err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	steps, err := client.History(ctx, regapi.HistoryRequest{
		RunRef: regapi.RunRef{RunID: *runID, Latest: *latest},
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(steps)
	}
	for _, s := range steps {
		fmt.Printf("step=%d temperature=%g current=%s penalty=%.6g neighbour_penalty=%.6g p=%.4f accepted=%t solved=%t\n",
			s.Index, s.Temperature, formatValues(s.Current), s.Penalty, s.NeighbourPenalty, s.Probability, s.Accepted, s.Solved)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef(*runID, *latest, "export"); err != nil {
		return err
	}

	client, err := newClient(ctx, storage.DefaultStoreKind(), defaultDBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	out, err := client.Export(ctx, regapi.ExportRequest{
		RunRef: regapi.RunRef{RunID: *runID, Latest: *latest},
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", out.RunID, filepath.Clean(out.Directory))
	return nil
}

func newClient(ctx context.Context, storeKind, dbPath string) (*regapi.Client, error) {
	return regapi.New(regapi.Options{
		StoreKind:  storeKind,
		DBPath:     dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
		Logger:     logging.FromContext(ctx),
	})
}

func checkRunRef(runID string, latest bool, command string) error {
	if runID != "" && latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

func flagsSet(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: regulonctl <init|describe|simulate|search|runs|summary|history|export> [flags]", msg)
}
