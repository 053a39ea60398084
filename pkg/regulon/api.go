// Package regulon is the programmatic entry point: load experiment
// documents, simulate them, search their parameters and browse past runs.
package regulon

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"regulon/internal/anneal"
	"regulon/internal/logging"
	"regulon/internal/model"
	"regulon/internal/netdoc"
	"regulon/internal/results"
	"regulon/internal/simulate"
	"regulon/internal/stats"
	"regulon/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "regulon.db"
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     logging.Logger
	// Observer, when set, receives every search step and result.
	Observer   anneal.Observer
}

type Client struct {
	store       storage.Store
	initialized bool

	runsDir    string
	exportsDir string
	log        logging.Logger
	observer   anneal.Observer
}

// Source names an experiment either inline or by file path.
type Source struct {
	Document *netdoc.Document
	Path     string
}

type SimulateRequest struct {
	Source
	// Time overrides the document's simulation window.
	Time   *simulate.TimeSpec
	// OutDir, when set, receives series.csv for the document's plot.
	OutDir string
}

type SimulateSummary struct {
	Results    *results.Structured
	Final      map[string]float64
	Stats      simulate.Stats
	SeriesPath string
}

type SearchRequest struct {
	Source
	RunID      string
	Seed       *int64
	Acceptance string
	// LegacySign forces the legacy worsening sign; false keeps the document's choice.
	LegacySign bool
}

type SearchSummary struct {
	RunID        string               `json:"run_id"`
	Solved       bool                 `json:"solved"`
	Penalty      float64              `json:"penalty"`
	Steps        int                  `json:"steps"`
	Values       []model.MutableValue `json:"values"`
	ArtifactsDir string               `json:"artifacts_dir"`
	// Network is the searched network, as a YAML document, holding the
	// final parameter values.
	Network      string               `json:"network"`
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string  `json:"run_id"`
	CreatedAtUTC string  `json:"created_at_utc"`
	Experiment   string  `json:"experiment"`
	Seed         int64   `json:"seed"`
	Acceptance   string  `json:"acceptance"`
	Solved       bool    `json:"solved"`
	Penalty      float64 `json:"penalty"`
	Steps        int     `json:"steps"`
}

type RunRef struct {
	RunID  string
	Latest bool
}

type ExportRequest struct {
	RunRef
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type HistoryRequest struct {
	RunRef
	Limit int
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{
		store:      store,
		runsDir:    runsDir,
		exportsDir: exportsDir,
		log:        log,
		observer:   opts.Observer,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Simulate builds the experiment and integrates it once.
func (c *Client) Simulate(ctx context.Context, req SimulateRequest) (SimulateSummary, error) {
	exp, err := load(req.Source)
	if err != nil {
		return SimulateSummary{}, err
	}
	spec := exp.Time
	if req.Time != nil {
		spec = *req.Time
	}
	sim, err := simulate.New(spec)
	if err != nil {
		return SimulateSummary{}, err
	}
	raw, st, err := sim.Integrate(ctx, exp.Network)
	if err != nil {
		return SimulateSummary{}, err
	}
	res, err := results.New(raw, exp.Network.Species.Names(), sim.Times())
	if err != nil {
		return SimulateSummary{}, err
	}

	out := SimulateSummary{Results: res, Final: res.Final(), Stats: st}
	if req.OutDir != "" {
		path, err := stats.WriteSeriesCSV(req.OutDir, res, exp.Plot)
		if err != nil {
			return SimulateSummary{}, err
		}
		out.SeriesPath = path
		c.log.Info(ctx, "series written", logging.String("path", path))
	}
	return out, nil
}

// Search anneals the experiment's mutables, then records artifacts, the run
// index entry and the store records for the run. An unsolved search is not
// an error; check SearchSummary.Solved.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchSummary, error) {
	exp, err := load(req.Source)
	if err != nil {
		return SearchSummary{}, err
	}
	if !exp.Searchable() {
		return SearchSummary{}, errors.New("experiment has no search block")
	}
	if req.Seed != nil {
		exp.Seed = *req.Seed
	}
	if req.Acceptance != "" {
		if exp.Acceptance, err = anneal.AcceptanceByName(req.Acceptance); err != nil {
			return SearchSummary{}, err
		}
	}
	if req.LegacySign {
		exp.LegacySign = true
	}
	if err := c.Init(ctx); err != nil {
		return SearchSummary{}, err
	}

	if req.RunID != "" {
		ctx = logging.ContextWithRunID(ctx, req.RunID)
	}
	ctx, log := logging.WithRunLogger(ctx, c.log)
	runID := logging.RunIDFromContext(ctx)

	sim, err := simulate.New(exp.Time)
	if err != nil {
		return SearchSummary{}, err
	}
	annealer := &anneal.Annealer{
		Rand:       rand.New(rand.NewSource(exp.Seed)),
		Acceptance: exp.Acceptance,
		LegacySign: exp.LegacySign,
		Log:        log,
		Observer:   c.observer,
	}
	started := time.Now().UTC()
	res, err := annealer.Search(ctx, exp.Session(sim))
	if err != nil {
		return SearchSummary{}, err
	}
	finished := time.Now().UTC()

	// The network now holds the final values; keep its trajectory.
	raw, err := sim.Run(ctx, exp.Network)
	if err != nil {
		return SearchSummary{}, fmt.Errorf("simulate final network: %w", err)
	}
	series, err := results.New(raw, exp.Network.Species.Names(), sim.Times())
	if err != nil {
		return SearchSummary{}, err
	}

	values := make([]model.MutableValue, len(exp.Mutables))
	for i, m := range exp.Mutables {
		values[i] = model.MutableValue{Handle: m.Handle.String(), Value: res.Values[i]}
	}
	history := stepRecords(res.History)

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config:   runConfig(runID, exp),
		History:  history,
		Solution: stats.Solution{Solved: res.Solved, Penalty: res.Penalty, Steps: res.Steps, Values: values, Final: series.Final()},
		Series:   series,
		Plot:     exp.Plot,
	})
	if err != nil {
		return SearchSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        runID,
		Experiment:   exp.Name,
		Seed:         exp.Seed,
		Acceptance:   exp.Acceptance.Name(),
		Solved:       res.Solved,
		Penalty:      res.Penalty,
		Steps:        res.Steps,
		CreatedAtUTC: started.Format(time.RFC3339Nano),
	}); err != nil {
		return SearchSummary{}, err
	}

	doc, err := netdoc.FromNetwork(exp.Name, exp.Network)
	if err != nil {
		return SearchSummary{}, err
	}
	text, err := netdoc.Marshal(doc)
	if err != nil {
		return SearchSummary{}, err
	}
	if err := c.persist(ctx, runID, exp, res, values, history, series, text, started, finished); err != nil {
		return SearchSummary{}, err
	}

	log.Info(ctx, "run artifacts written", logging.String("dir", runDir))
	return SearchSummary{
		RunID:        runID,
		Solved:       res.Solved,
		Penalty:      res.Penalty,
		Steps:        res.Steps,
		Values:       values,
		ArtifactsDir: runDir,
		Network:      text,
	}, nil
}

func (c *Client) persist(ctx context.Context, runID string, exp *netdoc.Experiment, res anneal.Result, values []model.MutableValue, history []model.StepRecord, series *results.Structured, document string, started, finished time.Time) error {
	if err := c.store.SaveNetwork(ctx, model.NetworkRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		Name:            exp.Name,
		Document:        document,
		SavedAt:         finished,
	}); err != nil {
		return err
	}
	if err := c.store.SaveRun(ctx, model.SearchRun{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		NetworkID:       runID,
		Seed:            exp.Seed,
		Acceptance:      exp.Acceptance.Name(),
		Solved:          res.Solved,
		Penalty:         res.Penalty,
		Steps:           res.Steps,
		Values:          values,
		History:         history,
		StartedAt:       started,
		FinishedAt:      finished,
	}); err != nil {
		return err
	}

	times := series.Times()
	species := series.Species()
	rows := make([][]float64, len(times))
	raw := series.Raw()
	for i := range rows {
		rows[i] = make([]float64, len(species))
		for j := range species {
			rows[i][j] = raw.At(i, j)
		}
	}
	return c.store.SaveTrajectory(ctx, model.TrajectoryRecord{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		Species:         species,
		Times:           times,
		Values:          rows,
	})
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Experiment:   e.Experiment,
			Seed:         e.Seed,
			Acceptance:   e.Acceptance,
			Solved:       e.Solved,
			Penalty:      e.Penalty,
			Steps:        e.Steps,
		})
	}
	return out, nil
}

// Summary aggregates every indexed run.
func (c *Client) Summary(_ context.Context) (stats.RunSummary, error) {
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return stats.RunSummary{}, err
	}
	return stats.Summarize(entries), nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunRef, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = c.exportsDir
	}
	dir, err := stats.ExportRunArtifacts(c.runsDir, runID, outDir)
	if err != nil {
		return ExportSummary{}, err
	}
	c.log.Info(ctx, "run exported", logging.String("run_id", runID), logging.String("dir", dir))
	return ExportSummary{RunID: runID, Directory: dir}, nil
}

// History returns a run's step history from the store, falling back to the
// run artifacts when the store does not hold the run.
func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.StepRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunRef, "history")
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	var history []model.StepRecord
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		history = run.History
	} else {
		history, ok, err = stats.ReadHistory(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("history not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

// Trajectory returns the stored final trajectory of a run.
func (c *Client) Trajectory(ctx context.Context, ref RunRef) (model.TrajectoryRecord, error) {
	runID, err := c.resolveRunID(ref, "trajectory")
	if err != nil {
		return model.TrajectoryRecord{}, err
	}
	if err := c.Init(ctx); err != nil {
		return model.TrajectoryRecord{}, err
	}
	trajectory, ok, err := c.store.GetTrajectory(ctx, runID)
	if err != nil {
		return model.TrajectoryRecord{}, err
	}
	if !ok {
		return model.TrajectoryRecord{}, fmt.Errorf("trajectory not found for run id: %s", runID)
	}
	return trajectory, nil
}

// Describe renders the experiment's network in readable form.
func (c *Client) Describe(_ context.Context, src Source) (string, error) {
	exp, err := load(src)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "experiment: %s\n", exp.Name)
	b.WriteString(exp.Network.String())
	if exp.Searchable() {
		b.WriteString("mutables:\n")
		for _, m := range exp.Mutables {
			fmt.Fprintf(&b, "  %s in [%g, %g] step %g\n", m.Handle, m.Lower, m.Upper, m.Increment)
		}
		b.WriteString("constraints:\n")
		for _, k := range exp.Constraints {
			fmt.Fprintf(&b, "  %s\n", k)
		}
		fmt.Fprintf(&b, "schedule: %d steps, acceptance %s\n", exp.Schedule.Steps(), exp.Acceptance.Name())
	}
	return b.String(), nil
}

func (c *Client) resolveRunID(ref RunRef, op string) (string, error) {
	if ref.RunID != "" && ref.Latest {
		return "", errors.New("use either run id or latest")
	}
	if ref.Latest {
		entries, err := stats.ListRunIndex(c.runsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if ref.RunID == "" {
		return "", fmt.Errorf("%s requires run id or latest", op)
	}
	return ref.RunID, nil
}

func load(src Source) (*netdoc.Experiment, error) {
	doc := src.Document
	switch {
	case doc != nil && src.Path != "":
		return nil, errors.New("use either a document or a path")
	case doc == nil && src.Path == "":
		return nil, errors.New("experiment document or path is required")
	case doc == nil:
		loaded, err := netdoc.Load(src.Path)
		if err != nil {
			return nil, err
		}
		doc = loaded
	}
	return netdoc.Build(doc)
}

func runConfig(runID string, exp *netdoc.Experiment) stats.RunConfig {
	cfg := stats.RunConfig{
		RunID:      runID,
		Experiment: exp.Name,
		Seed:       exp.Seed,
		Acceptance: exp.Acceptance.Name(),
		LegacySign: exp.LegacySign,
		TimeStart:  exp.Time.Start,
		TimeEnd:    exp.Time.End,
		Samples:    exp.Time.Samples,
		Schedule:   append([]float64(nil), exp.Schedule...),
	}
	for _, m := range exp.Mutables {
		cfg.Mutables = append(cfg.Mutables, stats.MutableConfig{
			Handle:    m.Handle.String(),
			Lower:     m.Lower,
			Upper:     m.Upper,
			Increment: m.Increment,
		})
	}
	for _, k := range exp.Constraints {
		cfg.Constraints = append(cfg.Constraints, k.String())
	}
	return cfg
}

func stepRecords(steps []anneal.Step) []model.StepRecord {
	out := make([]model.StepRecord, len(steps))
	for i, s := range steps {
		out[i] = model.StepRecord{
			Index:            s.Index,
			Temperature:      s.Temperature,
			Current:          append([]float64(nil), s.Current...),
			Penalty:          s.Penalty,
			Moved:            s.Moved,
			NeighbourPenalty: s.NeighbourPenalty,
			Probability:      s.Probability,
			Accepted:         s.Accepted,
			Solved:           s.Solved,
		}
	}
	return out
}
