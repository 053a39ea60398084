package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"regulon/internal/anneal"
	"regulon/internal/model"
	"regulon/internal/stats"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})
	return workdir
}

func TestInitSearchRunsHistoryExport(t *testing.T) {
	chdirTemp(t)
	ctx := context.Background()

	if err := run(ctx, []string{"init"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := run(ctx, []string{"init"}); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	out, err := captureStdout(func() error {
		return run(ctx, []string{"search", "--store", "memory", "--run-id", "cli-run"})
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, `run_id=cli-run outcome="solved"`) {
		t.Fatalf("unexpected search output: %q", out)
	}
	if !strings.Contains(out, "y_trans.rate=12.5") {
		t.Fatalf("expected solved rate in output: %q", out)
	}

	entries, err := stats.ListRunIndex(runsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "cli-run" {
		t.Fatalf("unexpected run index: %+v", entries)
	}

	out, err = captureStdout(func() error {
		return run(ctx, []string{"runs", "--json"})
	})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode runs json: %v", err)
	}
	if len(items) != 1 || items[0]["run_id"] != "cli-run" {
		t.Fatalf("unexpected runs json: %s", out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, []string{"history", "--latest", "--store", "memory", "--json"})
	})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var steps []model.StepRecord
	if err := json.Unmarshal([]byte(out), &steps); err != nil {
		t.Fatalf("decode history json: %v", err)
	}
	if len(steps) != 25 || !steps[len(steps)-1].Solved {
		t.Fatalf("expected 25 steps ending solved, got %d", len(steps))
	}

	if err := run(ctx, []string{"export", "--latest", "--out", "exported"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join("exported", "cli-run", "series.csv")); err != nil {
		t.Fatalf("expected exported series: %v", err)
	}

	out, err = captureStdout(func() error {
		return run(ctx, []string{"summary"})
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out, "runs=1 solved=1") {
		t.Fatalf("unexpected summary: %q", out)
	}
}

func TestSimulateAndDescribe(t *testing.T) {
	chdirTemp(t)
	ctx := context.Background()
	if err := run(ctx, []string{"init", "--out", "net.yaml"}); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := captureStdout(func() error {
		return run(ctx, []string{"simulate", "--doc", "net.yaml", "--end", "20", "--samples", "21", "--out", "sim"})
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !strings.Contains(out, "simulated samples=21 t=[0, 20]") {
		t.Fatalf("unexpected simulate output: %q", out)
	}
	header, rows, err := stats.ReadSeriesCSV(filepath.Join("sim", "series.csv"))
	if err != nil {
		t.Fatalf("read series: %v", err)
	}
	if strings.Join(header, ",") != "time,target,repressor" || len(rows) != 21 {
		t.Fatalf("unexpected series header=%v rows=%d", header, len(rows))
	}

	out, err = captureStdout(func() error {
		return run(ctx, []string{"describe", "--doc", "net.yaml"})
	})
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	for _, want := range []string{"experiment: repressor", "x_trans:", "acceptance exact"} {
		if !strings.Contains(out, want) {
			t.Fatalf("describe output missing %q: %q", want, out)
		}
	}
}

func TestCommandErrors(t *testing.T) {
	chdirTemp(t)
	ctx := context.Background()

	cases := []struct {
		args []string
		want string
	}{
		{nil, "missing command"},
		{[]string{"bogus"}, "unknown command: bogus"},
		{[]string{"export"}, "export requires --run-id or --latest"},
		{[]string{"history", "--run-id", "a", "--latest"}, "use either --run-id or --latest"},
		{[]string{"runs", "--limit", "0"}, "limit must be > 0"},
		{[]string{"search", "--acceptance", "greedy"}, "unsupported acceptance"},
		{[]string{"simulate", "--doc", "missing.yaml"}, "missing.yaml"},
	}
	for _, tc := range cases {
		err := run(ctx, tc.args)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("run(%v): expected error containing %q, got %v", tc.args, tc.want, err)
		}
	}
}

func TestMetricsServerExposesSearchMetrics(t *testing.T) {
	ctx := context.Background()
	srv, err := startMetricsServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start metrics server: %v", err)
	}
	srv.collector.ObserveResult(anneal.Result{Solved: true, Steps: 3})

	resp, err := http.Get("http://" + srv.addr + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	srv.stop(ctx)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "regulon_searches_total") {
		t.Fatalf("expected search counter in metrics output")
	}
}

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}
