// Command shadow_compare projects dataset metrics straight from the
// cooperative API and diffs the result against what a running dashboard
// serves. A non-zero exit means the two disagree.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/coop-dashboard-api/internal/dto"
	"github.com/noah-isme/coop-dashboard-api/internal/service"
	"github.com/noah-isme/coop-dashboard-api/pkg/coop"
)

type envelope struct {
	Data  dto.DatasetDashboardResponse `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type comparison struct {
	Name       string
	Missing    bool
	Unexpected bool
	Diff       string
}

func main() {
	var (
		coopBase      string
		dashboardBase string
		token         string
		timeout       time.Duration
	)

	flag.StringVar(&coopBase, "coop-base", "http://localhost:8000", "Cooperative API base URL")
	flag.StringVar(&dashboardBase, "dashboard-base", "http://localhost:8080/api/v1", "Dashboard API base URL including prefix")
	flag.StringVar(&token, "token", os.Getenv("COOP_API_TOKEN"), "Bearer token for the cooperative API")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Per-request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	var (
		expected []dto.DatasetView
		served   *dto.DatasetDashboardResponse
		took     time.Duration
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expected, err = project(gctx, coopBase, token, timeout)
		return err
	})
	g.Go(func() error {
		start := time.Now()
		var err error
		served, err = fetchDashboard(gctx, dashboardBase, timeout)
		took = time.Since(start)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("shadow compare failed: %v", err)
	}

	results := compare(expected, served.Datasets)
	printReport(results, took)

	diffs := 0
	for _, res := range results {
		if res.Missing || res.Unexpected || res.Diff != "" {
			diffs++
		}
	}
	fmt.Printf("Datasets: %d, diffs: %d\n", len(results), diffs)
	if diffs > 0 {
		os.Exit(1)
	}
}

func project(ctx context.Context, base, token string, timeout time.Duration) ([]dto.DatasetView, error) {
	client := coop.New(coop.Options{BaseURL: base, Timeout: timeout, Token: token})

	var (
		datasets []coop.Dataset
		jobs     []coop.Job
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		datasets, err = client.ListDatasets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		jobs, err = client.ListJobs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("coop api: %w", err)
	}

	projector := service.NewDatasetMetricsProjector(zap.NewNop())
	return projector.ProjectUpstream(datasets, jobs, time.Now().UTC())
}

func fetchDashboard(ctx context.Context, base string, timeout time.Duration) (*dto.DatasetDashboardResponse, error) {
	client := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	resp, err := client.R().SetContext(ctx).Get("/dashboard/datasets")
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("dashboard: decode %d response: %w", resp.StatusCode(), err)
	}
	if resp.IsError() {
		if env.Error != nil {
			return nil, fmt.Errorf("dashboard: %d %s: %s", resp.StatusCode(), env.Error.Code, env.Error.Message)
		}
		return nil, fmt.Errorf("dashboard: status %d", resp.StatusCode())
	}
	return &env.Data, nil
}

func compare(expected, served []dto.DatasetView) []comparison {
	byKey := func(views []dto.DatasetView) map[string]dto.DatasetView {
		out := make(map[string]dto.DatasetView, len(views))
		for _, v := range views {
			out[key(v)] = v
		}
		return out
	}
	want := byKey(expected)
	got := byKey(served)

	opts := cmp.Options{
		cmpopts.EquateApproxTime(time.Second),
		cmpopts.EquateEmpty(),
	}

	names := make([]string, 0, len(want)+len(got))
	for k := range want {
		names = append(names, k)
	}
	for k := range got {
		if _, ok := want[k]; !ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	results := make([]comparison, 0, len(names))
	for _, name := range names {
		w, inWant := want[name]
		g, inGot := got[name]
		res := comparison{Name: name}
		switch {
		case !inGot:
			res.Missing = true
		case !inWant:
			res.Unexpected = true
		default:
			res.Diff = cmp.Diff(w, g, opts)
		}
		results = append(results, res)
	}
	return results
}

func key(v dto.DatasetView) string {
	if v.UID != "" {
		return v.UID
	}
	return v.Name
}

func printReport(results []comparison, took time.Duration) {
	fmt.Println("Shadow Compare Report")
	fmt.Println("======================")
	fmt.Printf("Dashboard latency: %s\n", took)
	for _, res := range results {
		status := "OK"
		switch {
		case res.Missing:
			status = "MISSING"
		case res.Unexpected:
			status = "UNEXPECTED"
		case res.Diff != "":
			status = "DIFF"
		}
		fmt.Printf("[%s] %s\n", status, res.Name)
		if res.Diff != "" {
			fmt.Printf("  (-coop +dashboard)\n%s", res.Diff)
		}
	}
}
