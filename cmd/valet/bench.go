// README: Bench runner; fires concurrent quotes at one scope on the configured backends and checks for lost updates.
package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"valet/internal/logging"
	"valet/internal/modules/pricing"
)

type benchOptions struct {
	scope       string
	pricingFile string
	requests    int
	concurrency int
	duration    time.Duration
	timeout     time.Duration
}

type Runner struct {
	opts benchOptions
	svc  *pricing.Service
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func newBenchCmd(opts *rootOptions) *cobra.Command {
	var o benchOptions
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Fire concurrent quotes at one scope and verify no smoothing update is lost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if o.pricingFile != "" {
				cfg.Pricing.SeedFile = o.pricingFile
			}
			log, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()

			b, err := buildService(ctx, cfg, log.WithOptions(zap.IncreaseLevel(zap.WarnLevel)))
			if err != nil {
				return err
			}
			defer b.Close()

			results := (&Runner{opts: o, svc: b.svc}).RunAll(ctx, cmd)
			fail := 0
			for _, r := range results {
				if r.Status == "FAIL" {
					fail++
				}
			}
			cmd.Printf("\n== Summary ==\nPASS=%d FAIL=%d\n", len(results)-fail, fail)
			if fail > 0 {
				return fmt.Errorf("%d bench case(s) failed", fail)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.scope, "scope", "", "pricing scope to hammer")
	f.StringVarP(&o.pricingFile, "file", "f", "", "pricing file to seed before running (overrides pricing.seed_file)")
	f.IntVar(&o.requests, "requests", 200, "quotes issued by the lost-update check")
	f.IntVar(&o.concurrency, "concurrency", 20, "concurrent workers")
	f.DurationVar(&o.duration, "duration", 5*time.Second, "duration of the throughput run")
	f.DurationVar(&o.timeout, "timeout", 60*time.Second, "total timeout")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}

func (r *Runner) RunAll(ctx context.Context, cmd *cobra.Command) []Result {
	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		cmd.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			cmd.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			cmd.Printf(" - %s", res.Note)
		}
		cmd.Println()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Config: scope has a valid pricing config", Run: checkConfig},
		{Name: "Smoothing: concurrent quotes lose no updates", Run: concurrentQuotes},
		{Name: "Perf: sustained quote throughput", Run: perfLoad},
	}
}

func (r *Runner) request() pricing.QuoteRequest {
	return pricing.QuoteRequest{
		Scope:          r.opts.scope,
		EstimatedHours: 3,
		VehicleClass:   pricing.VehicleStandard,
		OccupancyRatio: 0.9,
	}
}

func checkConfig(ctx context.Context, r *Runner) Result {
	cfg, err := r.svc.GetPricingConfig(ctx, r.opts.scope)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("version=%d", cfg.Version)}
}

// concurrentQuotes assumes nothing else writes the scope while it runs.
func concurrentQuotes(ctx context.Context, r *Runner) Result {
	before, err := r.svc.GetSmoothingState(ctx, r.opts.scope)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}

	jobs := make(chan struct{})
	var (
		mu        sync.Mutex
		succ      int
		conflicts int
		failures  int
		latencies []time.Duration
		wg        sync.WaitGroup
	)
	start := time.Now()
	for i := 0; i < r.opts.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				t0 := time.Now()
				_, err := r.svc.GetPriceQuote(ctx, r.request())
				mu.Lock()
				switch {
				case err == nil:
					succ++
					latencies = append(latencies, time.Since(t0))
				case isConflict(err):
					conflicts++
				default:
					failures++
				}
				mu.Unlock()
			}
		}()
	}
	for i := 0; i < r.opts.requests; i++ {
		jobs <- struct{}{}
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	after, err := r.svc.GetSmoothingState(ctx, r.opts.scope)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	advanced := after.Version - before.Version
	note := fmt.Sprintf("success=%d conflicts=%d errors=%d versions=%d p50=%s p99=%s",
		succ, conflicts, failures, advanced, percentile(latencies, 0.50), percentile(latencies, 0.99))
	if failures > 0 || advanced != int64(succ) {
		return Result{Status: "FAIL", Latency: elapsed, Note: note}
	}
	return Result{Status: "PASS", Latency: elapsed, Note: note}
}

func perfLoad(ctx context.Context, r *Runner) Result {
	end := time.Now().Add(r.opts.duration)
	var count, errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.opts.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				_, err := r.svc.GetPriceQuote(ctx, r.request())
				mu.Lock()
				if err != nil {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no quotes completed"}
	}
	qps := float64(count) / r.opts.duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("qps=%.1f errors=%d", qps, errCount)}
}

func isConflict(err error) bool {
	return errors.Is(err, pricing.ErrConcurrencyConflict)
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	s := append([]time.Duration(nil), d...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s[int(p*float64(len(s)-1))]
}
