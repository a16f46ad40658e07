package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"agent-navigator/internal/logger"
	"agent-navigator/navgraph"
	"agent-navigator/pathservice"
)

type benchOptions struct {
	Queries int
	Batch   int
	Seed    int64
}

type benchReport struct {
	Queries  int
	Found    int
	NotFound int
	Expanded int
	Elapsed  time.Duration
}

func (r benchReport) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Queries) / r.Elapsed.Seconds()
}

func NewBenchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure batched route throughput",
		Long:  "Submit random route queries to the worker pool and wait for every result.",
		RunE:  bench,
		Args:  cobra.NoArgs,
	}

	flags := cmd.Flags()
	addCommonFlags(flags)

	flags.Int("queries", 10000, "the number of random queries to submit")
	flags.Int("batch", 500, "the number of queries per submission")
	flags.Int64("seed", 1, "the random seed for query endpoints")

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		bindCommonFlags(flags)
		MustBindPFlag("bench.queries", flags.Lookup("queries"))
		MustBindPFlag("bench.batch", flags.Lookup("batch"))
		MustBindPFlag("bench.seed", flags.Lookup("seed"))
	}

	return cmd
}

func bench(cmd *cobra.Command, _ []string) error {
	config, err := ReadConfig()
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(config.Log.Format, config.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	opts := benchOptions{
		Queries: viper.GetInt("bench.queries"),
		Batch:   viper.GetInt("bench.batch"),
		Seed:    viper.GetInt64("bench.seed"),
	}
	report, err := runBench(ctx, config, opts, log)
	if err != nil {
		return err
	}
	return printReport(cmd.OutOrStdout(), config, report)
}

func runBench(ctx context.Context, config *Config, opts benchOptions, log logger.Logger) (benchReport, error) {
	if opts.Queries < 1 || opts.Batch < 1 {
		return benchReport{}, fmt.Errorf("queries and batch must be positive")
	}

	g, err := buildGraph(config, log)
	if err != nil {
		return benchReport{}, err
	}
	queries, err := randomQueries(g, opts)
	if err != nil {
		return benchReport{}, err
	}

	service := pathservice.New(g, config.Workers, serviceOptions(config, log)...)
	defer service.Close()

	started := time.Now()
	outstanding := make(map[pathservice.RequestID]struct{}, len(queries))
	for i := 0; i < len(queries); i += opts.Batch {
		ids, err := service.SubmitPathRequests(queries[i:min(i+opts.Batch, len(queries))])
		if err != nil {
			return benchReport{}, err
		}
		for _, id := range ids {
			outstanding[id] = struct{}{}
		}
	}

	report := benchReport{Queries: len(queries)}
	poll := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(config.PollInterval),
		backoff.WithMaxInterval(50*time.Millisecond),
		backoff.WithMaxElapsedTime(0),
	)
	err = backoff.Retry(func() error {
		for _, result := range service.CollectResults() {
			if _, ok := outstanding[result.ID]; !ok {
				return backoff.Permanent(fmt.Errorf("unexpected result for request %d", result.ID))
			}
			delete(outstanding, result.ID)
			report.Expanded += result.Expanded
			if result.Found() {
				report.Found++
			} else {
				report.NotFound++
			}
		}
		if len(outstanding) > 0 {
			return errResultsPending
		}
		return nil
	}, backoff.WithContext(poll, ctx))
	if err != nil {
		return benchReport{}, fmt.Errorf("%d results outstanding: %w", len(outstanding), err)
	}
	report.Elapsed = time.Since(started)

	log.Info("benchmark finished",
		zap.Int("queries", report.Queries),
		zap.Int("found", report.Found),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

var errResultsPending = errors.New("results pending")

// randomQueries picks endpoints uniformly inside the bounding box of the graph.
func randomQueries(g *navgraph.Graph, opts benchOptions) ([]pathservice.Query, error) {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}

	lo, hi := nodes[0].Position, nodes[0].Position
	for _, n := range nodes[1:] {
		lo = navgraph.Vec3{X: min(lo.X, n.Position.X), Y: min(lo.Y, n.Position.Y), Z: min(lo.Z, n.Position.Z)}
		hi = navgraph.Vec3{X: max(hi.X, n.Position.X), Y: max(hi.Y, n.Position.Y), Z: max(hi.Z, n.Position.Z)}
	}
	extent := hi.Sub(lo)

	rng := rand.New(rand.NewSource(opts.Seed))
	point := func() navgraph.Vec3 {
		return lo.Add(navgraph.Vec3{
			X: rng.Float64() * extent.X,
			Y: rng.Float64() * extent.Y,
			Z: rng.Float64() * extent.Z,
		})
	}

	queries := make([]pathservice.Query, opts.Queries)
	for i := range queries {
		queries[i] = pathservice.Query{Start: point(), Goal: point()}
	}
	return queries, nil
}

func printReport(w io.Writer, config *Config, r benchReport) error {
	_, err := fmt.Fprintf(w,
		"workers:    %d\nqueries:    %d\nfound:      %d\nnot found:  %d\nexpanded:   %d\nelapsed:    %s\nthroughput: %.0f queries/s\n",
		config.Workers, r.Queries, r.Found, r.NotFound, r.Expanded, r.Elapsed.Round(time.Millisecond), r.Throughput())
	return err
}
