// Package pathservice answers batches of route queries on a fixed pool of
// worker goroutines.
//
// Queries are submitted in batches and receive ids immediately. Workers take
// requests from an inbound queue, search the shared graph and push results to
// an outbound queue, which callers drain without blocking. Results arrive in
// completion order; callers match them to their queries by id.
package pathservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"agent-navigator/internal/logger"
	"agent-navigator/internal/queue"
	"agent-navigator/navgraph"
	"agent-navigator/pathfinding"
)

var tracer = otel.Tracer("agent-navigator/pathservice")

var (
	// ErrClosed is returned when requests are submitted after Close.
	ErrClosed = errors.New("path service closed")

	// ErrWorkerPanic is returned by Close when a worker goroutine panicked.
	ErrWorkerPanic = errors.New("path worker panicked")
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSnapTolerance limits how far a query endpoint may be from the node it
// snaps to. See pathfinding.WithSnapTolerance.
func WithSnapTolerance(d float64) Option {
	return func(s *Service) {
		s.finderOpts = append(s.finderOpts, pathfinding.WithSnapTolerance(d))
	}
}

// WithSimplify reduces every found route with pathfinding.SimplifyRoute.
func WithSimplify(epsilon float64) Option {
	return func(s *Service) {
		if epsilon >= 0 && !math.IsNaN(epsilon) {
			s.simplify = true
			s.simplifyEpsilon = epsilon
		}
	}
}

// Service is a pool of pathfinding workers over one frozen graph.
type Service struct {
	finder          *pathfinding.Finder
	finderOpts      []pathfinding.Option
	logger          logger.Logger
	workerCount     int
	simplify        bool
	simplifyEpsilon float64

	// beforeSearch runs in the worker before each search.
	beforeSearch func(Request)

	nextID atomic.Uint64

	// mu orders submissions against Close.
	mu     sync.RWMutex
	closed bool

	inbound  *queue.Queue[Request]
	outbound *queue.Queue[Result]
	workers  *conc.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// New freezes g and starts max(1, workers) worker goroutines searching it.
// The graph must not be modified afterwards.
func New(g *navgraph.Graph, workers int, opts ...Option) *Service {
	g.Freeze()

	s := &Service{
		logger:      logger.NewNoopLogger(),
		workerCount: max(1, workers),
		inbound:     queue.New[Request](),
		outbound:    queue.New[Result](),
		workers:     conc.NewWaitGroup(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.finder = pathfinding.NewFinder(g, s.finderOpts...)

	for i := 0; i < s.workerCount; i++ {
		worker := i
		s.workers.Go(func() { s.work(worker) })
	}

	s.logger.Info("path service started",
		zap.Int("workers", s.workerCount),
		zap.Int("nodes", g.Len()),
		zap.Int("edges", g.EdgeCount()),
		zap.Bool("indexed", g.Indexed()))
	return s
}

// Workers returns the size of the worker pool.
func (s *Service) Workers() int {
	return s.workerCount
}

// Graph returns the graph the workers search.
func (s *Service) Graph() *navgraph.Graph {
	return s.finder.Graph()
}

// SubmitPathRequests enqueues queries in order and returns their ids in the
// same order. It never blocks on search work and is safe to call from any
// goroutine.
func (s *Service) SubmitPathRequests(queries []Query) ([]RequestID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	ids := make([]RequestID, len(queries))
	requests := make([]Request, len(queries))
	for i, q := range queries {
		ids[i] = RequestID(s.nextID.Add(1))
		requests[i] = Request{ID: ids[i], Query: q}
	}
	if len(requests) == 0 {
		return ids, nil
	}

	// inbound closes only under the write lock, so this cannot fail with ids handed out
	if err := s.inbound.PushAll(requests); err != nil {
		return nil, fmt.Errorf("submit %d requests: %w", len(requests), err)
	}
	requestsSubmittedCounter.Add(float64(len(requests)))
	s.logger.Debug("path requests submitted",
		zap.Int("count", len(requests)),
		zap.Uint64("first_id", uint64(ids[0])),
		zap.Uint64("last_id", uint64(ids[len(ids)-1])))
	return ids, nil
}

// CollectResults returns every result completed since the previous call. It
// never blocks and may return nothing.
func (s *Service) CollectResults() []Result {
	return s.outbound.Drain()
}

// Pending returns the number of accepted requests no worker has taken yet.
func (s *Service) Pending() int {
	return s.inbound.Len()
}

// Close stops accepting requests, lets the workers finish everything already
// accepted and waits for them to exit. Results stay collectable afterwards.
// Close reports ErrWorkerPanic if any worker died; later calls return the same
// error.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.inbound.Close()
		s.mu.Unlock()

		if recovered := s.workers.WaitAndRecover(); recovered != nil {
			s.logger.Error("path worker panicked",
				zap.String("panic", recovered.String()))
			s.closeErr = fmt.Errorf("%w: %v", ErrWorkerPanic, recovered.Value)
		}
		s.outbound.Close()
		s.logger.Info("path service stopped", zap.Uint64("requests", s.nextID.Load()))
	})
	return s.closeErr
}

// work is the worker loop. It blocks on the inbound queue and exits once the
// queue is closed and drained.
func (s *Service) work(worker int) {
	s.logger.Debug("path worker started", zap.Int("worker", worker))
	defer s.logger.Debug("path worker stopped", zap.Int("worker", worker))

	for {
		req, ok := s.inbound.Pop()
		if !ok {
			return
		}

		result := s.process(req)
		if err := s.outbound.Push(result); err != nil {
			resultDropsCounter.Inc()
			s.logger.Debug("path result dropped",
				zap.Int("worker", worker),
				zap.Uint64("request_id", uint64(req.ID)),
				zap.Error(err))
		}
	}
}

func (s *Service) process(req Request) Result {
	_, span := tracer.Start(context.Background(), "pathservice.process",
		trace.WithAttributes(attribute.Int64("request_id", int64(req.ID))))
	defer span.End()

	if s.beforeSearch != nil {
		s.beforeSearch(req)
	}

	start := time.Now()
	outcome := s.finder.Find(req.Start, req.Goal)
	searchDurationHistogram.Observe(time.Since(start).Seconds())
	nodesExpandedHistogram.Observe(float64(outcome.Expanded))
	resultsCounter.WithLabelValues(outcomeLabel(outcome.Found)).Inc()

	span.SetAttributes(
		attribute.Bool("found", outcome.Found),
		attribute.Int("expanded", outcome.Expanded),
	)

	result := Result{
		ID:       req.ID,
		Expanded: outcome.Expanded,
	}
	if outcome.Found {
		result.Waypoints = outcome.Waypoints
		result.Cost = outcome.Cost
		if s.simplify {
			result.Waypoints = pathfinding.SimplifyRoute(outcome.Waypoints, s.simplifyEpsilon)
		}
	}
	return result
}
