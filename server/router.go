package server

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"agent-navigator/internal/logger"
	"agent-navigator/internal/queue"
	"agent-navigator/pathservice"
)

const (
	defaultPollInterval    = 2 * time.Millisecond
	defaultMaxPollInterval = 100 * time.Millisecond

	// defaultMailboxLimit bounds the results held for GET /paths/results.
	defaultMailboxLimit = 100_000
)

// subscriber is a stream connection waiting for the results of its requests.
type subscriber struct {
	outbox  *queue.Queue[streamMessage]
	pending map[pathservice.RequestID]struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{
		outbox:  queue.New[streamMessage](),
		pending: make(map[pathservice.RequestID]struct{}),
	}
}

// Router is the only consumer of a service's results. It routes each result to
// the stream that submitted the request, or to a mailbox read by
// GET /paths/results. The mailbox holds at most mailboxLimit results; when it
// overflows the oldest are discarded.
type Router struct {
	service *pathservice.Service
	logger  logger.Logger

	pollInterval    time.Duration
	maxPollInterval time.Duration
	mailboxLimit    int

	mu sync.Mutex
	// owners maps claimed ids to their stream; nil marks an id whose stream is gone.
	owners  map[pathservice.RequestID]*subscriber
	mailbox []pathservice.Result
}

func newRouter(service *pathservice.Service, l logger.Logger, poll time.Duration, mailboxLimit int) *Router {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	if mailboxLimit <= 0 {
		mailboxLimit = defaultMailboxLimit
	}
	return &Router{
		service:         service,
		logger:          l,
		pollInterval:    poll,
		maxPollInterval: max(poll, defaultMaxPollInterval),
		mailboxLimit:    mailboxLimit,
		owners:          make(map[pathservice.RequestID]*subscriber),
	}
}

// Run polls the service until ctx is done. The poll interval backs off
// exponentially while no results arrive and resets as soon as one does.
func (r *Router) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.pollInterval),
		backoff.WithMaxInterval(r.maxPollInterval),
		backoff.WithMaxElapsedTime(0),
	)

	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.route(r.service.CollectResults())
			return nil
		case <-timer.C:
		}

		if results := r.service.CollectResults(); len(results) > 0 {
			r.route(results)
			b.Reset()
		}
		timer.Reset(b.NextBackOff())
	}
}

func (r *Router) route(results []pathservice.Result) {
	if len(results) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, result := range results {
		sub, claimed := r.owners[result.ID]
		if !claimed {
			r.mailbox = append(r.mailbox, result)
			continue
		}
		delete(r.owners, result.ID)
		if sub == nil {
			r.logger.Debug("dropping result for closed stream", zap.Uint64("request_id", uint64(result.ID)))
			resultDropsCounter.WithLabelValues(dropStreamGone).Inc()
			continue
		}
		delete(sub.pending, result.ID)
		res := result
		if err := sub.outbox.Push(streamMessage{Type: messageResult, Result: &res}); err != nil {
			r.logger.Debug("dropping result for closed stream", zap.Uint64("request_id", uint64(result.ID)))
			resultDropsCounter.WithLabelValues(dropStreamGone).Inc()
		}
	}

	if overflow := len(r.mailbox) - r.mailboxLimit; overflow > 0 {
		r.logger.Warn("mailbox full, dropping oldest results", zap.Int("dropped", overflow))
		resultDropsCounter.WithLabelValues(dropMailboxFull).Add(float64(overflow))
		r.mailbox = r.mailbox[overflow:]
	}
}

// submit enqueues queries on behalf of sub. Submission and claiming happen
// under the routing lock, so no result can reach the mailbox first.
func (r *Router) submit(sub *subscriber, queries []pathservice.Query) ([]pathservice.RequestID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.service.SubmitPathRequests(queries)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		r.owners[id] = sub
		sub.pending[id] = struct{}{}
	}
	if err := sub.outbox.Push(streamMessage{Type: messageIDs, IDs: ids}); err != nil {
		r.logger.Debug("stream closed before ids were sent", zap.Error(err))
	}
	return ids, nil
}

// release detaches sub. Results still outstanding for it are discarded.
func (r *Router) release(sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range sub.pending {
		r.owners[id] = nil
	}
	clear(sub.pending)
	sub.outbox.Close()
}

// takeMailbox returns and clears the results no stream claimed.
func (r *Router) takeMailbox() []pathservice.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.mailbox
	r.mailbox = nil
	return out
}
