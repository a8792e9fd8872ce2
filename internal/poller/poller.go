// Package poller orchestrates the ingest pipeline: fetch new launches
// from the feed, claim first sightings, assess risk and fan alerts out
// to subscribers.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pumpfun-sentinel/internal/dedup"
	"pumpfun-sentinel/internal/dispatch"
	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/feed"
	"pumpfun-sentinel/internal/observability"
	"pumpfun-sentinel/internal/risk"
	"pumpfun-sentinel/internal/storage"
)

// Default configuration values.
const (
	DefaultInterval  = 30 * time.Second
	DefaultHotSetTTL = time.Hour
)

// Source fetches pages of new token launches.
type Source interface {
	FetchNewTokens(ctx context.Context, cursor string) ([]feed.RawToken, string, error)
}

// AlertRecorder archives claimed tokens and their assessments.
type AlertRecorder interface {
	RecordAlert(ctx context.Context, t *domain.Token, r *domain.RiskAssessment) error
}

// Options contains configuration for creating a Poller.
type Options struct {
	Source     Source
	Stream     *feed.Stream // optional push intake alongside polling
	Tokens     storage.TokenStore
	Cursors    storage.CursorStore
	Assessor   *risk.Assessor
	Dispatcher *dispatch.Dispatcher

	Interval  time.Duration
	HotSetTTL time.Duration

	Archive AlertRecorder // optional
	Logger  *log.Logger
}

// Poller drives periodic poll cycles and, optionally, a streaming
// intake over the same pipeline.
type Poller struct {
	source     Source
	stream     *feed.Stream
	tokens     storage.TokenStore
	cursors    storage.CursorStore
	assessor   *risk.Assessor
	dispatcher *dispatch.Dispatcher

	interval  time.Duration
	hotSetTTL time.Duration

	archive AlertRecorder
	logger  *log.Logger
	now     func() time.Time

	hot *dedup.HotSet

	// Guards against overlapping cycles when one runs long.
	cycleMu sync.Mutex

	cursorMu sync.Mutex
	cursor   string
}

// New creates a Poller.
func New(opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	hotSetTTL := opts.HotSetTTL
	if hotSetTTL <= 0 {
		hotSetTTL = DefaultHotSetTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Poller{
		source:     opts.Source,
		stream:     opts.Stream,
		tokens:     opts.Tokens,
		cursors:    opts.Cursors,
		assessor:   opts.Assessor,
		dispatcher: opts.Dispatcher,
		interval:   interval,
		hotSetTTL:  hotSetTTL,
		archive:    opts.Archive,
		logger:     logger,
		now:        time.Now,
		hot:        dedup.NewHotSet(1024),
	}
}

// Run blocks until the context is cancelled. The first cycle runs
// immediately to catch up after downtime; subsequent cycles fire on
// the interval. A cycle that overruns the interval causes the next
// tick to be skipped rather than overlapped.
func (p *Poller) Run(ctx context.Context) error {
	cursor, err := p.cursors.Get(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	p.cursor = cursor
	p.logger.Printf("[poller] starting, interval %s, cursor %q", p.interval, cursor)

	g, gctx := errgroup.WithContext(ctx)

	if p.stream != nil {
		tokensCh, err := p.stream.Subscribe(gctx)
		if err != nil {
			return err
		}
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case raw, ok := <-tokensCh:
					if !ok {
						return nil
					}
					if err := p.handleRaw(gctx, &raw); err != nil {
						p.logger.Printf("[poller] stream token: %v", err)
					}
				}
			}
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		evict := time.NewTicker(time.Minute)
		defer evict.Stop()

		p.RunOnce(gctx)

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-evict.C:
				p.hot.Evict(p.now().UnixMilli())
				observability.UpdateHotSetSize(p.hot.Len())
			case <-ticker.C:
				p.RunOnce(gctx)
			}
		}
	})

	err = g.Wait()
	if p.stream != nil {
		p.stream.Wait()
	}
	return err
}

// RunOnce executes a single poll cycle. Returns false when a cycle was
// already in flight and this one was skipped.
func (p *Poller) RunOnce(ctx context.Context) bool {
	if !p.cycleMu.TryLock() {
		p.logger.Println("[poller] cycle still in progress, skipping")
		return false
	}
	defer p.cycleMu.Unlock()

	start := p.now()
	if err := p.runCycle(ctx); err != nil {
		observability.RecordPollCycle("error", p.now().Sub(start).Seconds())
		if !errors.Is(err, context.Canceled) {
			p.logger.Printf("[poller] cycle failed: %v", err)
		}
		return true
	}
	observability.RecordPollCycle("ok", p.now().Sub(start).Seconds())
	observability.DefaultMetrics.LastSuccessfulPoll.Set(float64(p.now().Unix()))
	return true
}

func (p *Poller) runCycle(ctx context.Context) error {
	p.cursorMu.Lock()
	cursor := p.cursor
	p.cursorMu.Unlock()

	rawTokens, next, err := p.source.FetchNewTokens(ctx, cursor)
	if err != nil {
		return err
	}
	observability.RecordTokensFetched(len(rawTokens))

	for i := range rawTokens {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Malformed records are dropped inside handleRaw; an error here
		// means the store or dispatcher is unhealthy, so the cycle
		// aborts and the page is replayed on the next tick.
		if err := p.handleRaw(ctx, &rawTokens[i]); err != nil {
			return fmt.Errorf("token %s: %w", rawTokens[i].TokenAddress, err)
		}
	}

	// The cursor advances only after the whole batch has been handed
	// off, so a crash mid-batch replays rather than skips.
	if next != "" && next != cursor {
		if err := p.cursors.Set(ctx, next); err != nil {
			return err
		}
		p.cursorMu.Lock()
		p.cursor = next
		p.cursorMu.Unlock()
	}
	return nil
}

// handleRaw pushes one feed record through validate, claim, assess and
// dispatch. Duplicates and malformed records are dropped silently.
func (p *Poller) handleRaw(ctx context.Context, raw *feed.RawToken) error {
	nowMs := p.now().UnixMilli()

	token, err := raw.ToToken(nowMs)
	if err != nil {
		observability.RecordTokenInvalid()
		p.logger.Printf("[poller] dropping malformed record %q: %v", raw.TokenAddress, err)
		return nil
	}

	if p.hot.SeenOrAdd(token.Address, nowMs+p.hotSetTTL.Milliseconds(), nowMs) {
		observability.RecordTokenDuplicate()
		return nil
	}

	claimed, err := p.tokens.Claim(ctx, token)
	if err != nil {
		// The claim never happened, so forget the address: the replayed
		// page must get another shot instead of a hot-set hit.
		p.hot.Remove(token.Address)
		return err
	}
	if !claimed {
		observability.RecordTokenDuplicate()
		return nil
	}
	observability.RecordTokenClaimed()

	assessment := p.assessor.Assess(token, nowMs)
	if err := p.tokens.SaveAssessment(ctx, assessment); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return err
	}
	observability.RecordAssessment(string(assessment.OverallRiskLevel))

	if p.archive != nil {
		if err := p.archive.RecordAlert(ctx, token, assessment); err != nil {
			p.logger.Printf("[poller] archive alert %s: %v", token.Address, err)
		}
	}

	stats, err := p.dispatcher.Dispatch(ctx, token, assessment)
	if err != nil {
		return err
	}
	observability.RecordJobsCreated(stats.JobsCreated)
	observability.RecordDeliveries(stats.Delivered, stats.Retrying, stats.Failed)
	p.logger.Printf("[poller] %s %s risk=%s delivered=%d retrying=%d failed=%d",
		token.Symbol, token.Address, assessment.OverallRiskLevel,
		stats.Delivered, stats.Retrying, stats.Failed)
	return nil
}
