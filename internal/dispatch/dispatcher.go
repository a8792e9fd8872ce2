// Package dispatch fans newly claimed, risk-scored tokens out to
// eligible subscribers through a DeliveryChannel.
package dispatch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/observability"
	"pumpfun-sentinel/internal/storage"
)

// Default configuration values.
const (
	DefaultWorkers     = 8
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
)

// Renderer turns a claimed token and its assessment into the message
// text delivered to subscribers.
type Renderer func(t *domain.Token, r *domain.RiskAssessment) string

// SubscriberRegistry is the slice of the registry the dispatcher needs.
type SubscriberRegistry interface {
	EligibleSubscribers(ctx context.Context) ([]*domain.Subscriber, error)
	MarkDeliveryFailed(ctx context.Context, userID int64) error
}

// Archiver records delivery outcomes to the audit archive.
type Archiver interface {
	RecordDeliveries(ctx context.Context, jobs []*domain.NotificationJob, recordedAtMs int64) error
}

// Stats counts per-dispatch outcomes.
type Stats struct {
	JobsCreated int
	Delivered   int
	Retrying    int
	Failed      int
	Skipped     int // jobs already terminal from a prior run
}

// Options configures a Dispatcher.
type Options struct {
	Jobs     storage.JobStore
	Registry SubscriberRegistry
	Channel  DeliveryChannel
	Render   Renderer

	Workers     int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	Archive Archiver // optional
	Logger  *log.Logger
}

// Dispatcher delivers one alert per (token, subscriber) pair, exactly
// once per pair, with bounded concurrency and per-job sequential
// attempts.
type Dispatcher struct {
	jobs     storage.JobStore
	registry SubscriberRegistry
	channel  DeliveryChannel
	render   Renderer

	workers     int
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	archive Archiver
	logger  *log.Logger
	now     func() time.Time

	// Channel-wide cooldown set on RateLimitError.
	pauseMu     sync.Mutex
	pausedUntil time.Time
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Dispatcher{
		jobs:        opts.Jobs,
		registry:    opts.Registry,
		channel:     opts.Channel,
		render:      opts.Render,
		workers:     workers,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		archive:     opts.Archive,
		logger:      logger,
		now:         time.Now,
	}
}

// Dispatch fans the token out to every currently subscribed user and
// blocks until all deliveries reach a rest state (Delivered, Failed, or
// Retrying after context cancellation). Per-subscriber failures are
// contained; only loading the subscriber list can fail the call.
func (d *Dispatcher) Dispatch(ctx context.Context, token *domain.Token, assessment *domain.RiskAssessment) (*Stats, error) {
	subs, err := d.registry.EligibleSubscribers(ctx)
	if err != nil {
		return nil, err
	}
	observability.UpdateActiveSubscribers(len(subs))
	if len(subs) == 0 {
		return &Stats{}, nil
	}

	message := d.render(token, assessment)

	stats := &Stats{}
	var statsMu sync.Mutex
	var outcomes []*domain.NotificationJob

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, sub := range subs {
		userID := sub.UserID
		g.Go(func() error {
			job, created, skipped := d.deliverOne(gctx, token.Address, userID, message)

			statsMu.Lock()
			defer statsMu.Unlock()
			if created {
				stats.JobsCreated++
			}
			if skipped {
				stats.Skipped++
			}
			if job == nil {
				return nil
			}
			outcomes = append(outcomes, job)
			switch job.Status {
			case domain.JobDelivered:
				stats.Delivered++
			case domain.JobFailed:
				stats.Failed++
			case domain.JobRetrying, domain.JobPending:
				stats.Retrying++
			}
			return nil
		})
	}
	_ = g.Wait()

	statsMu.Lock()
	defer statsMu.Unlock()

	if d.archive != nil && len(outcomes) > 0 {
		if err := d.archive.RecordDeliveries(ctx, outcomes, d.now().UnixMilli()); err != nil {
			d.logger.Printf("archive delivery outcomes: %v", err)
		}
	}
	return stats, nil
}

// deliverOne drives a single (token, subscriber) job to a rest state.
// A nil job means the pair produced no new outcome (create failure, or
// a job already terminal from a prior run).
func (d *Dispatcher) deliverOne(ctx context.Context, tokenAddress string, userID int64, message string) (job *domain.NotificationJob, created, skipped bool) {
	nowMs := d.now().UnixMilli()
	job, created, err := d.jobs.CreateOrGet(ctx, &domain.NotificationJob{
		TokenAddress: tokenAddress,
		UserID:       userID,
		Status:       domain.JobPending,
		CreatedAt:    nowMs,
		UpdatedAt:    nowMs,
	})
	if err != nil {
		d.logger.Printf("create job (%s, %d): %v", tokenAddress, userID, err)
		return nil, false, false
	}
	if !created && job.Terminal() {
		// Left over from a prior run; nothing to redo.
		return nil, false, true
	}

	d.attemptLoop(ctx, job, message)
	return job, created, false
}

// attemptLoop runs strictly sequential attempts for one job until it
// is Delivered, Failed, or the context is cancelled (leaving it
// Retrying for the next process start).
func (d *Dispatcher) attemptLoop(ctx context.Context, job *domain.NotificationJob, message string) {
	for {
		if err := d.waitReady(ctx); err != nil {
			return
		}

		sendStart := d.now()
		err := d.channel.Send(ctx, job.UserID, message)
		observability.ObserveSendLatency(d.now().Sub(sendStart).Seconds())
		if err == nil {
			job.Status = domain.JobDelivered
			job.Attempts++
			job.LastError = ""
			d.saveJob(ctx, job)
			return
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		if rl, ok := asRateLimit(err); ok {
			// Provider cooldown: pause the whole channel, do not
			// consume an attempt.
			d.pause(rl.RetryAfter)
			continue
		}

		if isPermanent(err) {
			job.Status = domain.JobFailed
			job.Attempts++
			job.LastError = err.Error()
			d.saveJob(ctx, job)
			if uerr := d.registry.MarkDeliveryFailed(ctx, job.UserID); uerr != nil {
				d.logger.Printf("auto-unsubscribe %d: %v", job.UserID, uerr)
			}
			return
		}

		// Transient (including unclassified) failure.
		job.Attempts++
		job.LastError = err.Error()
		if job.Attempts >= d.maxAttempts {
			// Exhausted without a permanent rejection: fail the job
			// but keep the subscriber.
			job.Status = domain.JobFailed
			d.saveJob(ctx, job)
			return
		}
		job.Status = domain.JobRetrying
		d.saveJob(ctx, job)

		wait := d.baseDelay << (job.Attempts - 1)
		if wait > d.maxDelay {
			wait = d.maxDelay
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// waitReady blocks while the channel-wide rate-limit cooldown is active.
func (d *Dispatcher) waitReady(ctx context.Context) error {
	for {
		d.pauseMu.Lock()
		until := d.pausedUntil
		d.pauseMu.Unlock()

		wait := time.Until(until)
		if wait <= 0 {
			return ctx.Err()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// pause extends the channel-wide cooldown.
func (d *Dispatcher) pause(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	observability.RecordRateLimitPause()
	until := d.now().Add(retryAfter)

	d.pauseMu.Lock()
	if until.After(d.pausedUntil) {
		d.pausedUntil = until
	}
	d.pauseMu.Unlock()
}

// ResumeRetrying picks up jobs left Pending or Retrying by a previous
// process (shutdown mid-delivery) and drives them to a rest state. The
// message is re-rendered from the stored token and assessment; jobs
// whose token or assessment is gone are failed.
func (d *Dispatcher) ResumeRetrying(ctx context.Context, tokens storage.TokenStore) (*Stats, error) {
	var pending []*domain.NotificationJob
	for _, status := range []domain.JobStatus{domain.JobRetrying, domain.JobPending} {
		jobs, err := d.jobs.ListByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		pending = append(pending, jobs...)
	}
	if len(pending) == 0 {
		return &Stats{}, nil
	}

	// Messages are identical for every subscriber of a token; render
	// each token once.
	messages := make(map[string]string)

	stats := &Stats{}
	var statsMu sync.Mutex
	var outcomes []*domain.NotificationJob

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, job := range pending {
		message, ok := messages[job.TokenAddress]
		if !ok {
			token, err := tokens.GetByAddress(ctx, job.TokenAddress)
			if err == nil {
				var assessment *domain.RiskAssessment
				assessment, err = tokens.GetAssessment(ctx, job.TokenAddress)
				if err == nil {
					message = d.render(token, assessment)
				}
			}
			if err != nil {
				d.logger.Printf("resume %s: load token: %v", job.TokenAddress, err)
				messages[job.TokenAddress] = ""
			} else {
				messages[job.TokenAddress] = message
			}
		}
		if message == "" {
			job.Status = domain.JobFailed
			job.LastError = "token no longer available"
			d.saveJob(ctx, job)
			statsMu.Lock()
			stats.Failed++
			outcomes = append(outcomes, job)
			statsMu.Unlock()
			continue
		}

		job := job
		g.Go(func() error {
			d.attemptLoop(gctx, job, message)

			statsMu.Lock()
			defer statsMu.Unlock()
			outcomes = append(outcomes, job)
			switch job.Status {
			case domain.JobDelivered:
				stats.Delivered++
			case domain.JobFailed:
				stats.Failed++
			case domain.JobRetrying, domain.JobPending:
				stats.Retrying++
			}
			return nil
		})
	}
	_ = g.Wait()

	statsMu.Lock()
	defer statsMu.Unlock()

	if d.archive != nil && len(outcomes) > 0 {
		if err := d.archive.RecordDeliveries(ctx, outcomes, d.now().UnixMilli()); err != nil {
			d.logger.Printf("archive delivery outcomes: %v", err)
		}
	}
	return stats, nil
}

func (d *Dispatcher) saveJob(ctx context.Context, job *domain.NotificationJob) {
	job.UpdatedAt = d.now().UnixMilli()
	if err := d.jobs.Update(ctx, job); err != nil {
		d.logger.Printf("update job (%s, %d): %v", job.TokenAddress, job.UserID, err)
	}
}
