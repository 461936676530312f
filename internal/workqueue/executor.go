// Package workqueue runs jobs on shards picked by a stable hash of their key.
// Jobs sharing a key run one at a time in submission order; different keys
// may run in parallel.
package workqueue

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Shards         int
	QueueSize      int
	EnqueueTimeout time.Duration
	// MaxAttempts bounds how often a job failing with a retryable error runs.
	MaxAttempts int
	BaseBackoff time.Duration
	MaxInterval time.Duration
	// ErrorHandler sees the final error of jobs submitted without Do.
	ErrorHandler func(key string, err error)
}

func (c *Config) applyDefaults() {
	if c.Shards <= 0 {
		c.Shards = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = 100 * time.Millisecond
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 100 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 10 * time.Second
	}
}

type queuedJob struct {
	ctx    context.Context
	key    string
	job    Job
	result chan<- error // nil for fire-and-forget
}

type Executor struct {
	cfg    Config
	queues []chan queuedJob

	done   chan struct{}
	closed uint32

	wg sync.WaitGroup
}

// New starts the shard workers.
func New(cfg Config) *Executor {
	cfg.applyDefaults()
	e := &Executor{
		cfg:    cfg,
		queues: make([]chan queuedJob, cfg.Shards),
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		e.queues[i] = ch
		e.wg.Add(1)
		go e.runWorker(i, ch)
	}
	return e
}

// Submit enqueues job on the shard for key without waiting for it to run.
func (e *Executor) Submit(ctx context.Context, key string, job Job) error {
	return e.enqueue(ctx, queuedJob{ctx: ctx, key: key, job: job})
}

// Do runs job on key's shard and waits for its final result. The job runs
// on a context detached from ctx's cancellation: if ctx ends first Do
// returns ctx.Err() and the job still completes.
func (e *Executor) Do(ctx context.Context, key string, job Job) error {
	result := make(chan error, 1)
	qj := queuedJob{ctx: context.WithoutCancel(ctx), key: key, job: job, result: result}
	if err := e.enqueue(ctx, qj); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) enqueue(ctx context.Context, qj queuedJob) error {
	if atomic.LoadUint32(&e.closed) == 1 {
		return ErrExecutorClosed
	}
	select {
	case <-e.done:
		return ErrExecutorClosed
	default:
	}

	shard := e.shardFor(qj.key)
	ch := e.queues[shard]

	timer := time.NewTimer(e.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- qj:
		submissionsTotal.WithLabelValues(labelFor(shard)).Inc()
		queueDepth.WithLabelValues(labelFor(shard)).Set(float64(len(ch)))
		return nil
	case <-e.done:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		queueFullTotal.WithLabelValues(labelFor(shard)).Inc()
		return &QueueFullError{Shard: shard, Length: len(ch), Capacity: cap(ch)}
	}
}

// Barrier waits until every job submitted for key before it has finished.
func (e *Executor) Barrier(ctx context.Context, key string) error {
	return e.Do(ctx, key, JobFunc(func(context.Context) error { return nil }))
}

// Stop lets every worker drain its queue and waits for them. Idempotent.
func (e *Executor) Stop() {
	if !atomic.CompareAndSwapUint32(&e.closed, 0, 1) {
		return
	}
	log.Info().Int("shards", e.cfg.Shards).Msg("workqueue: stopping, draining shards")
	close(e.done)
	e.wg.Wait()
	log.Info().Msg("workqueue: stopped")
}

func (e *Executor) Close() error {
	e.Stop()
	return nil
}

func (e *Executor) runWorker(idx int, ch <-chan queuedJob) {
	defer e.wg.Done()
	label := labelFor(idx)

	for {
		select {
		case qj := <-ch:
			e.finish(qj, e.runWithRetry(label, qj), label)
			queueDepth.WithLabelValues(label).Set(float64(len(ch)))

		case <-e.done:
			// drain what was accepted before Stop, once each, in order
			for {
				select {
				case qj := <-ch:
					e.finish(qj, runOnce(qj), label)
				default:
					queueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

func (e *Executor) runWithRetry(label string, qj queuedJob) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = e.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	for attempt := 1; ; attempt++ {
		if err := qj.ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := runOnce(qj)
		runDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

		if err == nil || !IsRetryable(err) || attempt >= e.cfg.MaxAttempts {
			return err
		}

		retriesTotal.WithLabelValues(label).Inc()
		wait := exp.NextBackOff()
		log.Warn().Err(err).Str("key", qj.key).Int("attempt", attempt).Dur("backoff", wait).Msg("workqueue: retrying job")

		select {
		case <-time.After(wait):
		case <-e.done:
			return err
		case <-qj.ctx.Done():
			return qj.ctx.Err()
		}
	}
}

// runOnce shields the worker from a panicking job.
func runOnce(qj queuedJob) (err error) {
	if qj.job == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("key", qj.key).Msg("workqueue: job panicked")
			err = &PanicError{Value: r}
		}
	}()
	return qj.job.Run(qj.ctx)
}

func (e *Executor) finish(qj queuedJob, err error, label string) {
	if err != nil {
		failuresTotal.WithLabelValues(label).Inc()
	}
	if qj.result != nil {
		qj.result <- err
		return
	}
	if err != nil && e.cfg.ErrorHandler != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("workqueue: error handler panicked")
				}
			}()
			e.cfg.ErrorHandler(qj.key, err)
		}()
	}
}

func (e *Executor) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(e.cfg.Shards))
}
