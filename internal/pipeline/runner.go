package pipeline

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"cloud.google.com/go/dlp/apiv2/dlppb"

	"scrub/internal/dlp"
	"scrub/internal/element"
	"scrub/internal/logging"
	"scrub/internal/telemetry"
	"scrub/sink"
)

const workerQueueDepth = 256

// Source is what the runner drains: a stream of (key, content) records.
// Run returning nil is the end-of-stream signal that flushes open batches.
type Source interface {
	Run(context.Context, element.EmitFunc) error
	Close() error
}

// BatchCaller issues one remote call per flushed batch.
type BatchCaller interface {
	Deidentify(context.Context, *dlp.Batch) (*dlppb.DeidentifyContentResponse, error)
}

// RetryPolicy is the engine-side retry applied around each batch call.
// Attempts is the number of retries after the first failure.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Runner routes records from the source to workers by key hash, so every
// key is owned by exactly one worker's sequential loop, and fans each
// worker's results out to the sinks.
type Runner struct {
	source  Source
	sinks   []sink.Adapter
	retry   RetryPolicy
	workers []*worker

	sinkMu sync.Mutex
	wg     sync.WaitGroup

	errMu  sync.Mutex
	runErr error
}

type worker struct {
	in     chan element.Record
	shaper *dlp.Shaper
	packer *dlp.Packer
	caller BatchCaller
}

func NewRunner(retry RetryPolicy) *Runner { return &Runner{retry: retry} }

func (r *Runner) SetSource(s Source)     { r.source = s }
func (r *Runner) AddSink(s sink.Adapter) { r.sinks = append(r.sinks, s) }

// AddWorker registers one processing unit owning its own shaper, packer,
// and caller. Workers must all be added before Run.
func (r *Runner) AddWorker(sh *dlp.Shaper, p *dlp.Packer, c BatchCaller) {
	r.workers = append(r.workers, &worker{
		in:     make(chan element.Record, workerQueueDepth),
		shaper: sh,
		packer: p,
		caller: c,
	})
}

// Run drains the source to completion. On a clean end of stream every
// worker flushes its open batches before Run returns; on cancellation or
// worker failure partial batches are abandoned.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner: no source configured")
	}
	if len(r.workers) == 0 {
		return errors.New("runner: no workers configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, w := range r.workers {
		r.wg.Add(1)
		go func(w *worker) {
			defer r.wg.Done()
			if err := r.runWorker(ctx, w); err != nil && !errors.Is(err, context.Canceled) {
				r.setErr(err)
				cancel()
			}
		}(w)
	}

	srcErr := r.source.Run(ctx, func(rec element.Record) error {
		return r.route(ctx, rec)
	})

	for _, w := range r.workers {
		close(w.in)
	}
	r.wg.Wait()

	if err := r.err(); err != nil {
		return err
	}
	if srcErr != nil && !errors.Is(srcErr, context.Canceled) {
		return srcErr
	}
	return nil
}

// Close releases the source and the sinks; idempotent per adapter.
func (r *Runner) Close() error {
	var first error
	if r.source != nil {
		if err := r.source.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

/*──────── record routing ───────*/

func (r *Runner) route(ctx context.Context, rec element.Record) error {
	telemetry.RecordsIn.Inc()
	w := r.workers[keyHash(rec.Key)%uint32(len(r.workers))]
	select {
	case w.in <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func keyHash(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32()
}

/*──────── worker loop ───────*/

func (r *Runner) runWorker(ctx context.Context, w *worker) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-w.in:
			if !ok {
				if ctx.Err() != nil {
					// Cancelled: open batches are abandoned, not flushed.
					return ctx.Err()
				}
				// End of stream: drain every open batch.
				for _, b := range w.packer.FlushAll() {
					if err := r.dispatch(ctx, w, b); err != nil {
						return err
					}
				}
				return nil
			}
			row, err := w.shaper.Shape(rec.Content)
			if err != nil {
				telemetry.RecordsRejected.Inc()
				logging.L().Warn("record rejected", "key", rec.Key, "err", err)
				continue
			}
			if flushed := w.packer.Add(rec.Key, row); flushed != nil {
				if err := r.dispatch(ctx, w, flushed); err != nil {
					return err
				}
			}
		}
	}
}

// dispatch calls the service for one batch, applying the retry policy,
// then pushes the result to every sink. An error after all attempts is
// fatal for the pipeline.
func (r *Runner) dispatch(ctx context.Context, w *worker, b *dlp.Batch) error {
	resp, err := w.caller.Deidentify(ctx, b)
	for i := 0; err != nil && i < r.retry.Attempts; i++ {
		telemetry.ServiceRetries.Inc()
		logging.L().Warn("batch call failed, retrying",
			"key", b.Key, "rows", len(b.Rows), "attempt", i+1, "err", err)
		select {
		case <-time.After(r.retry.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		resp, err = w.caller.Deidentify(ctx, b)
	}
	if err != nil {
		return err
	}
	return r.push(element.Result{Key: b.Key, Response: resp})
}

func (r *Runner) push(res element.Result) error {
	r.sinkMu.Lock()
	defer r.sinkMu.Unlock()
	for _, s := range r.sinks {
		if err := s.Push(res); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) setErr(err error) {
	r.errMu.Lock()
	if r.runErr == nil {
		r.runErr = err
	}
	r.errMu.Unlock()
}

func (r *Runner) err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.runErr
}
