// Package batch runs a worker over fixed-size chunks of input, one chunk at a time, waiting a
// fixed delay between chunks so that upstream rate limits are respected.
package batch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/utils"
)

var (
	// MatchPolicy is used when matching declared packages against the advisory API.
	MatchPolicy = Policy{Name: "match", Size: 50, Delay: 1500 * time.Millisecond}
	// DetailPolicy is used for per-advisory detail lookups.
	DetailPolicy = Policy{Name: "detail", Size: 6}
)

type Policy struct {
	// Name identifies the job in logs and failure callbacks.
	Name  string
	Size  int
	Delay time.Duration

	// Retry is the number of extra attempts for a failing chunk. Zero disables retries.
	Retry int
	// Wait returns the backoff before the given retry attempt (1-based).
	Wait func(attempt int) time.Duration
	// Sleep blocks for d or until ctx is done. Tests replace it to observe delays.
	Sleep func(ctx context.Context, d time.Duration) error

	ShowProgress bool
	OnFailure    func(job string, chunk int, err error)
}

type Worker[T, R any] func(ctx context.Context, items []T) ([]R, error)

// Run splits items into contiguous chunks of policy.Size and hands them to worker strictly in
// order. A failing chunk is logged and contributes nothing. Cancelling ctx stops the loop and
// returns whatever has been collected so far.
func Run[T, R any](ctx context.Context, items []T, policy Policy, worker Worker[T, R]) []R {
	if len(items) == 0 {
		return nil
	}
	policy = policy.withDefaults(len(items))
	chunks := lo.Chunk(items, policy.Size)

	var bar *pb.ProgressBar
	if policy.ShowProgress {
		bar = pb.StartNew(len(chunks))
		defer bar.Finish()
	}

	var results []R
	for i, chunk := range chunks {
		if i > 0 && policy.Delay > 0 {
			if err := policy.Sleep(ctx, policy.Delay); err != nil {
				log.Printf("%s: stopped before batch %d/%d: %s", policy.Name, i+1, len(chunks), err)
				return results
			}
		}
		if ctx.Err() != nil {
			log.Printf("%s: stopped before batch %d/%d: %s", policy.Name, i+1, len(chunks), ctx.Err())
			return results
		}

		res, err := runChunk(ctx, chunk, policy, worker)
		if err != nil {
			log.Printf("%s: batch %d/%d failed: %s", policy.Name, i+1, len(chunks), err)
			if policy.OnFailure != nil {
				policy.OnFailure(policy.Name, i, err)
			}
		} else {
			results = append(results, res...)
		}
		if bar != nil {
			bar.Increment()
		}
	}
	return results
}

func runChunk[T, R any](ctx context.Context, chunk []T, policy Policy, worker Worker[T, R]) (res []R, err error) {
	for attempt := 0; attempt <= policy.Retry; attempt++ {
		if attempt > 0 {
			wait := policy.Wait(attempt)
			log.Printf("%s: retry after %s", policy.Name, wait)
			if sleepErr := policy.Sleep(ctx, wait); sleepErr != nil {
				return nil, xerrors.Errorf("retry aborted: %w", sleepErr)
			}
		}
		res, err = callWorker(ctx, chunk, worker)
		if err == nil {
			return res, nil
		}
	}
	return nil, err
}

// callWorker turns a worker panic into an ordinary chunk failure.
func callWorker[T, R any](ctx context.Context, chunk []T, worker Worker[T, R]) (res []R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("worker panic: %v", r)
		}
	}()
	return worker(ctx, chunk)
}

func (p Policy) withDefaults(n int) Policy {
	if p.Size <= 0 {
		p.Size = n
	}
	if p.Wait == nil {
		p.Wait = utils.Wait
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}
	if p.Name == "" {
		p.Name = "batch"
	}
	return p
}

// Sleep waits for d, returning early with the context error when ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Concurrent calls fn for every item at once and returns the successful results in input
// order. It is meant to run the requests of a single chunk, so len(items) bounds the
// parallelism.
func Concurrent[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error)) []R {
	type result struct {
		value R
		ok    bool
	}
	results := make([]result, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("concurrent call panicked: %v", r)
				}
			}()
			v, err := fn(ctx, item)
			if err != nil {
				log.Printf("%s", err)
				return
			}
			results[i] = result{value: v, ok: true}
		}(i, item)
	}
	wg.Wait()

	var values []R
	for _, r := range results {
		if r.ok {
			values = append(values, r.value)
		}
	}
	return values
}

// Each builds a Worker that runs every item of a chunk through Concurrent. The chunk fails only
// when none of its items succeeded, so a dead upstream shows up in Policy.OnFailure while single
// misses do not.
func Each[T, R any](fn func(ctx context.Context, item T) (R, error)) Worker[T, R] {
	return func(ctx context.Context, chunk []T) ([]R, error) {
		results := Concurrent(ctx, chunk, fn)
		if len(chunk) > 0 && len(results) == 0 {
			return nil, xerrors.Errorf("all %d requests failed", len(chunk))
		}
		return results, nil
	}
}
