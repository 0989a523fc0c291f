// Package batch runs many invocations concurrently.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kolah/courier/engine"
	"github.com/kolah/courier/internal/binding"
	"go.yaml.in/yaml/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the default number of concurrent calls.
const DefaultConcurrency = 5

// File is a batch file:
//
//	concurrency: 4
//	calls:
//	  - operation: getPet
//	    params: {petId: "1"}
type File struct {
	Concurrency int64                `yaml:"concurrency"`
	Calls       []binding.Invocation `yaml:"calls"`
}

// Load reads and parses a batch file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	return Parse(data)
}

// Parse parses a batch file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing batch file: %w", err)
	}
	if len(f.Calls) == 0 {
		return nil, errors.New("batch file has no calls")
	}
	for i, c := range f.Calls {
		if c.Operation == "" {
			return nil, fmt.Errorf("call %d: operation is required", i+1)
		}
	}
	if f.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must not be negative, got %d", f.Concurrency)
	}
	return &f, nil
}

// Result is the outcome of one call.
type Result struct {
	Index     int
	Operation string
	Response  *engine.Response
	Err       error
	Duration  time.Duration
}

// Success reports whether the call produced a defined response.
func (r Result) Success() bool {
	return r.Err == nil && r.Response != nil && r.Response.Outcome == engine.OutcomeDefined
}

// Runner executes one invocation.
type Runner func(ctx context.Context, inv binding.Invocation) (*engine.Response, error)

// Run executes the calls with bounded parallelism. Results are returned in
// call order. Calls not started before ctx is cancelled report ctx.Err().
// Progress is written to progress when it is not nil.
func Run(ctx context.Context, calls []binding.Invocation, concurrency int64, run Runner, progress io.Writer) []Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	sem := semaphore.NewWeighted(concurrency)
	results := make([]Result, len(calls))
	total := len(calls)
	var done int64
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)

	for i, call := range calls {
		results[i] = Result{Index: i, Operation: call.Operation}

		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i].Err = err
				return nil
			}
			defer sem.Release(1)

			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			start := time.Now()
			resp, err := run(ctx, call)
			results[i].Response = resp
			results[i].Err = err
			results[i].Duration = time.Since(start)

			if progress != nil {
				current := atomic.AddInt64(&done, 1)
				mu.Lock()
				_, _ = fmt.Fprintf(progress, "\rProcessed %d/%d", current, total)
				mu.Unlock()
			}

			// Individual failures do not cancel the remaining calls.
			return nil
		})
	}

	_ = g.Wait()

	if progress != nil && total > 0 {
		_, _ = fmt.Fprintf(progress, "\rProcessed %d/%d\n", atomic.LoadInt64(&done), total)
	}

	return results
}

// Count returns success and failure counts.
func Count(results []Result) (success, failure int) {
	for _, r := range results {
		if r.Success() {
			success++
		} else {
			failure++
		}
	}
	return
}
