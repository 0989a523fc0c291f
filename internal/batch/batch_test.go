package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kolah/courier/engine"
	"github.com/kolah/courier/internal/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batchFile = `concurrency: 2
calls:
  - operation: getPet
    params:
      petId: "1"
  - operation: createPet
    body: '{"name":"Rex"}'
  - operation: uploadPhoto
    files:
      photo: "@rex.png"
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(batchFile))
	require.NoError(t, err)

	assert.Equal(t, int64(2), f.Concurrency)
	require.Len(t, f.Calls, 3)
	assert.Equal(t, binding.Invocation{Operation: "getPet", Params: map[string]string{"petId": "1"}}, f.Calls[0])
	assert.Equal(t, `{"name":"Rex"}`, f.Calls[1].Body)
	assert.Equal(t, "@rex.png", f.Calls[2].Files["photo"])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no calls", "concurrency: 1\n"},
		{"missing operation", "calls:\n  - params: {a: b}\n"},
		{"negative concurrency", "concurrency: -1\ncalls:\n  - operation: x\n"},
		{"not yaml", "calls: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.yaml")
	require.NoError(t, os.WriteFile(path, []byte(batchFile), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Calls, 3)

	_, err = Load(path + ".missing")
	assert.Error(t, err)
}

func TestRunKeepsCallOrder(t *testing.T) {
	calls := []binding.Invocation{{Operation: "a"}, {Operation: "b"}, {Operation: "c"}, {Operation: "d"}}
	delays := map[string]time.Duration{"a": 30 * time.Millisecond, "b": 0, "c": 10 * time.Millisecond, "d": 0}

	results := Run(context.Background(), calls, 4, func(_ context.Context, inv binding.Invocation) (*engine.Response, error) {
		time.Sleep(delays[inv.Operation])
		if inv.Operation == "c" {
			return nil, errors.New("boom")
		}
		return &engine.Response{Outcome: engine.OutcomeDefined, StatusCode: 200}, nil
	}, nil)

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, calls[i].Operation, r.Operation)
	}
	assert.EqualError(t, results[2].Err, "boom")

	success, failure := Count(results)
	assert.Equal(t, 3, success)
	assert.Equal(t, 1, failure)
}

func TestRunBoundsConcurrency(t *testing.T) {
	calls := make([]binding.Invocation, 10)
	for i := range calls {
		calls[i].Operation = "op"
	}

	var running, peak int64
	Run(context.Background(), calls, 3, func(context.Context, binding.Invocation) (*engine.Response, error) {
		n := atomic.AddInt64(&running, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&running, -1)
		return &engine.Response{Outcome: engine.OutcomeDefined}, nil
	}, nil)

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int64
	results := Run(ctx, []binding.Invocation{{Operation: "a"}, {Operation: "b"}}, 1, func(context.Context, binding.Invocation) (*engine.Response, error) {
		atomic.AddInt64(&calls, 1)
		return nil, nil
	}, nil)

	assert.Zero(t, atomic.LoadInt64(&calls))
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.False(t, r.Success())
	}
}

func TestRunProgress(t *testing.T) {
	var buf bytes.Buffer
	Run(context.Background(), []binding.Invocation{{Operation: "a"}, {Operation: "b"}}, 0, func(context.Context, binding.Invocation) (*engine.Response, error) {
		return &engine.Response{Outcome: engine.OutcomeIncompatible}, nil
	}, &buf)

	assert.Contains(t, buf.String(), "Processed 2/2\n")
}

func TestResultSuccess(t *testing.T) {
	assert.True(t, Result{Response: &engine.Response{Outcome: engine.OutcomeDefined}}.Success())
	assert.False(t, Result{Response: &engine.Response{Outcome: engine.OutcomeIncomplete}}.Success())
	assert.False(t, Result{}.Success())
}
