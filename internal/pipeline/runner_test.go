package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/dlp/apiv2/dlppb"
	"google.golang.org/protobuf/proto"

	"scrub/internal/dlp"
	"scrub/internal/element"
)

/*──────── fakes ───────*/

type listSource struct {
	records []element.Record
	closed  bool
}

func (s *listSource) Run(ctx context.Context, emit element.EmitFunc) error {
	for _, rec := range s.records {
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}
func (s *listSource) Close() error { s.closed = true; return nil }

// blockingSource emits its records then waits for cancellation.
type blockingSource struct {
	records []element.Record
	emitted chan struct{}
}

func (s *blockingSource) Run(ctx context.Context, emit element.EmitFunc) error {
	for _, rec := range s.records {
		if err := emit(rec); err != nil {
			return err
		}
	}
	close(s.emitted)
	<-ctx.Done()
	return ctx.Err()
}
func (s *blockingSource) Close() error { return nil }

type fakeCaller struct {
	mu      sync.Mutex
	batches []*dlp.Batch
	mode    string
	calls   int32
}

func (f *fakeCaller) Deidentify(ctx context.Context, b *dlp.Batch) (*dlppb.DeidentifyContentResponse, error) {
	c := atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.batches = append(f.batches, b)
	f.mu.Unlock()

	switch f.mode {
	case "fail":
		return nil, errors.New("service unavailable")
	case "errorThenOK":
		if c == 1 {
			return nil, errors.New("service unavailable")
		}
	}
	// Echo the batch rows back, the way the service returns a table.
	return &dlppb.DeidentifyContentResponse{
		Item: &dlppb.ContentItem{
			DataItem: &dlppb.ContentItem_Table{Table: &dlppb.Table{Rows: b.Rows}},
		},
	}, nil
}

type captureSink struct {
	mu     sync.Mutex
	pushed []element.Result
	closed bool
}

func (c *captureSink) Configure(any) error { return nil }
func (c *captureSink) Push(r element.Result) error {
	c.mu.Lock()
	c.pushed = append(c.pushed, r)
	c.mu.Unlock()
	return nil
}
func (c *captureSink) Close() error { c.closed = true; return nil }

func (c *captureSink) results() []element.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]element.Result{}, c.pushed...)
}

/*──────── helpers ───────*/

func testConfig(batchBytes int) dlp.Config {
	return dlp.Config{
		ProjectID:              "test-project",
		BatchSizeBytes:         batchBytes,
		DeidentifyTemplateName: "projects/test-project/deidentifyTemplates/t1",
	}
}

func singleRowSize(t *testing.T, content string) int {
	t.Helper()
	cfg := testConfig(1000)
	headers, err := dlp.ResolveHeaders(cfg)
	if err != nil {
		t.Fatalf("ResolveHeaders: %v", err)
	}
	row, err := dlp.NewShaper(cfg, headers).Shape(content)
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	return proto.Size(row)
}

func newTestRunner(t *testing.T, cfg dlp.Config, workers int, mode string, retry RetryPolicy) (*Runner, []*fakeCaller, *captureSink) {
	t.Helper()
	headers, err := dlp.ResolveHeaders(cfg)
	if err != nil {
		t.Fatalf("ResolveHeaders: %v", err)
	}
	r := NewRunner(retry)
	callers := make([]*fakeCaller, workers)
	for i := 0; i < workers; i++ {
		callers[i] = &fakeCaller{mode: mode}
		r.AddWorker(dlp.NewShaper(cfg, headers), dlp.NewPacker(cfg.BatchSizeBytes), callers[i])
	}
	cs := &captureSink{}
	r.AddSink(cs)
	return r, callers, cs
}

func resultRows(t *testing.T, res element.Result) []string {
	t.Helper()
	var out []string
	for _, row := range res.Response.GetItem().GetTable().GetRows() {
		if len(row.Values) != 1 {
			t.Fatalf("want single-field rows, got %d fields", len(row.Values))
		}
		out = append(out, row.Values[0].GetStringValue())
	}
	return out
}

/*──────── tests ───────*/

func TestRunner_TwoRecordsOneBatchOneCall(t *testing.T) {
	r, callers, cs := newTestRunner(t, testConfig(100_000), 1, "ok", RetryPolicy{})
	r.SetSource(&listSource{records: []element.Record{
		{Key: "a.txt", Content: "hello"},
		{Key: "a.txt", Content: "world"},
	}})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt32(&callers[0].calls); got != 1 {
		t.Fatalf("want exactly 1 remote call, got %d", got)
	}
	results := cs.results()
	if len(results) != 1 || results[0].Key != "a.txt" {
		t.Fatalf("unexpected results: %+v", results)
	}
	rows := resultRows(t, results[0])
	if len(rows) != 2 || rows[0] != "hello" || rows[1] != "world" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestRunner_BudgetForcesTwoBatchesInOrder(t *testing.T) {
	budget := singleRowSize(t, "hello") // only the first row fits
	r, callers, cs := newTestRunner(t, testConfig(budget), 1, "ok", RetryPolicy{})
	r.SetSource(&listSource{records: []element.Record{
		{Key: "a.txt", Content: "hello"},
		{Key: "a.txt", Content: "world"},
	}})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt32(&callers[0].calls); got != 2 {
		t.Fatalf("want 2 remote calls, got %d", got)
	}
	results := cs.results()
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	first, second := resultRows(t, results[0]), resultRows(t, results[1])
	if len(first) != 1 || first[0] != "hello" || len(second) != 1 || second[0] != "world" {
		t.Fatalf("batches out of order: %v then %v", first, second)
	}
}

func TestRunner_RetryThenOK(t *testing.T) {
	r, callers, cs := newTestRunner(t, testConfig(100_000), 1, "errorThenOK",
		RetryPolicy{Attempts: 1, Backoff: time.Millisecond})
	r.SetSource(&listSource{records: []element.Record{{Key: "a.txt", Content: "hello"}}})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run should succeed after retry: %v", err)
	}
	if got := atomic.LoadInt32(&callers[0].calls); got != 2 {
		t.Fatalf("want 2 attempts, got %d", got)
	}
	if len(cs.results()) != 1 {
		t.Fatalf("want 1 result after retry, got %d", len(cs.results()))
	}
}

func TestRunner_RetryExhaustedFailsRun(t *testing.T) {
	r, _, cs := newTestRunner(t, testConfig(100_000), 1, "fail",
		RetryPolicy{Attempts: 2, Backoff: time.Millisecond})
	r.SetSource(&listSource{records: []element.Record{{Key: "a.txt", Content: "hello"}}})

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected Run to fail once retries are exhausted")
	}
	if len(cs.results()) != 0 {
		t.Fatalf("no result should be pushed for a failed batch, got %d", len(cs.results()))
	}
}

func TestRunner_SameKeyAlwaysSameWorker(t *testing.T) {
	budget := singleRowSize(t, "r000") // every record flushes the previous one
	r, callers, _ := newTestRunner(t, testConfig(budget), 4, "ok", RetryPolicy{})

	var records []element.Record
	for i := 0; i < 100; i++ {
		records = append(records, element.Record{Key: "one-key", Content: "r000"})
	}
	r.SetSource(&listSource{records: records})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	active := 0
	var total int32
	for _, c := range callers {
		calls := atomic.LoadInt32(&c.calls)
		total += calls
		if calls > 0 {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("one key must be owned by one worker, %d workers made calls", active)
	}
	if total != 100 {
		t.Fatalf("want 100 single-row batches, got %d", total)
	}
}

func TestRunner_KeysNeverMergedAcrossBatches(t *testing.T) {
	r, _, cs := newTestRunner(t, testConfig(100_000), 3, "ok", RetryPolicy{})
	r.SetSource(&listSource{records: []element.Record{
		{Key: "a.txt", Content: "a1"},
		{Key: "b.txt", Content: "b1"},
		{Key: "a.txt", Content: "a2"},
		{Key: "c.txt", Content: "c1"},
	}})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rowsByKey := map[string]int{}
	for _, res := range cs.results() {
		rowsByKey[res.Key] += len(res.Response.GetItem().GetTable().GetRows())
	}
	if rowsByKey["a.txt"] != 2 || rowsByKey["b.txt"] != 1 || rowsByKey["c.txt"] != 1 {
		t.Fatalf("rows misassigned: %v", rowsByKey)
	}
}

func TestRunner_CancelAbandonsOpenBatches(t *testing.T) {
	r, _, cs := newTestRunner(t, testConfig(100_000), 1, "ok", RetryPolicy{})
	src := &blockingSource{
		records: []element.Record{{Key: "a.txt", Content: "hello"}},
		emitted: make(chan struct{}),
	}
	r.SetSource(src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	<-src.emitted
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("cancelled run should shut down cleanly: %v", err)
	}
	if len(cs.results()) != 0 {
		t.Fatalf("partial batch must be abandoned on cancellation, got %d results", len(cs.results()))
	}
}

func TestRunner_CloseReleasesSourceAndSinks(t *testing.T) {
	r, _, cs := newTestRunner(t, testConfig(100_000), 1, "ok", RetryPolicy{})
	src := &listSource{}
	r.SetSource(src)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !src.closed || !cs.closed {
		t.Fatal("Close must release both source and sinks")
	}
}

func TestRunner_NoSourceOrWorkersFails(t *testing.T) {
	r := NewRunner(RetryPolicy{})
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error without a source")
	}
	r.SetSource(&listSource{})
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error without workers")
	}
}
