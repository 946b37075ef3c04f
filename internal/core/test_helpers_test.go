package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"ritual/pkg/domain"
)

func mustTitle(t *testing.T, s string) domain.NonEmptyString {
	t.Helper()
	title, err := domain.NewNonEmptyString(s)
	if err != nil {
		t.Fatalf("title %q: %v", s, err)
	}
	return title
}

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status && (predicate == nil || predicate(entry)) {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	mu    sync.Mutex
	ended []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) record(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, level+":"+msg)
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.record("d", msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.record("i", msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.record("w", msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.record("e", msg) }

func (c *captureLogger) has(call string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, got := range c.calls {
		if got == call {
			return true
		}
	}
	return false
}

// memDocs is an in-memory DocumentStore. A non-nil gate holds every Save
// until it receives or is closed; started reports that a Save is waiting.
type memDocs struct {
	mu      sync.Mutex
	stored  domain.State
	saved   []domain.State
	loadErr error
	saveErr error
	gate    chan struct{}
	started chan struct{}
	closed  bool
}

func newMemDocs() *memDocs { return &memDocs{stored: domain.NewState()} }

func (m *memDocs) Load(context.Context) (domain.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return domain.State{}, m.loadErr
	}
	return m.stored.Clone(), nil
}

func (m *memDocs) Save(_ context.Context, state domain.State) error {
	m.mu.Lock()
	gate, started := m.gate, m.started
	m.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.stored = state.Clone()
	m.saved = append(m.saved, state.Clone())
	return nil
}

func (m *memDocs) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memDocs) savedStates() []domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.State(nil), m.saved...)
}

// startEngine runs eng until the test ends.
func startEngine(t *testing.T, eng *Engine) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- eng.Run(context.Background()) }()
	t.Cleanup(func() {
		eng.Stop()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("engine did not stop")
		}
	})
}

func habitCount(state domain.State, dayID uuid.UUID) int {
	day, ok := state.FindDay(dayID)
	if !ok {
		return -1
	}
	return day.Habits.Len()
}
