package preview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/binder/internal/assemble"
	"github.com/jackzampolin/binder/internal/layout"
	"github.com/jackzampolin/binder/internal/section"
)

// stubAssembler reports one page per section. With a gate set, every call
// blocks until the test sends on it.
type stubAssembler struct {
	mu      sync.Mutex
	calls   int
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (s *stubAssembler) Assemble(ctx context.Context, sections []section.Section, cfg layout.Config, progress chan<- assemble.Progress) (*assemble.Output, error) {
	s.mu.Lock()
	s.calls++
	err := s.err
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	n := len(sections)
	progress <- assemble.Progress{Current: 0, Total: n}
	for i := 1; i <= n; i++ {
		progress <- assemble.Progress{Current: i, Total: n}
	}
	progress <- assemble.Progress{}

	if err != nil {
		return nil, err
	}
	return &assemble.Output{Data: []byte("%PDF"), PageCount: n}, nil
}

func (s *stubAssembler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newRegen(t *testing.T, stub *stubAssembler, autoUpdate bool) *Regenerator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := layout.DefaultConfig()
	cfg.AutoUpdate = autoUpdate
	r, err := New(ctx, Config{Assembler: stub, Layout: cfg})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func wait(t *testing.T, r *Regenerator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func src(name string) section.Source {
	return section.NewMemorySource(name, nil)
}

func TestRegenerator_AutoUpdate(t *testing.T) {
	stub := &stubAssembler{}
	r := newRegen(t, stub, true)

	r.Sections().Add(src("a.pdf"))
	wait(t, r)

	st := r.Status()
	if st.State != StateReady {
		t.Errorf("state = %s, want ready", st.State)
	}
	if st.PageCount != 1 {
		t.Errorf("page count = %d, want 1", st.PageCount)
	}
	if st.Progress != (assemble.Progress{}) {
		t.Errorf("progress not reset: %+v", st.Progress)
	}
	if r.Output() == nil {
		t.Error("expected output")
	}
}

func TestRegenerator_ManualMode(t *testing.T) {
	stub := &stubAssembler{}
	r := newRegen(t, stub, false)

	r.Sections().Add(src("a.pdf"))
	wait(t, r)
	if stub.Calls() != 0 {
		t.Fatalf("calls = %d, want 0 with auto-update off", stub.Calls())
	}
	if r.Request(false) {
		t.Error("unforced request should be ignored")
	}

	if !r.Request(true) {
		t.Fatal("forced request should run")
	}
	wait(t, r)
	if stub.Calls() != 1 {
		t.Errorf("calls = %d, want 1", stub.Calls())
	}
}

func TestRegenerator_CoalescesRequests(t *testing.T) {
	stub := &stubAssembler{gate: make(chan struct{}), started: make(chan struct{}, 8)}
	r := newRegen(t, stub, false)
	r.Sections().Add(src("a.pdf"))

	r.Request(true)
	<-stub.started
	for i := 0; i < 5; i++ {
		r.Request(true)
	}

	stub.gate <- struct{}{}
	<-stub.started
	stub.gate <- struct{}{}
	wait(t, r)

	if stub.Calls() != 2 {
		t.Errorf("calls = %d, want 2 (one run plus one coalesced rerun)", stub.Calls())
	}
}

func TestRegenerator_DiscardsStale(t *testing.T) {
	stub := &stubAssembler{gate: make(chan struct{}), started: make(chan struct{}, 8)}
	r := newRegen(t, stub, true)

	r.Sections().Add(src("a.pdf"))
	<-stub.started

	// Mutate while the first run is blocked.
	r.Sections().Add(src("b.pdf"))
	stub.gate <- struct{}{}
	<-stub.started
	stub.gate <- struct{}{}
	wait(t, r)

	out := r.Output()
	if out == nil || out.PageCount != 2 {
		t.Fatalf("expected output for both sections, got %+v", out)
	}
	if st := r.Status(); st.Generation != 2 {
		t.Errorf("generation = %d, want 2", st.Generation)
	}
}

func TestRegenerator_FailureKeepsLastOutput(t *testing.T) {
	stub := &stubAssembler{}
	r := newRegen(t, stub, true)

	r.Sections().Add(src("a.pdf"))
	wait(t, r)
	good := r.Output()

	stub.mu.Lock()
	stub.err = errors.New("source load failed")
	stub.mu.Unlock()

	r.Request(true)
	wait(t, r)

	st := r.Status()
	if st.State != StateFailed || st.Error != "source load failed" {
		t.Errorf("status = %+v", st)
	}
	if r.Output() != good {
		t.Error("failed run must not replace the last good output")
	}
}

func TestRegenerator_EmptyListClears(t *testing.T) {
	stub := &stubAssembler{}
	r := newRegen(t, stub, true)

	r.Sections().Add(src("a.pdf"))
	wait(t, r)
	calls := stub.Calls()

	r.Sections().Clear()
	wait(t, r)

	if r.Output() != nil {
		t.Error("expected preview cleared")
	}
	if st := r.Status(); st.State != StateEmpty {
		t.Errorf("state = %s, want empty", st.State)
	}
	if stub.Calls() != calls {
		t.Error("assembler should not run for an empty list")
	}
}

func TestRegenerator_SetLayout(t *testing.T) {
	stub := &stubAssembler{}
	r := newRegen(t, stub, true)

	bad := layout.DefaultConfig()
	bad.Margin = -5
	if err := r.SetLayout(bad); !errors.Is(err, layout.ErrInvalidLayout) {
		t.Errorf("expected ErrInvalidLayout, got %v", err)
	}

	good := layout.DefaultConfig()
	good.Format = "p{page}"
	if err := r.SetLayout(good); err != nil {
		t.Fatal(err)
	}
	wait(t, r)
	if r.Layout().Format != "p{page}" {
		t.Errorf("layout not applied: %+v", r.Layout())
	}
}

func TestRegenerator_Subscribe(t *testing.T) {
	stub := &stubAssembler{}
	r := newRegen(t, stub, false)
	r.Sections().Add(src("a.pdf"), src("b.pdf"))

	events, unsubscribe := r.Subscribe()
	defer unsubscribe()

	r.Request(true)
	wait(t, r)

	var got []assemble.Progress
	for len(events) > 0 {
		got = append(got, <-events)
	}
	if len(got) != 4 {
		t.Fatalf("events = %v, want 4", got)
	}
	if got[0] != (assemble.Progress{Current: 0, Total: 2}) || got[3] != (assemble.Progress{}) {
		t.Errorf("unexpected events %v", got)
	}
}

func TestNew_RequiresAssembler(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected error without assembler")
	}
}
