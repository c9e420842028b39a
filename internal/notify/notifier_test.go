package notify

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

type recorder struct {
	name string
	log  *[]string
	mu   *sync.Mutex
	err  error
}

func (r *recorder) OnUpdate(state int) error {
	r.mu.Lock()
	*r.log = append(*r.log, r.name)
	r.mu.Unlock()
	return r.err
}

type panicker struct{}

func (panicker) OnUpdate(int) error { panic("boom") }

// funcObserver has an uncomparable dynamic type.
type funcObserver func(int) error

func (f funcObserver) OnUpdate(state int) error { return f(state) }

func newRecorders(names ...string) ([]*recorder, *[]string) {
	var log []string
	var mu sync.Mutex
	out := make([]*recorder, len(names))
	for i, name := range names {
		out[i] = &recorder{name: name, log: &log, mu: &mu}
	}
	return out, &log
}

func TestBroadcastInRegistrationOrder(t *testing.T) {
	n := New[int](nil)
	recs, log := newRecorders("a", "b", "c")
	for _, r := range []*recorder{recs[1], recs[0], recs[2]} {
		if err := n.Register(r); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	if err := n.Broadcast(1); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if got := strings.Join(*log, ","); got != "b,a,c" {
		t.Errorf("expected order b,a,c, got %s", got)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	n := New[int](nil)
	recs, log := newRecorders("a")
	for i := 0; i < 3; i++ {
		if err := n.Register(recs[0]); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	if n.Len() != 1 {
		t.Errorf("expected 1 observer, got %d", n.Len())
	}
	n.Broadcast(1)
	if len(*log) != 1 {
		t.Errorf("expected a single call, got %d", len(*log))
	}
}

func TestRegisterRejectsNilAndUncomparable(t *testing.T) {
	n := New[int](nil)
	if err := n.Register(nil); err == nil {
		t.Error("expected error for nil observer")
	}
	f := funcObserver(func(int) error { return nil })
	if err := n.Register(f); !errors.Is(err, ErrUncomparable) {
		t.Errorf("expected ErrUncomparable, got %v", err)
	}
	if n.Len() != 0 {
		t.Errorf("expected empty registry, got %d", n.Len())
	}
}

func TestUnregister(t *testing.T) {
	n := New[int](nil)
	recs, log := newRecorders("a", "b")
	n.Register(recs[0])
	n.Register(recs[1])

	n.Unregister(recs[0])
	n.Unregister(recs[0]) // absent: no-op
	n.Unregister(&recorder{})

	n.Broadcast(1)
	if got := strings.Join(*log, ","); got != "b" {
		t.Errorf("expected only b notified, got %s", got)
	}
}

func TestFailuresAreIsolated(t *testing.T) {
	n := New[int](nil)
	recs, log := newRecorders("a", "b", "c")
	recs[0].err = errors.New("a failed")

	n.Register(recs[0])
	n.Register(panicker{})
	n.Register(recs[1])
	n.Register(recs[2])

	err := n.Broadcast(1)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !errors.Is(err, recs[0].err) {
		t.Errorf("expected a's error in %v", err)
	}
	if !strings.Contains(err.Error(), "panicked") {
		t.Errorf("expected panic to be reported, got %v", err)
	}
	if got := strings.Join(*log, ","); got != "a,b,c" {
		t.Errorf("expected all observers called, got %s", got)
	}
}

type selfRemover struct {
	n     *Notifier[int]
	calls int
}

func (s *selfRemover) OnUpdate(int) error {
	s.calls++
	s.n.Unregister(s)
	return nil
}

func TestObserverMayUnregisterDuringBroadcast(t *testing.T) {
	n := New[int](nil)
	s := &selfRemover{n: n}
	n.Register(s)

	n.Broadcast(1)
	n.Broadcast(2)
	if s.calls != 1 {
		t.Errorf("expected 1 call, got %d", s.calls)
	}
}
