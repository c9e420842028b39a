// Package notify provides a synchronous observer registry.
//
// Observers are called in registration order on the broadcasting goroutine.
// A failing or panicking observer is isolated: its error is collected and
// the remaining observers are still notified.
package notify

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/questwatch/internal/logging"
)

// ErrUncomparable is returned by Register for observers whose dynamic type
// cannot be compared, since they could never be found again by Unregister.
var ErrUncomparable = errors.New("notify: observer is not comparable")

// Observer receives every broadcast state.
type Observer[T any] interface {
	OnUpdate(state T) error
}

// Notifier is a registry of observers of T. Safe for concurrent use.
type Notifier[T any] struct {
	mu        sync.Mutex
	observers []Observer[T]
	logger    *log.Logger
}

// New creates an empty Notifier. A nil logger falls back to the "notify"
// component logger.
func New[T any](logger *log.Logger) *Notifier[T] {
	if logger == nil {
		logger = logging.WithPrefix("notify")
	}
	return &Notifier[T]{logger: logger}
}

// Register adds o to the registry. Registering an observer that is already
// present is a no-op.
func (n *Notifier[T]) Register(o Observer[T]) error {
	if o == nil {
		return errors.New("notify: nil observer")
	}
	if !reflect.TypeOf(o).Comparable() {
		return ErrUncomparable
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.observers {
		if existing == o {
			return nil
		}
	}
	n.observers = append(n.observers, o)
	return nil
}

// Unregister removes o. Unknown observers are ignored.
func (n *Notifier[T]) Unregister(o Observer[T]) {
	if o == nil || !reflect.TypeOf(o).Comparable() {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for i, existing := range n.observers {
		if existing == o {
			n.observers = append(n.observers[:i:i], n.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered observers.
func (n *Notifier[T]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.observers)
}

// Broadcast calls OnUpdate on every observer registered at call time.
// The registry lock is not held during callbacks, so observers may
// register or unregister from inside OnUpdate.
// Returns the joined observer failures, or nil.
func (n *Notifier[T]) Broadcast(state T) error {
	n.mu.Lock()
	observers := make([]Observer[T], len(n.observers))
	copy(observers, n.observers)
	n.mu.Unlock()

	var errs []error
	for i, o := range observers {
		if err := n.call(o, state); err != nil {
			n.logger.Warn("observer failed", "index", i, "observer", fmt.Sprintf("%T", o), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// call invokes one observer, converting a panic into an error.
func (n *Notifier[T]) call(o Observer[T], state T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer %T panicked: %v", o, r)
		}
	}()
	return o.OnUpdate(state)
}
