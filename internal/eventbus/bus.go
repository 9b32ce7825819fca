// Package eventbus is an in-memory fanout for lifecycle signals. The
// notifier and the watch loop subscribe; the lifecycle manager publishes.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Lifecycle event types.
const (
	RuleInstalled     = "rule.installed"
	RuleInstallFailed = "rule.install_failed"
	RuleEnabled       = "rule.enabled"
	RuleEnableFailed  = "rule.enable_failed"
	RuleDisabled      = "rule.disabled"
	RuleUninstalled   = "rule.uninstalled"
	RulesPaused       = "rules.paused"
	RulesResumed      = "rules.resumed"
	RulesRemoved      = "rules.removed"
	ConfigReloaded    = "config.reloaded"
)

// Event is a small in-memory signal.
//
// Publish never blocks. Subscribers get buffered channels and a slow
// subscriber drops events.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// RuleData is the payload of rule.* events.
type RuleData struct {
	RuleID string
	Name   string
	Labels []string
	Error  string
}

// CountData is the payload of rules.* events.
type CountData struct {
	Count int
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

// Nop discards every event.
func Nop() Bus { return nopBus{} }

type nopBus struct{}

func (nopBus) Publish(Event) {}
func (nopBus) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// The channel may be closed by a concurrent unsubscribe.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}
