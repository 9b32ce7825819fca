package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"automata/internal/eventbus"
	"automata/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
)

const historySize = 50

// Service is safe for concurrent use. Run drains the queue; Notify and the
// bus subscription feed it.
type Service struct {
	log       logx.Logger
	deliverer Deliverer
	bus       eventbus.Bus
	now       func() time.Time

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	queue   chan Notification
	dedup   map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, d Deliverer, bus eventbus.Bus, log logx.Logger) *Service {
	if bus == nil {
		bus = eventbus.Nop()
	}
	s := &Service{
		log:       log.With(logx.String("comp", "notifier")),
		deliverer: d,
		bus:       bus,
		now:       time.Now,
		dedup:     map[string]time.Time{},
	}
	s.applyLocked(cfg)
	s.queue = make(chan Notification, s.cfg.QueueSize)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled && s.deliverer != nil
}

// Apply swaps rate and dedup settings. The queue keeps its original size.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 0.5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
}

// Notify enqueues n without blocking.
func (s *Service) Notify(n Notification) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	select {
	case s.queue <- n:
		return nil
	default:
		s.log.Warn("notification dropped", logx.String("title", n.Title))
		return ErrQueueFull
	}
}

// Run subscribes to the bus and delivers queued notifications until ctx is
// done.
func (s *Service) Run(ctx context.Context) error {
	events, unsubscribe := s.bus.Subscribe(64)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if n, ok := fromEvent(e); ok {
				_ = s.Notify(n)
			}
		case n := <-s.queue:
			s.deliver(ctx, n)
		}
	}
}

func (s *Service) deliver(ctx context.Context, n Notification) {
	key := n.Key
	if key == "" {
		key = n.Title + "\x00" + n.Message
	}

	s.mu.Lock()
	limiter := s.limiter
	window := s.cfg.DedupWindow
	now := s.now()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		s.mu.Unlock()
		s.log.Debug("notification deduplicated", logx.String("key", key))
		return
	}
	if window > 0 {
		s.dedup[key] = now.Add(window)
		for k, until := range s.dedup {
			if !now.Before(until) {
				delete(s.dedup, k)
			}
		}
	}
	s.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return
	}
	err := s.deliverer.Deliver(ctx, n)
	item := HistoryItem{At: now, Title: n.Title, Text: n.Message}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("notification failed", logx.String("title", n.Title), logx.Err(err))
	}
	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()
}

// History returns delivered notifications, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

func fromEvent(e eventbus.Event) (Notification, bool) {
	switch e.Type {
	case eventbus.RuleInstallFailed, eventbus.RuleEnableFailed:
		d, _ := e.Data.(eventbus.RuleData)
		verb := "install"
		if e.Type == eventbus.RuleEnableFailed {
			verb = "enable"
		}
		msg := fmt.Sprintf("Could not %s %q", verb, d.Name)
		if d.Error != "" {
			msg += ": " + d.Error
		}
		return Notification{Title: "Automation failed", Message: msg, Key: e.Type + ":" + d.RuleID}, true
	case eventbus.RulesPaused:
		d, _ := e.Data.(eventbus.CountData)
		return Notification{Title: "Automations paused", Message: fmt.Sprintf("%d automations paused", d.Count), Key: e.Type}, true
	case eventbus.RulesResumed:
		d, _ := e.Data.(eventbus.CountData)
		return Notification{Title: "Automations resumed", Message: fmt.Sprintf("%d automations resumed", d.Count), Key: e.Type}, true
	}
	return Notification{}, false
}
