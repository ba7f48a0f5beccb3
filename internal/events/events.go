// Package events is an in-process publish/subscribe bus for moderation
// events consumed by integrations.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel-automod/internal/rules"

	"go.uber.org/zap"
)

// Generic is published for every handled infraction, whatever the rule.
const Generic = "automod"

// RuleEvent is the rule-specific event name, published alongside Generic.
func RuleEvent(rule string) string {
	return Generic + "_" + rule
}

type Event struct {
	Name            string
	Rule            string
	GuildID         string
	ChannelID       string
	MessageID       string
	AuthorID        string
	Infraction      *rules.Infraction
	Action          rules.Action
	ActionSucceeded bool
	MessageDeleted  bool
	At              time.Time
}

type Handler func(ctx context.Context, event Event)

// Bus delivers events synchronously, in subscription order. A panicking
// handler is logged and does not affect the others.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{handlers: make(map[string][]Handler), logger: logger}
}

func (b *Bus) Subscribe(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Publish returns the number of handlers that received the event.
func (b *Bus) Publish(ctx context.Context, event Event) int {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Name]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.deliver(ctx, handler, event)
	}
	return len(handlers)
}

func (b *Bus) deliver(ctx context.Context, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", zap.String("event", event.Name), zap.String("panic", fmt.Sprint(r)))
		}
	}()
	handler(ctx, event)
}
