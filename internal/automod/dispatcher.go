// Package automod evaluates messages against the registered rules and carries
// out the resulting moderation actions.
package automod

import (
	"context"
	"fmt"

	"sentinel-automod/internal/rules"

	"go.uber.org/zap"
)

// Dispatcher evaluates rules in registration order and acts on the first
// infraction. A whitelisted role or a channel outside a rule's enforced set
// stops evaluation of every remaining rule for that message.
type Dispatcher struct {
	registry *rules.Registry
	executor *Executor
	logger   *zap.Logger
}

func NewDispatcher(registry *rules.Registry, executor *Executor, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, executor: executor, logger: logger}
}

// Dispatch returns the handled infraction, or nil. Errors are settings reads
// that failed; they abandon this message only.
func (d *Dispatcher) Dispatch(ctx context.Context, msg rules.Message) (inf *rules.Infraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("automod dispatch exception", zap.String("panic", fmt.Sprint(r)), zap.String("guild_id", msg.GuildID), zap.String("message_id", msg.ID))
			inf, err = nil, fmt.Errorf("dispatch panic: %v", r)
		}
		if err != nil {
			dispatchErrors.Inc()
		}
	}()

	if msg.GuildID == "" || msg.AuthorBot {
		return nil, nil
	}
	messagesProcessed.Inc()

	for _, rule := range d.registry.Rules() {
		enabled, err := rule.Enabled(ctx, msg.GuildID)
		if err != nil {
			return nil, fmt.Errorf("%s enabled: %w", rule.Name(), err)
		}
		if !enabled {
			continue
		}
		s, err := rule.Settings(ctx, msg.GuildID)
		if err != nil {
			return nil, fmt.Errorf("%s settings: %w", rule.Name(), err)
		}
		if s.HasWhitelistedRole(msg.AuthorRoles) || !s.Enforces(msg.ChannelID) {
			d.logger.Debug("message out of scope, skipping remaining rules",
				zap.String("rule", rule.Name()), zap.String("guild_id", msg.GuildID), zap.String("message_id", msg.ID))
			return nil, nil
		}

		found, err := rule.Detect(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("%s detect: %w", rule.Name(), err)
		}
		if found == nil {
			continue
		}
		d.executor.Execute(ctx, s, found)
		return found, nil
	}
	return nil, nil
}
