package automod

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sentinel-automod/internal/events"
	"sentinel-automod/internal/platform"
	"sentinel-automod/internal/rules"

	"go.uber.org/zap"
)

const (
	DefaultReasonPrefix  = "[AutoMod]"
	DefaultBanDeleteDays = 1
)

type ExecutorConfig struct {
	ReasonPrefix  string
	BanDeleteDays int
}

// Executor carries out the configured action for an infraction. Platform
// failures are logged and recorded in the outcome, never returned.
type Executor struct {
	client platform.Client
	bus    *events.Bus
	router *Router
	cfg    ExecutorConfig
	logger *zap.Logger
}

func NewExecutor(client platform.Client, bus *events.Bus, router *Router, cfg ExecutorConfig, logger *zap.Logger) *Executor {
	if cfg.ReasonPrefix == "" {
		cfg.ReasonPrefix = DefaultReasonPrefix
	}
	if cfg.BanDeleteDays < 0 || cfg.BanDeleteDays > 7 {
		cfg.BanDeleteDays = DefaultBanDeleteDays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{client: client, bus: bus, router: router, cfg: cfg, logger: logger}
}

// Execute deletes the message when configured, performs the action, emits
// events and hands the outcome to the router.
func (e *Executor) Execute(ctx context.Context, s rules.Settings, inf *rules.Infraction) Outcome {
	msg := inf.Message
	logger := e.logger.With(
		zap.String("rule", inf.Rule),
		zap.String("guild_id", msg.GuildID),
		zap.String("channel_id", msg.ChannelID),
		zap.String("user_id", msg.AuthorID),
		zap.String("infraction_id", inf.ID.String()),
	)
	logger.Info("infraction found", zap.String("action", s.Action.String()))
	infractionCount.WithLabelValues(inf.Rule).Inc()

	outcome := Outcome{Action: s.Action, ActionSucceeded: true}
	if s.DeleteOnOffense {
		outcome.MessageDeleted = e.deleteMessage(ctx, logger, msg)
	}

	if err := e.act(ctx, s, inf); err != nil {
		outcome.ActionSucceeded = false
		logger.Warn("action failed", zap.String("action", s.Action.String()), zap.Error(err))
	} else if s.Action != rules.ActionNone {
		logger.Info("action taken", zap.String("action", s.Action.String()))
	}
	actionCount.WithLabelValues(inf.Rule, s.Action.String(), resultLabel(outcome.ActionSucceeded)).Inc()

	e.emit(ctx, inf, outcome)
	if e.router != nil {
		e.router.Announce(ctx, s, inf, outcome)
	}
	return outcome
}

// deleteMessage reports whether the message is gone. A message that no
// longer exists counts as deleted.
func (e *Executor) deleteMessage(ctx context.Context, logger *zap.Logger, msg rules.Message) bool {
	err := e.client.DeleteMessage(ctx, msg.ChannelID, msg.ID)
	switch {
	case err == nil:
		deletionCount.WithLabelValues("deleted").Inc()
		return true
	case errors.Is(err, platform.ErrNotFound):
		logger.Warn("could not delete message as it does not exist", zap.Error(err))
		deletionCount.WithLabelValues("missing").Inc()
		return true
	case errors.Is(err, platform.ErrForbidden):
		logger.Warn("missing permissions to delete message", zap.Error(err))
	default:
		logger.Warn("delete message", zap.Error(err))
	}
	deletionCount.WithLabelValues("failure").Inc()
	return false
}

func (e *Executor) act(ctx context.Context, s rules.Settings, inf *rules.Infraction) error {
	msg := inf.Message
	reason := e.cfg.ReasonPrefix + " " + inf.Rule

	switch s.Action {
	case rules.ActionNone:
		return nil
	case rules.ActionKick:
		return e.client.Kick(ctx, msg.GuildID, msg.AuthorID, reason)
	case rules.ActionBan:
		return e.client.Ban(ctx, msg.GuildID, msg.AuthorID, reason, e.cfg.BanDeleteDays)
	case rules.ActionAddRole:
		if s.MuteRoleID == "" {
			return errors.New("no role set to add to offending user")
		}
		return e.client.AddRole(ctx, msg.GuildID, msg.AuthorID, s.MuteRoleID)
	case rules.ActionNotifyRole:
		if s.NotifyRoleID == "" {
			return errors.New("no role set to notify")
		}
		if e.router == nil {
			return errors.New("no announcement route")
		}
		channelID, err := e.router.ResolveChannel(ctx, msg.GuildID, s)
		if err != nil {
			return err
		}
		if channelID == "" {
			return errors.New("no announcement channel to notify in")
		}
		content := fmt.Sprintf("<@&%s> %s triggered by <@%s> in <#%s>: %s", s.NotifyRoleID, inf.Rule, msg.AuthorID, msg.ChannelID, msg.JumpURL())
		return e.client.SendMessage(ctx, channelID, content, []string{s.NotifyRoleID})
	default:
		return fmt.Errorf("unsupported action %q", s.Action)
	}
}

func (e *Executor) emit(ctx context.Context, inf *rules.Infraction, outcome Outcome) {
	if e.bus == nil {
		return
	}
	msg := inf.Message
	base := events.Event{
		Rule:            inf.Rule,
		GuildID:         msg.GuildID,
		ChannelID:       msg.ChannelID,
		MessageID:       msg.ID,
		AuthorID:        msg.AuthorID,
		Infraction:      inf,
		Action:          outcome.Action,
		ActionSucceeded: outcome.ActionSucceeded,
		MessageDeleted:  outcome.MessageDeleted,
		At:              time.Now(),
	}
	for _, name := range []string{events.RuleEvent(inf.Rule), events.Generic} {
		event := base
		event.Name = name
		e.bus.Publish(ctx, event)
		eventsEmitted.WithLabelValues(name).Inc()
	}
}
