package rules

import (
	"context"
	"time"

	"sentinel-automod/internal/ratelimit"
)

const SpamRuleName = "SpamRule"

type SpamLimits struct {
	UserCapacity    int
	UserWindow      time.Duration
	ContentCapacity int
	ContentWindow   time.Duration
	MaxKeys         int
}

func DefaultSpamLimits() SpamLimits {
	return SpamLimits{
		UserCapacity:    10,
		UserWindow:      12 * time.Second,
		ContentCapacity: 15,
		ContentWindow:   17 * time.Second,
		MaxKeys:         ratelimit.DefaultMaxKeys,
	}
}

// SpamChecker flags authors posting too often and identical content posted
// too often in one channel.
type SpamChecker struct {
	byUser    *ratelimit.Mapping
	byContent *ratelimit.Mapping
}

func NewSpamChecker(limits SpamLimits) *SpamChecker {
	return &SpamChecker{
		byUser:    ratelimit.NewMapping(limits.UserCapacity, limits.UserWindow, limits.MaxKeys),
		byContent: ratelimit.NewMapping(limits.ContentCapacity, limits.ContentWindow, limits.MaxKeys),
	}
}

// IsSpam uses the message timestamp, not the receive time. The content bucket
// is only consulted when the author bucket is not limited.
func (c *SpamChecker) IsSpam(msg Message) bool {
	if c.byUser.Update(msg.GuildID+"\x00"+msg.AuthorID, msg.Timestamp) {
		return true
	}
	return c.byContent.Update(msg.GuildID+"\x00"+msg.ChannelID+"\x00"+msg.Content, msg.Timestamp)
}

type SpamRule struct {
	Base
	checker   *SpamChecker
	collector *Collector
}

func NewSpamRule(deps Deps, checker *SpamChecker, collector *Collector) *SpamRule {
	if checker == nil {
		checker = NewSpamChecker(DefaultSpamLimits())
	}
	return &SpamRule{
		Base:      newBase(SpamRuleName, deps),
		checker:   checker,
		collector: collector,
	}
}

func (r *SpamRule) Detect(ctx context.Context, msg Message) (*Infraction, error) {
	if !r.checker.IsSpam(msg) {
		return nil, nil
	}
	if r.collector != nil {
		r.collector.Add(msg.GuildID, msg.AuthorID)
	}
	return NewInfraction(r.Name(), msg, ""), nil
}

// Close stops the pending offender export.
func (r *SpamRule) Close() {
	if r.collector != nil {
		r.collector.Close()
	}
}
