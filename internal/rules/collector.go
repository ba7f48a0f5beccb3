package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sentinel-automod/internal/export"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// ExportNotifier announces a finished offender export for one community.
type ExportNotifier interface {
	AnnounceExport(ctx context.Context, rule, guildID, reference string, total int)
}

type flushState int

const (
	flushIdle flushState = iota
	flushPending
	flushRunning
)

func (s flushState) String() string {
	switch s {
	case flushPending:
		return "pending"
	case flushRunning:
		return "flushing"
	default:
		return "idle"
	}
}

const (
	DefaultFlushDelay   = 5 * time.Minute
	DefaultFlushMaxWait = 15 * time.Minute
	DefaultMaxCollected = 5000
	flushTimeout        = 30 * time.Second
)

type CollectorConfig struct {
	Delay        time.Duration
	MaxWait      time.Duration
	MaxCollected int
}

type offenders struct {
	ids  []string
	seen map[string]struct{}
}

// Collector gathers offending author IDs and exports them once detections go
// quiet. At most one flush is scheduled or running at a time. Detections that
// arrive while pending push the flush back by Delay, but never past MaxWait
// after the first detection.
type Collector struct {
	rule     string
	cfg      CollectorConfig
	sink     export.Sink
	notifier ExportNotifier
	clock    Clock
	logger   *zap.Logger

	mu         sync.Mutex
	state      flushState
	firstAt    time.Time
	timer      Timer
	generation uint64
	guilds     map[string]*offenders
	closed     bool
}

func NewCollector(rule string, cfg CollectorConfig, sink export.Sink, notifier ExportNotifier, logger *zap.Logger) *Collector {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultFlushDelay
	}
	if cfg.MaxWait < cfg.Delay {
		cfg.MaxWait = max(DefaultFlushMaxWait, cfg.Delay)
	}
	if cfg.MaxCollected <= 0 {
		cfg.MaxCollected = DefaultMaxCollected
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		rule:     rule,
		cfg:      cfg,
		sink:     sink,
		notifier: notifier,
		clock:    realClock{},
		logger:   logger.With(zap.String("rule", rule)),
		guilds:   make(map[string]*offenders),
	}
}

func (c *Collector) WithClock(clock Clock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clock
}

// SetNotifier replaces the export notifier. Safe to call before the first
// detection.
func (c *Collector) SetNotifier(notifier ExportNotifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifier = notifier
}

// Add records an offender for guildID and schedules a flush.
func (c *Collector) Add(guildID, authorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	set, ok := c.guilds[guildID]
	if !ok {
		set = &offenders{seen: make(map[string]struct{})}
		c.guilds[guildID] = set
	}
	if _, dup := set.seen[authorID]; !dup && len(set.ids) < c.cfg.MaxCollected {
		set.seen[authorID] = struct{}{}
		set.ids = append(set.ids, authorID)
	}

	now := c.clock.Now()
	switch c.state {
	case flushIdle:
		c.state = flushPending
		c.firstAt = now
		c.armLocked(c.cfg.Delay)
	case flushPending:
		wait := c.cfg.Delay
		if remaining := c.firstAt.Add(c.cfg.MaxWait).Sub(now); remaining < wait {
			wait = max(remaining, 0)
		}
		c.armLocked(wait)
	case flushRunning:
		// picked up when the running flush completes
	}
}

func (c *Collector) armLocked(d time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.generation++
	gen := c.generation
	c.timer = c.clock.AfterFunc(d, func() { c.fire(gen) })
}

func (c *Collector) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.generation || c.state != flushPending {
		c.mu.Unlock()
		return
	}
	c.state = flushRunning
	c.timer = nil
	batch := c.guilds
	c.guilds = make(map[string]*offenders)
	notifier := c.notifier
	date := c.clock.Now()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	for guildID, set := range batch {
		c.flushGuild(ctx, notifier, guildID, date, set.ids)
	}
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if len(c.guilds) == 0 {
		c.state = flushIdle
		return
	}
	c.state = flushPending
	c.firstAt = c.clock.Now()
	c.armLocked(c.cfg.Delay)
}

func (c *Collector) flushGuild(ctx context.Context, notifier ExportNotifier, guildID string, date time.Time, ids []string) {
	name := fmt.Sprintf("spam_users_%s.txt", guildID)
	ref, err := c.sink.Upload(ctx, name, FormatOffenders(date, ids))
	if err != nil {
		c.logger.Warn("offender export failed", zap.String("guild_id", guildID), zap.Int("total", len(ids)), zap.Error(err))
		return
	}
	c.logger.Info("offender export written", zap.String("guild_id", guildID), zap.Int("total", len(ids)), zap.String("reference", ref))
	if notifier != nil {
		notifier.AnnounceExport(ctx, c.rule, guildID, ref, len(ids))
	}
}

// State reports idle, pending or flushing.
func (c *Collector) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.String()
}

// Close cancels a pending flush. Collected IDs are dropped.
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = flushIdle
	c.guilds = make(map[string]*offenders)
}

// FormatOffenders renders the export body: the date, a blank line, one ID per
// line, a separator and the total.
func FormatOffenders(date time.Time, ids []string) string {
	var b strings.Builder
	b.WriteString(date.Format(time.DateOnly))
	b.WriteString("\n\n")
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("--", 10))
	fmt.Fprintf(&b, "\n%d total users.", len(ids))
	return b.String()
}
