package rules

import (
	"context"
	"sync"
	"testing"
	"time"

	"sentinel-automod/internal/settings"
	"sentinel-automod/internal/storage"

	"github.com/stretchr/testify/require"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	cache, err := settings.New(storage.NewMemory(), 256, nil)
	require.NoError(t, err)
	return Deps{Cache: cache, DefaultAction: ActionNone}
}

func testMessage(content string) Message {
	return Message{
		ID:        "m1",
		GuildID:   "g1",
		ChannelID: "c1",
		AuthorID:  "u1",
		Content:   content,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, at: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves time forward and runs every live timer that became due.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	var due, pending []*fakeTimer
	for _, t := range f.timers {
		switch {
		case t.stopped:
		case !t.at.After(f.now):
			t.stopped = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	f.timers = pending
	f.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

type upload struct {
	name    string
	content string
}

type recordingSink struct {
	mu      sync.Mutex
	uploads []upload
	onWrite func()
}

func (s *recordingSink) Upload(ctx context.Context, name, content string) (string, error) {
	s.mu.Lock()
	s.uploads = append(s.uploads, upload{name: name, content: content})
	hook := s.onWrite
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return "https://paste.example/" + name, nil
}

func (s *recordingSink) Uploads() []upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]upload(nil), s.uploads...)
}

type exportAnnouncement struct {
	rule, guildID, reference string
	total                    int
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []exportAnnouncement
}

func (n *recordingNotifier) AnnounceExport(ctx context.Context, rule, guildID, reference string, total int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, exportAnnouncement{rule: rule, guildID: guildID, reference: reference, total: total})
}

func (n *recordingNotifier) Calls() []exportAnnouncement {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]exportAnnouncement(nil), n.calls...)
}
