package automod

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_messages_processed",
	Help: "Number of messages evaluated by the dispatcher",
})

var dispatchErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_dispatch_errors",
	Help: "Number of messages whose evaluation failed",
})

var infractionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_infractions",
	Help: "Number of infractions found, by rule",
}, []string{"rule"})

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_actions",
	Help: "Number of remedial actions attempted, by rule, action and result",
}, []string{"rule", "action", "result"})

var deletionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_message_deletions",
	Help: "Number of offending message deletions, by result",
}, []string{"result"})

var announcementCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_announcements",
	Help: "Number of announcements, by result",
}, []string{"result"})

var eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_events_emitted",
	Help: "Number of events published, by name",
}, []string{"name"})

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
