package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agendabot",
		Name:      "messages_total",
		Help:      "Inbound messages by disposition.",
	}, []string{"status"})

	intentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agendabot",
		Name:      "intents_total",
		Help:      "Effective intents after the confidence floor.",
	}, []string{"intent"})

	deadLettersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agendabot",
		Name:      "dead_letters_total",
		Help:      "Messages captured for offline replay, by failure kind.",
	}, []string{"kind"})
)
