package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_active_sessions",
		Help: "Number of game sessions currently running.",
	})

	sessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_sessions_started_total",
		Help: "Game sessions started, by mode.",
	}, []string{"mode"})

	answersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_answers_total",
		Help: "Accepted answer submissions, by result.",
	}, []string{"result"})
)
