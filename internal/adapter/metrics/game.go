package metrics

import "github.com/prometheus/client_golang/prometheus"

// GameMetrics holds Prometheus metrics for word checks and admission votes.
type GameMetrics struct {
	WordsChecked       *prometheus.CounterVec
	CheckFailures      *prometheus.CounterVec
	VotesOpened        prometheus.Counter
	VotesResolved      *prometheus.CounterVec
	VoteDuration       prometheus.Histogram
	WordsAdmitted      prometheus.Counter
	ActiveVotes        prometheus.Gauge
	RegisteredChannels prometheus.Gauge
}

// NewGameMetrics creates and registers game metrics on the given registry.
func NewGameMetrics(reg prometheus.Registerer) *GameMetrics {
	m := &GameMetrics{
		WordsChecked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_checked_total",
			Help:      "Total number of candidate words seen, by result (accepted or rejected).",
		}, []string{"result"}),
		CheckFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_failures_total",
			Help:      "Total number of word checks that failed, by check.",
		}, []string{"check"}),
		VotesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_opened_total",
			Help:      "Total number of admission votes opened.",
		}),
		VotesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_resolved_total",
			Help:      "Total number of admission votes resolved, by outcome.",
		}, []string{"outcome"}),
		VoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vote_duration_seconds",
			Help:      "Time from opening an admission vote to its resolution.",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 3600, 21600, 86400},
		}),
		WordsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_admitted_total",
			Help:      "Total number of words admitted into a channel vocabulary.",
		}),
		ActiveVotes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_votes",
			Help:      "Number of admission votes currently open.",
		}),
		RegisteredChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_registered",
			Help:      "Number of channels currently registered.",
		}),
	}

	reg.MustRegister(m.WordsChecked, m.CheckFailures, m.VotesOpened, m.VotesResolved,
		m.VoteDuration, m.WordsAdmitted, m.ActiveVotes, m.RegisteredChannels)
	return m
}
