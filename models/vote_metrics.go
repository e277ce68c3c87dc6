package models

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type voteMetrics struct {
	created   prometheus.Counter
	conflicts prometheus.Counter
	expired   *prometheus.CounterVec
	ballots   *prometheus.CounterVec
}

var (
	voteMetricsInstance *voteMetrics
	voteMetricsOnce     sync.Once
	metricsRegistry     = prometheus.DefaultRegisterer
)

func getVoteMetrics() *voteMetrics {
	voteMetricsOnce.Do(func() {
		voteMetricsInstance = &voteMetrics{
			created: promauto.With(metricsRegistry).NewCounter(prometheus.CounterOpts{
				Name: "watchroom_votes_created_total",
				Help: "Total number of votes created",
			}),
			conflicts: promauto.With(metricsRegistry).NewCounter(prometheus.CounterOpts{
				Name: "watchroom_vote_conflicts_total",
				Help: "Vote creations or status overrides refused because the room already had an active vote",
			}),
			expired: promauto.With(metricsRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "watchroom_votes_expired_total",
				Help: "Votes moved to expired, by how the lapse was detected",
			}, []string{"trigger"}),
			ballots: promauto.With(metricsRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "watchroom_ballots_total",
				Help: "Ballot submissions by outcome",
			}, []string{"outcome"}),
		}
	})
	return voteMetricsInstance
}

// Ballot outcomes
const (
	ballotAccepted     = "accepted"
	ballotAlreadyVoted = "already_voted"
	ballotNotActive    = "not_active"
	ballotExpired      = "expired"
	ballotNotFound     = "not_found"
)
