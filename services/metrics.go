package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghosttalk_posts_created_total",
		Help: "Number of posts created",
	})

	repliesAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghosttalk_replies_added_total",
		Help: "Number of replies appended to posts",
	})

	storageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghosttalk_storage_failures_total",
			Help: "Storage failures reported to callers as internal errors",
		},
		[]string{"operation"},
	)
)
