package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		rateLimitRejections,
		subscriptionsExpired,
	)
}

var (
	rateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limit_rejections_total",
			Help: "Requests rejected by the per-IP rate limiter, by route group.",
		},
		[]string{"group"},
	)

	subscriptionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Accounts downgraded by the expiry worker.",
		},
	)
)

func IncRateLimited(group string) {
	rateLimitRejections.WithLabelValues(norm(group)).Inc()
}

func AddExpired(n int64) {
	subscriptionsExpired.Add(float64(n))
}
