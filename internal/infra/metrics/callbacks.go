package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		callbacksTotal,
		signatureFailures,
		activationsTotal,
		activationRetries,
	)
}

var (
	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_callbacks_total",
			Help: "Gateway callbacks by resolution strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	signatureFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_signature_failures_total",
			Help: "Callbacks whose integrity signature did not verify.",
		},
	)

	activationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscription_activations_total",
			Help: "Committed subscription grants.",
		},
	)

	activationRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscription_activation_retries_total",
			Help: "Activations deferred to the sweeper after a failure.",
		},
	)
)

func IncCallback(strategy, outcome string) {
	callbacksTotal.WithLabelValues(norm(strategy), norm(outcome)).Inc()
}

func IncSignatureFailure() { signatureFailures.Inc() }
func IncActivation()       { activationsTotal.Inc() }
func IncActivationRetry()  { activationRetries.Inc() }
