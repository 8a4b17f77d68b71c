package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Login-flow Prometheus metrics. Defined in a standalone package to avoid
// import cycles between the login filter and HTTP wiring packages.

var (
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "login_callback_attempts_total",
		Help: "Callbacks matched and attempted, by registration",
	}, []string{"registration"})

	LoginSuccesses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "login_callback_successes_total",
		Help: "Callbacks that produced an authenticated principal, by registration",
	}, []string{"registration"})

	LoginFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "login_callback_failures_total",
		Help: "Callbacks that failed, by registration and OAuth2 error code",
	}, []string{"registration", "error_code"})
)

// RegisterLogin registers the login metrics on the given registry (or default if nil).
func RegisterLogin(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{LoginAttempts, LoginSuccesses, LoginFailures} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
