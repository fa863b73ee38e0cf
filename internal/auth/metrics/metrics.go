package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks authentication outcomes.
type Metrics struct {
	LoginAttempts      *prometheus.CounterVec
	TokensRefreshed    prometheus.Counter
	TokensRevoked      prometheus.Counter
	AccountsRegistered prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "educa_auth_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		TokensRefreshed: f.NewCounter(prometheus.CounterOpts{
			Name: "educa_auth_tokens_refreshed_total",
			Help: "Access tokens issued from refresh tokens",
		}),
		TokensRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "educa_auth_tokens_revoked_total",
			Help: "Tokens put on the revocation list",
		}),
		AccountsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "educa_auth_accounts_registered_total",
			Help: "Accounts created through registration or provisioning",
		}),
	}
}

func (m *Metrics) IncrementLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}
