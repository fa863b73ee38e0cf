// Package revocation keeps the list of revoked token ids until the tokens
// would have expired anyway.
package revocation

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// List is implemented by every revocation backend.
type List interface {
	RevokeTokens(ctx context.Context, jtis []string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Metrics observes revocation check latency.
type Metrics struct {
	IsRevokedDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		IsRevokedDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "educa_is_token_revoked_duration_ms",
			Help:    "Latency of token revocation checks in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}

func (m *Metrics) observe(start time.Time) {
	if m != nil {
		m.IsRevokedDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}
}

func nonEmpty(jtis []string) []string {
	out := make([]string, 0, len(jtis))
	for _, jti := range jtis {
		if jti != "" {
			out = append(out, jti)
		}
	}
	return out
}
