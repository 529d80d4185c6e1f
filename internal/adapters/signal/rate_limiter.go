package signal

import (
	"golang.org/x/time/rate"
)

// connLimiter caps inbound events per connection. A nil limiter allows
// everything.
type connLimiter struct {
	l *rate.Limiter
}

func newConnLimiter(perSecond float64, burst int) *connLimiter {
	if perSecond <= 0 {
		return &connLimiter{}
	}
	if burst < 1 {
		burst = 1
	}
	return &connLimiter{l: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (cl *connLimiter) Allow() bool {
	if cl.l == nil {
		return true
	}
	return cl.l.Allow()
}
