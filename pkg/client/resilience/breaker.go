package resilience

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abgdnv/inventory-console/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// serverFault marks a 5xx response so the breaker counts it without hiding the response from the caller.
type serverFault struct {
	status int
}

func (e *serverFault) Error() string {
	return fmt.Sprintf("server fault: status %d", e.status)
}

// NewCircuitBreaker builds a breaker that trips on consecutive failures or on the failure ratio.
// Only transport errors and 5xx responses are failures; 4xx responses are the caller's business.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig) *gobreaker.CircuitBreaker[*http.Response] {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
	return gobreaker.NewCircuitBreaker[*http.Response](st)
}

// BreakerTransport is an http.RoundTripper that routes every request through a circuit breaker.
// While the breaker is open, RoundTrip fails fast with gobreaker.ErrOpenState.
type BreakerTransport struct {
	next    http.RoundTripper
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewBreakerTransport wraps next; a nil next means http.DefaultTransport.
func NewBreakerTransport(next http.RoundTripper, breaker *gobreaker.CircuitBreaker[*http.Response]) *BreakerTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &BreakerTransport{next: next, breaker: breaker}
}

func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &serverFault{status: resp.StatusCode}
		}
		return resp, nil
	})
	var fault *serverFault
	if errors.As(err, &fault) {
		return resp, nil
	}
	return resp, err
}

// State reports the breaker state, for readiness checks.
func (t *BreakerTransport) State() gobreaker.State {
	return t.breaker.State()
}
