package probe

import (
	"context"
	"net/http"
	"time"

	"modelscout/internal/domain"
)

const (
	// DefaultTimeout bounds each probe request.
	DefaultTimeout = 5 * time.Second

	// maxProbeBody caps how much of a probed server's response is read.
	maxProbeBody = 1 << 20
)

// Strategy fingerprints one candidate. Implementations return an outcome
// for every input; network and parse failures are outcomes, not errors.
type Strategy interface {
	Name() string
	Probe(ctx context.Context, candidate domain.Candidate) domain.ProbeOutcome
}

// newProbeClient builds the HTTP client shared by a strategy. Redirects are
// followed; per-request deadlines come from the client timeout.
func newProbeClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
