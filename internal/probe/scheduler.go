package probe

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"modelscout/internal/domain"
)

// DefaultConcurrency is the worker-pool size used when none is configured.
const DefaultConcurrency = 10

// Scheduler fans probes over candidates on a fixed-size worker pool. There
// is no early exit: Run returns once every candidate has an outcome.
type Scheduler struct {
	concurrency int
	log         logrus.FieldLogger
}

// NewScheduler builds a scheduler with the given pool size.
func NewScheduler(concurrency int, log logrus.FieldLogger) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{concurrency: concurrency, log: log}
}

// Run probes every candidate with the strategy and returns one outcome per
// candidate. A panic inside a probe is confined to its task and recorded as
// Unreachable for that candidate only.
func (s *Scheduler) Run(ctx context.Context, candidates []domain.Candidate, strategy Strategy) (map[domain.Candidate]domain.ProbeOutcome, error) {
	outcomes := make(map[domain.Candidate]domain.ProbeOutcome, len(candidates))
	if len(candidates) == 0 {
		return outcomes, nil
	}

	pool, err := ants.NewPool(s.concurrency)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	record := func(c domain.Candidate, o domain.ProbeOutcome) {
		mu.Lock()
		outcomes[c] = o
		mu.Unlock()
	}

	for _, candidate := range candidates {
		candidate := candidate // per-iteration copy; go directive < 1.22 shares the loop variable
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Errorf("probe of %s panicked: %v", candidate.HostPort(), r)
					record(candidate, domain.Unreachable(fmt.Sprintf("probe panic: %v", r)))
				}
			}()

			outcome := strategy.Probe(ctx, candidate)
			s.log.Debugf("probed %s: %s", candidate.HostPort(), outcome.Kind)
			record(candidate, outcome)
		})
		if submitErr != nil {
			// Pool refused the task; the candidate still gets an outcome.
			wg.Done()
			s.log.WithError(submitErr).Warnf("could not schedule probe of %s", candidate.HostPort())
			record(candidate, domain.Unreachable(fmt.Sprintf("schedule probe: %v", submitErr)))
		}
	}

	wg.Wait()
	return outcomes, nil
}
