// Package scout wires the discovery pipeline: search-index queries feed a
// deduplicated candidate set, candidates are probed concurrently, and
// confirmed servers are enriched and aggregated into the run report.
package scout

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"modelscout/internal/config"
	"modelscout/internal/discovery"
	"modelscout/internal/domain"
	"modelscout/internal/probe"
	"modelscout/internal/report"
)

// SearchIndex is everything the pipeline needs from the external index.
type SearchIndex interface {
	discovery.SearchAPI
	report.HostAPI
}

// Result carries the report together with run statistics for persistence.
type Result struct {
	Report          *domain.Report
	Family          string
	Queries         []string
	TotalCandidates int
	StartedAt       time.Time
	CompletedAt     time.Time
}

// Scout runs the full discovery-and-fingerprinting pipeline for one family.
type Scout struct {
	index SearchIndex
	cfg   *config.Config
	log   logrus.FieldLogger
}

// New builds a pipeline over the given search index.
func New(index SearchIndex, cfg *config.Config, log logrus.FieldLogger) *Scout {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scout{index: index, cfg: cfg, log: log}
}

// Run executes the two sequential phases: discovery, then concurrent
// probing. It returns an error only for pipeline-level failures; a run that
// confirms nothing is a normal result carrying the diagnostic envelope.
func (s *Scout) Run(ctx context.Context) (*Result, error) {
	family := s.cfg.Family
	strategy, policy, err := s.familyPipeline(family)
	if err != nil {
		return nil, err
	}
	queries := s.cfg.QueriesFor(family)

	result := &Result{
		Family:    string(family),
		Queries:   queries,
		StartedAt: time.Now(),
	}

	orch := discovery.New(
		s.index,
		policy,
		s.cfg.Discovery.PageLimit,
		s.cfg.Discovery.PageSize,
		s.cfg.Discovery.PageDelay.Duration(),
		s.log,
	)
	candidates := orch.Discover(ctx, queries)
	result.TotalCandidates = candidates.Len()

	s.log.Infof("probing %d candidates with the %s strategy", candidates.Len(), strategy.Name())
	scheduler := probe.NewScheduler(s.cfg.Probe.Concurrency, s.log)
	outcomes, err := scheduler.Run(ctx, candidates.All(), strategy)
	if err != nil {
		return nil, fmt.Errorf("probe candidates: %w", err)
	}

	aggregator := report.NewAggregator(s.index, s.log)
	result.Report = aggregator.Aggregate(ctx, string(family), outcomes, result.TotalCandidates, queries)
	result.CompletedAt = time.Now()

	return result, nil
}

// Lookup probes a single host with the family's strategy, bypassing
// discovery. It is the interactive "what is running at this address" mode.
func (s *Scout) Lookup(ctx context.Context, candidate domain.Candidate) (*Result, error) {
	family := s.cfg.Family
	strategy, _, err := s.familyPipeline(family)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Family:          string(family),
		TotalCandidates: 1,
		StartedAt:       time.Now(),
	}

	outcome := strategy.Probe(ctx, candidate)

	aggregator := report.NewAggregator(s.index, s.log)
	result.Report = aggregator.Lookup(ctx, string(family), candidate, outcome)
	result.CompletedAt = time.Now()

	return result, nil
}

// familyPipeline maps a family to its strategy and port policy. The two
// strategies stay separate on purpose: their classification precedence
// differs and must not be merged.
func (s *Scout) familyPipeline(family config.Family) (probe.Strategy, discovery.PortPolicy, error) {
	timeout := s.cfg.Probe.Timeout.Duration()
	switch family {
	case config.FamilyOllama:
		return probe.NewOllamaStrategy(timeout), discovery.PortPolicy{DefaultPort: config.OllamaDefaultPort}, nil
	case config.FamilyLlamaCpp:
		return probe.NewLlamaCppStrategy(timeout), discovery.PortPolicy{FanoutPorts: config.LlamaCppCommonPorts}, nil
	default:
		return nil, discovery.PortPolicy{}, fmt.Errorf("unknown family %q", family)
	}
}
