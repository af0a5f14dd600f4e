// Package discovery turns configured search-index queries into a
// deduplicated set of probe candidates.
package discovery

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"modelscout/internal/domain"
	"modelscout/internal/shodan"
)

// SearchAPI is the slice of the search index the orchestrator consumes.
type SearchAPI interface {
	Search(ctx context.Context, query string, page int) (*shodan.SearchResult, error)
}

// PortPolicy decides the port(s) for a match that did not advertise one.
// Exactly one of DefaultPort and FanoutPorts is set: the Ollama family
// defaults to a single standard port, the llama.cpp family fans a portless
// address out across a small set of common ports.
type PortPolicy struct {
	DefaultPort int
	FanoutPorts []int
}

// Expand applies the policy to one match.
func (p PortPolicy) Expand(m shodan.Match) []domain.Candidate {
	if m.Port > 0 {
		return []domain.Candidate{{Address: m.IPStr, Port: m.Port}}
	}
	if len(p.FanoutPorts) > 0 {
		out := make([]domain.Candidate, 0, len(p.FanoutPorts))
		for _, port := range p.FanoutPorts {
			out = append(out, domain.Candidate{Address: m.IPStr, Port: port})
		}
		return out
	}
	return []domain.Candidate{{Address: m.IPStr, Port: p.DefaultPort}}
}

// Orchestrator runs every configured query against the search index and
// accumulates candidates. Queries are sequential, each paginated in order,
// to respect upstream rate limits.
type Orchestrator struct {
	api       SearchAPI
	policy    PortPolicy
	pageLimit int
	pageSize  int
	pageDelay time.Duration
	log       logrus.FieldLogger
}

// New builds an orchestrator. pageLimit caps pages per query, pageSize is
// the index's page size used to recognize the final page, and pageDelay is
// slept between page fetches.
func New(api SearchAPI, policy PortPolicy, pageLimit, pageSize int, pageDelay time.Duration, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		api:       api,
		policy:    policy,
		pageLimit: pageLimit,
		pageSize:  pageSize,
		pageDelay: pageDelay,
		log:       log,
	}
}

// Discover fetches up to pageLimit pages per query, stopping a query early
// when a page comes back short. Page and query failures are logged and
// skipped; discovery never aborts on an upstream error. The returned set is
// the deduplicated union across all queries.
func (o *Orchestrator) Discover(ctx context.Context, queries []string) *domain.CandidateSet {
	set := domain.NewCandidateSet()

	for _, query := range queries {
		o.log.Infof("searching: %s", query)
		o.discoverQuery(ctx, query, set)
		if ctx.Err() != nil {
			break
		}
	}

	o.log.Infof("discovery complete: %d unique candidates", set.Len())
	return set
}

func (o *Orchestrator) discoverQuery(ctx context.Context, query string, set *domain.CandidateSet) {
	for page := 1; page <= o.pageLimit; page++ {
		// The delay precedes every fetch after the first, so a failed page
		// does not bypass the rate-limit spacing.
		if page > 1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.pageDelay):
			}
		}

		result, err := o.api.Search(ctx, query, page)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.log.WithError(err).Warnf("page %d of %q failed, skipping page", page, query)
			continue
		}

		o.log.Debugf("page %d of %q: %d total results, %d matches", page, query, result.Total, len(result.Matches))

		for _, m := range result.Matches {
			for _, c := range o.policy.Expand(m) {
				set.Add(c)
			}
		}

		// A short page is the index's end-of-results signal.
		if len(result.Matches) < o.pageSize {
			return
		}
	}
}
