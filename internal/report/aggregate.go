// Package report assembles probe outcomes into the final run artifact and
// serializes it at the process boundary.
package report

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"modelscout/internal/domain"
	"modelscout/internal/probe"
	"modelscout/internal/shodan"
)

// HostAPI is the slice of the search index used for enrichment.
type HostAPI interface {
	Host(ctx context.Context, address string) (*shodan.HostInfo, error)
}

// noServersError is the envelope message format for empty runs.
const noServersError = "No accessible %s servers found"

// Aggregator merges confirmed probe outcomes with host enrichment.
type Aggregator struct {
	hosts HostAPI
	log   logrus.FieldLogger
}

// NewAggregator builds an aggregator backed by the given host lookup.
func NewAggregator(hosts HostAPI, log logrus.FieldLogger) *Aggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{hosts: hosts, log: log}
}

// Aggregate keeps Matched outcomes that carried a payload, enriches each
// with host metadata, and builds the report. Enrichment failure degrades to
// sentinels instead of dropping the server. An empty result produces the
// diagnostic envelope with the candidate count and query list.
func (a *Aggregator) Aggregate(ctx context.Context, family string, outcomes map[domain.Candidate]domain.ProbeOutcome, totalCandidates int, queries []string) *domain.Report {
	servers := make([]domain.EnrichedServer, 0)

	candidates := make([]domain.Candidate, 0, len(outcomes))
	for candidate := range outcomes {
		candidates = append(candidates, candidate)
	}
	// Stable output order regardless of probe completion order.
	slices.SortFunc(candidates, func(x, y domain.Candidate) int {
		if c := strings.Compare(x.Address, y.Address); c != 0 {
			return c
		}
		return x.Port - y.Port
	})

	for _, candidate := range candidates {
		outcome := outcomes[candidate]
		if !outcome.HasPayload() {
			if outcome.Kind == domain.OutcomeMatched {
				a.log.Debugf("skipping %s: matched but no models", candidate.HostPort())
			}
			continue
		}

		meta := a.enrich(ctx, candidate)
		server := domain.EnrichedServer{
			IPStr: candidate.Address,
			Port:  candidate.Port,
			Location: domain.Location{
				CountryName: meta.Country,
				CityName:    meta.City,
			},
			Org:       meta.Organization,
			Hostnames: meta.Hostnames,
		}

		if outcome.APIType == domain.APITypeOllama {
			server.Models = outcome.Models
		} else {
			server.ServerInfo = probe.ServerInfoFromOutcome(outcome)
		}

		a.log.Infof("confirmed %s server at %s", family, candidate.HostPort())
		servers = append(servers, server)
	}

	report := &domain.Report{Servers: servers}
	if report.Empty() {
		report.Envelope = &domain.Envelope{
			Error: fmt.Sprintf(noServersError, family),
			DebugInfo: domain.DebugInfo{
				TotalUniqueIPs: totalCandidates,
				Queries:        queries,
			},
		}
	}
	return report
}

// Lookup builds the single-host report. Unlike a discovery run it keeps
// everything the probe extracted: a matched Ollama host carries its listing
// generation and structured model details, and a failed probe surfaces its
// own reason instead of the generic empty-run envelope.
func (a *Aggregator) Lookup(ctx context.Context, family string, candidate domain.Candidate, outcome domain.ProbeOutcome) *domain.Report {
	if outcome.HasPayload() {
		outcomes := map[domain.Candidate]domain.ProbeOutcome{candidate: outcome}
		r := a.Aggregate(ctx, family, outcomes, 1, nil)
		for i := range r.Servers {
			r.Servers[i].APIVersion = outcome.APIVersion
			r.Servers[i].ModelDetails = outcome.ModelDetails
		}
		return r
	}

	reason := outcome.Reason
	if reason == "" && outcome.Kind == domain.OutcomeMatched {
		reason = "matched but advertised no models"
	}
	return &domain.Report{Envelope: &domain.Envelope{
		Error:     fmt.Sprintf("%s %s: %s", candidate.HostPort(), outcome.Kind, reason),
		DebugInfo: domain.DebugInfo{TotalUniqueIPs: 1},
	}}
}

// enrich looks up host metadata, degrading to sentinels on failure.
func (a *Aggregator) enrich(ctx context.Context, candidate domain.Candidate) domain.HostMetadata {
	info, err := a.hosts.Host(ctx, candidate.Address)
	if err != nil {
		a.log.WithError(err).Warnf("host lookup for %s failed, using sentinels", candidate.Address)
		return domain.UnknownHostMetadata()
	}

	meta := domain.HostMetadata{
		Country:      info.CountryName,
		City:         info.CityName,
		Organization: info.Org,
		Hostnames:    info.Hostnames,
	}
	if meta.Country == "" {
		meta.Country = domain.Unknown
	}
	if meta.City == "" {
		meta.City = domain.Unknown
	}
	if meta.Organization == "" {
		meta.Organization = domain.Unknown
	}
	if meta.Hostnames == nil {
		meta.Hostnames = []string{}
	}
	return meta
}
