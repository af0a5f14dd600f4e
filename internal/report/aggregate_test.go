package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"modelscout/internal/domain"
	"modelscout/internal/shodan"
)

// fakeHostAPI scripts enrichment lookups.
type fakeHostAPI struct {
	hosts map[string]*shodan.HostInfo
	errs  map[string]error
}

func (f *fakeHostAPI) Host(_ context.Context, address string) (*shodan.HostInfo, error) {
	if err, ok := f.errs[address]; ok {
		return nil, err
	}
	if info, ok := f.hosts[address]; ok {
		return info, nil
	}
	return &shodan.HostInfo{}, nil
}

func matchedOllama(models ...string) domain.ProbeOutcome {
	return domain.ProbeOutcome{
		Kind:    domain.OutcomeMatched,
		APIType: domain.APITypeOllama,
		Models:  models,
	}
}

func TestAggregateSuppressesEmptyPayload(t *testing.T) {
	outcomes := map[domain.Candidate]domain.ProbeOutcome{
		{Address: "1.2.3.4", Port: 11434}: matchedOllama("llama3"),
		{Address: "5.6.7.8", Port: 11434}: matchedOllama(), // matched, zero models
		{Address: "9.9.9.9", Port: 11434}: domain.NotMatched("nginx"),
	}

	a := NewAggregator(&fakeHostAPI{}, nil)
	r := a.Aggregate(context.Background(), "ollama", outcomes, 3, []string{"q"})

	if len(r.Servers) != 1 {
		t.Fatalf("expected exactly 1 server, got %d", len(r.Servers))
	}
	if r.Servers[0].IPStr != "1.2.3.4" {
		t.Fatalf("unexpected server: %+v", r.Servers[0])
	}
}

func TestAggregateOrdersByAddress(t *testing.T) {
	outcomes := map[domain.Candidate]domain.ProbeOutcome{
		{Address: "9.0.0.1", Port: 11434}: matchedOllama("a"),
		{Address: "1.2.3.4", Port: 8080}:  matchedOllama("b"),
		{Address: "1.2.3.4", Port: 3000}:  matchedOllama("c"),
	}

	a := NewAggregator(&fakeHostAPI{}, nil)
	r := a.Aggregate(context.Background(), "ollama", outcomes, 3, nil)

	if len(r.Servers) != 3 {
		t.Fatalf("expected 3 servers, got %d", len(r.Servers))
	}
	got := []string{
		fmt.Sprintf("%s:%d", r.Servers[0].IPStr, r.Servers[0].Port),
		fmt.Sprintf("%s:%d", r.Servers[1].IPStr, r.Servers[1].Port),
		fmt.Sprintf("%s:%d", r.Servers[2].IPStr, r.Servers[2].Port),
	}
	want := []string{"1.2.3.4:3000", "1.2.3.4:8080", "9.0.0.1:11434"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v, want %v", i, got, want)
		}
	}
}

func TestAggregateEnrichmentDegradesToSentinels(t *testing.T) {
	candidate := domain.Candidate{Address: "1.2.3.4", Port: 11434}
	api := &fakeHostAPI{errs: map[string]error{"1.2.3.4": fmt.Errorf("api status 404")}}

	a := NewAggregator(api, nil)
	r := a.Aggregate(context.Background(), "ollama",
		map[domain.Candidate]domain.ProbeOutcome{candidate: matchedOllama("llama3")}, 1, nil)

	if len(r.Servers) != 1 {
		t.Fatalf("enrichment failure must not drop the server, got %d servers", len(r.Servers))
	}
	s := r.Servers[0]
	if s.Org != domain.Unknown || s.Location.CountryName != domain.Unknown {
		t.Fatalf("expected Unknown sentinels, got %+v", s)
	}
	if s.Hostnames == nil || len(s.Hostnames) != 0 {
		t.Fatalf("expected empty hostname list, got %v", s.Hostnames)
	}
}

func TestAggregateEnrichmentFieldsPopulated(t *testing.T) {
	candidate := domain.Candidate{Address: "1.2.3.4", Port: 11434}
	api := &fakeHostAPI{hosts: map[string]*shodan.HostInfo{
		"1.2.3.4": {CountryName: "Germany", CityName: "Berlin", Org: "Example AG", Hostnames: []string{"h.example.net"}},
	}}

	a := NewAggregator(api, nil)
	r := a.Aggregate(context.Background(), "ollama",
		map[domain.Candidate]domain.ProbeOutcome{candidate: matchedOllama("llama3")}, 1, nil)

	s := r.Servers[0]
	if s.Org != "Example AG" || s.Location.CityName != "Berlin" || len(s.Hostnames) != 1 {
		t.Fatalf("unexpected enrichment: %+v", s)
	}
}

func TestAggregateEmptyRunProducesEnvelope(t *testing.T) {
	outcomes := map[domain.Candidate]domain.ProbeOutcome{
		{Address: "5.6.7.8", Port: 11434}: domain.Unreachable("connection refused"),
	}

	a := NewAggregator(&fakeHostAPI{}, nil)
	queries := []string{`product:"Ollama"`, "port:11434"}
	r := a.Aggregate(context.Background(), "Ollama", outcomes, 42, queries)

	if !r.Empty() || r.Envelope == nil {
		t.Fatalf("expected envelope for empty run")
	}
	if r.Envelope.Error != "No accessible Ollama servers found" {
		t.Fatalf("unexpected envelope error: %q", r.Envelope.Error)
	}
	if r.Envelope.DebugInfo.TotalUniqueIPs != 42 || len(r.Envelope.DebugInfo.Queries) != 2 {
		t.Fatalf("unexpected debug info: %+v", r.Envelope.DebugInfo)
	}
}

func TestLookupCarriesModelDetailsAndGeneration(t *testing.T) {
	candidate := domain.Candidate{Address: "1.2.3.4", Port: 11434}
	outcome := domain.ProbeOutcome{
		Kind:       domain.OutcomeMatched,
		APIType:    domain.APITypeOllama,
		APIVersion: domain.APIVersionOld,
		Models:     []string{"llama2:7b"},
		ModelDetails: []domain.ModelInfo{
			{Name: "llama2:7b", Size: "3826793677", Digest: domain.Unknown},
		},
	}

	a := NewAggregator(&fakeHostAPI{}, nil)
	r := a.Lookup(context.Background(), "ollama", candidate, outcome)

	if len(r.Servers) != 1 {
		t.Fatalf("expected 1 server from lookup, got %d", len(r.Servers))
	}
	s := r.Servers[0]
	if s.APIVersion != domain.APIVersionOld {
		t.Fatalf("expected old listing generation, got %q", s.APIVersion)
	}
	if len(s.ModelDetails) != 1 || s.ModelDetails[0].Size != "3826793677" {
		t.Fatalf("expected structured model details, got %+v", s.ModelDetails)
	}
}

func TestLookupFailureSurfacesReason(t *testing.T) {
	candidate := domain.Candidate{Address: "1.2.3.4", Port: 11434}
	a := NewAggregator(&fakeHostAPI{}, nil)

	r := a.Lookup(context.Background(), "ollama", candidate, domain.Unreachable("connection refused"))
	if r.Envelope == nil {
		t.Fatalf("expected envelope for failed lookup")
	}
	if !strings.Contains(r.Envelope.Error, "connection refused") {
		t.Fatalf("probe reason must survive into the report, got %q", r.Envelope.Error)
	}

	r = a.Lookup(context.Background(), "ollama", candidate, domain.NotMatched("status 403"))
	if r.Envelope == nil || !strings.Contains(r.Envelope.Error, "status 403") {
		t.Fatalf("expected not-matched reason in report, got %+v", r.Envelope)
	}

	// Matched with zero models gets an explicit reason, not an empty string.
	empty := domain.ProbeOutcome{Kind: domain.OutcomeMatched, APIType: domain.APITypeOllama}
	r = a.Lookup(context.Background(), "ollama", candidate, empty)
	if r.Envelope == nil || !strings.Contains(r.Envelope.Error, "no models") {
		t.Fatalf("expected empty-listing reason, got %+v", r.Envelope)
	}
}

func TestReportSerialization(t *testing.T) {
	dir := t.TempDir()

	// Non-empty report serializes as a JSON array.
	full := &domain.Report{Servers: []domain.EnrichedServer{{
		IPStr:     "1.2.3.4",
		Port:      11434,
		Location:  domain.Location{CountryName: "Germany", CityName: "Berlin"},
		Org:       "Example AG",
		Hostnames: []string{},
		Models:    []string{"llama3"},
	}}}
	path := filepath.Join(dir, "servers.json")
	if err := WriteJSON(path, full); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var servers []domain.EnrichedServer
	if err := json.Unmarshal(data, &servers); err != nil {
		t.Fatalf("report should be a JSON array: %v", err)
	}
	if len(servers) != 1 || servers[0].Models[0] != "llama3" {
		t.Fatalf("unexpected round trip: %+v", servers)
	}

	// Empty report serializes as the envelope object.
	empty := &domain.Report{Envelope: &domain.Envelope{
		Error:     "No accessible ollama servers found",
		DebugInfo: domain.DebugInfo{TotalUniqueIPs: 7, Queries: []string{"q"}},
	}}
	path = filepath.Join(dir, "empty.json")
	if err := WriteJSON(path, empty); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var envelope domain.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("empty report should be an envelope object: %v", err)
	}
	if envelope.DebugInfo.TotalUniqueIPs != 7 {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestDefaultFilename(t *testing.T) {
	now := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	if got := DefaultFilename("ollama", now); got != "modelscout_ollama_20250102_150405.json" {
		t.Fatalf("unexpected filename: %s", got)
	}
}
