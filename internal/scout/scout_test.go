package scout

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"modelscout/internal/config"
	"modelscout/internal/domain"
	"modelscout/internal/shodan"
)

// fakeIndex serves scripted search pages and host lookups.
type fakeIndex struct {
	pages map[string][]shodan.Match
	hosts map[string]*shodan.HostInfo
}

func (f *fakeIndex) Search(_ context.Context, query string, page int) (*shodan.SearchResult, error) {
	if page > 1 {
		return &shodan.SearchResult{}, nil
	}
	matches := f.pages[query]
	return &shodan.SearchResult{Total: len(matches), Matches: matches}, nil
}

func (f *fakeIndex) Host(_ context.Context, address string) (*shodan.HostInfo, error) {
	if info, ok := f.hosts[address]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("no information available for %s", address)
}

func testConfig(family config.Family) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Family = family
	cfg.Discovery.PageDelay = config.Duration(time.Millisecond)
	cfg.Probe.Timeout = config.Duration(time.Second)
	return cfg
}

func serverMatch(t *testing.T, srv *httptest.Server) shodan.Match {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	return shodan.Match{IPStr: u.Hostname(), Port: port}
}

func closedMatch(t *testing.T) shodan.Match {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return shodan.Match{IPStr: "127.0.0.1", Port: port}
}

func TestRunEndToEnd(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"models":[{"name":"llama3"}]}`)
	}))
	defer ollama.Close()

	live := serverMatch(t, ollama)
	dead := closedMatch(t)

	cfg := testConfig(config.FamilyOllama)
	cfg.Queries.Ollama = []string{"q1", "q2"}

	index := &fakeIndex{
		pages: map[string][]shodan.Match{
			"q1": {live},
			"q2": {live, dead}, // live appears twice; dedup keeps one
		},
		hosts: map[string]*shodan.HostInfo{
			live.IPStr: {CountryName: "Germany", CityName: "Berlin", Org: "Example AG", Hostnames: []string{"h.example.net"}},
		},
	}

	result, err := New(index, cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.TotalCandidates != 2 {
		t.Fatalf("expected 2 candidates after dedup, got %d", result.TotalCandidates)
	}
	if len(result.Report.Servers) != 1 {
		t.Fatalf("expected exactly 1 confirmed server, got %d", len(result.Report.Servers))
	}
	s := result.Report.Servers[0]
	if s.IPStr != live.IPStr || s.Port != live.Port {
		t.Fatalf("unexpected server endpoint: %s:%d", s.IPStr, s.Port)
	}
	if len(s.Models) != 1 || s.Models[0] != "llama3" {
		t.Fatalf("unexpected models: %v", s.Models)
	}
	if s.Org != "Example AG" {
		t.Fatalf("expected enrichment applied, got %+v", s)
	}
}

func TestRunEmptyProducesEnvelope(t *testing.T) {
	dead := closedMatch(t)

	cfg := testConfig(config.FamilyOllama)
	cfg.Queries.Ollama = []string{"q1"}

	index := &fakeIndex{pages: map[string][]shodan.Match{"q1": {dead}}}

	result, err := New(index, cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("an empty run is not an error: %v", err)
	}
	if !result.Report.Empty() || result.Report.Envelope == nil {
		t.Fatalf("expected diagnostic envelope")
	}
	if result.Report.Envelope.DebugInfo.TotalUniqueIPs != 1 {
		t.Fatalf("unexpected debug info: %+v", result.Report.Envelope.DebugInfo)
	}
	if len(result.Report.Envelope.DebugInfo.Queries) != 1 {
		t.Fatalf("expected query list in envelope, got %v", result.Report.Envelope.DebugInfo.Queries)
	}
}

func TestLookupSingleHost(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tags":[{"name":"llama2:13b"}]}`)
	}))
	defer ollama.Close()

	match := serverMatch(t, ollama)
	cfg := testConfig(config.FamilyOllama)
	index := &fakeIndex{}

	result, err := New(index, cfg, nil).Lookup(context.Background(), domain.Candidate{Address: match.IPStr, Port: match.Port})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(result.Report.Servers) != 1 {
		t.Fatalf("expected 1 server from lookup, got %d", len(result.Report.Servers))
	}
	s := result.Report.Servers[0]
	if len(s.Models) != 1 || s.Models[0] != "llama2:13b" {
		t.Fatalf("unexpected models: %v", s.Models)
	}
	if s.APIVersion != domain.APIVersionOld {
		t.Fatalf("expected old listing generation, got %q", s.APIVersion)
	}
	if len(s.ModelDetails) != 1 || s.ModelDetails[0].Size != domain.Unknown {
		t.Fatalf("expected model details with sentinel size, got %+v", s.ModelDetails)
	}
	// Host lookup failed (unknown address), so enrichment degrades.
	if s.Org != domain.Unknown {
		t.Fatalf("expected Unknown org for failed enrichment, got %q", s.Org)
	}
}

func TestLookupFailureReportsReason(t *testing.T) {
	dead := closedMatch(t)
	cfg := testConfig(config.FamilyOllama)
	index := &fakeIndex{}

	result, err := New(index, cfg, nil).Lookup(context.Background(), domain.Candidate{Address: dead.IPStr, Port: dead.Port})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.Report.Envelope == nil {
		t.Fatalf("expected envelope for failed lookup")
	}
	if !strings.Contains(result.Report.Envelope.Error, "refused") {
		t.Fatalf("expected the transport failure in the report, got %q", result.Report.Envelope.Error)
	}
}

func TestLlamaCppFamilySelectsHeuristicStrategy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"data":[{"id":"ggml-model"}]}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	match := serverMatch(t, srv)
	cfg := testConfig(config.FamilyLlamaCpp)
	cfg.Queries.LlamaCpp = []string{"q"}

	index := &fakeIndex{pages: map[string][]shodan.Match{"q": {match}}}

	result, err := New(index, cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Report.Servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(result.Report.Servers))
	}
	s := result.Report.Servers[0]
	if s.ServerInfo == nil || s.ServerInfo.APIType != domain.APITypeOpenAICompatible {
		t.Fatalf("expected openai_compatible server info, got %+v", s.ServerInfo)
	}
	if len(s.Models) != 0 {
		t.Fatalf("heuristic matches report models inside server_info, got %v", s.Models)
	}
}
