package probe

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"modelscout/internal/domain"
)

// llamaCppSignature is the string that identifies the service in Server
// headers and HTML bodies.
const llamaCppSignature = "llama.cpp"

// llamaCppEndpoints is the ordered candidate path list: the model listing
// first, then the chat UI root, then known alternates. The first path with
// a positive signal wins.
var llamaCppEndpoints = []string{
	"/v1/models",
	"/",
	"/model",
	"/v1/completions",
}

// LlamaCppStrategy walks the endpoint list and classifies the first
// positive signal by the fixed precedence; see the package comment.
type LlamaCppStrategy struct {
	client *http.Client
}

// NewLlamaCppStrategy builds the heuristic multi-endpoint strategy.
func NewLlamaCppStrategy(timeout time.Duration) *LlamaCppStrategy {
	return &LlamaCppStrategy{client: newProbeClient(timeout)}
}

// Name identifies the strategy.
func (s *LlamaCppStrategy) Name() string { return "llamacpp" }

// Probe tries each endpoint in order and stops at the first positive
// signal. Endpoints that fail at the network level are skipped silently; if
// every endpoint failed to answer at all the candidate is Unreachable, and
// if at least one answered without a positive signal it is NotMatched.
func (s *LlamaCppStrategy) Probe(ctx context.Context, candidate domain.Candidate) domain.ProbeOutcome {
	base := "http://" + candidate.HostPort()
	answered := false
	var lastErr error

	for _, endpoint := range llamaCppEndpoints {
		outcome, err := s.probeEndpoint(ctx, base, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		answered = true
		if outcome != nil {
			return *outcome
		}
	}

	if !answered && lastErr != nil {
		return domain.Unreachable(lastErr.Error())
	}
	return domain.NotMatched("no endpoint produced a positive signal")
}

// probeEndpoint fetches one path. A nil outcome with nil error means the
// endpoint answered without any positive signal.
func (s *LlamaCppStrategy) probeEndpoint(ctx context.Context, base, endpoint string) (*domain.ProbeOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return nil, err
	}

	serverHeader := strings.ToLower(resp.Header.Get("Server"))
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	isJSON := strings.Contains(contentType, "json")

	// Precedence 1: OpenAI-compatible model listing at the models endpoint.
	if endpoint == "/v1/models" && isJSON {
		if parsed := gjson.ParseBytes(body); parsed.IsObject() {
			if data := parsed.Get("data"); data.IsArray() {
				models := make([]string, 0, len(data.Array()))
				for _, item := range data.Array() {
					models = append(models, item.Get("id").String())
				}
				return &domain.ProbeOutcome{
					Kind:     domain.OutcomeMatched,
					Endpoint: endpoint,
					APIType:  domain.APITypeOpenAICompatible,
					Models:   models,
					Raw:      body,
				}, nil
			}
		}
	}

	// Precedence 2: the service names itself in the Server header.
	if strings.Contains(serverHeader, llamaCppSignature) {
		return &domain.ProbeOutcome{
			Kind:         domain.OutcomeMatched,
			Endpoint:     endpoint,
			APIType:      domain.APITypeServerHeader,
			ServerHeader: serverHeader,
		}, nil
	}

	// Precedence 3: any well-formed JSON object body.
	if isJSON && gjson.ValidBytes(body) && gjson.ParseBytes(body).IsObject() {
		return &domain.ProbeOutcome{
			Kind:     domain.OutcomeMatched,
			Endpoint: endpoint,
			APIType:  domain.APITypeJSON,
			Raw:      body,
		}, nil
	}

	// Precedence 4: the chat web interface.
	if strings.Contains(contentType, "text/html") && strings.Contains(strings.ToLower(string(body)), llamaCppSignature) {
		return &domain.ProbeOutcome{
			Kind:     domain.OutcomeMatched,
			Endpoint: endpoint,
			APIType:  domain.APITypeWebInterface,
		}, nil
	}

	return nil, nil
}

// ServerInfoFromOutcome converts a heuristic match into its report payload.
func ServerInfoFromOutcome(o domain.ProbeOutcome) *domain.ServerInfo {
	if o.Kind != domain.OutcomeMatched {
		return nil
	}
	switch o.APIType {
	case domain.APITypeOpenAICompatible:
		return &domain.ServerInfo{
			Endpoint: o.Endpoint,
			APIType:  o.APIType,
			Models:   o.Models,
			RawData:  o.Raw,
		}
	case domain.APITypeServerHeader:
		return &domain.ServerInfo{
			Endpoint: o.Endpoint,
			Server:   o.ServerHeader,
		}
	case domain.APITypeJSON:
		return &domain.ServerInfo{
			Endpoint: o.Endpoint,
			APIType:  o.APIType,
			RawData:  o.Raw,
		}
	case domain.APITypeWebInterface:
		return &domain.ServerInfo{
			Endpoint: o.Endpoint,
			Type:     string(domain.APITypeWebInterface),
			Title:    llamaCppSignature,
		}
	default:
		return nil
	}
}
