package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"modelscout/internal/domain"
)

// ollamaTagsPath is the model-listing endpoint present on every Ollama
// generation.
const ollamaTagsPath = "/api/tags"

// tagsResponse covers both API generations: new servers answer with a
// top-level "models" list, old ones with "tags". Pointers distinguish an
// absent key from an empty list.
type tagsResponse struct {
	Models *[]tagEntry `json:"models"`
	Tags   *[]tagEntry `json:"tags"`
}

// tagEntry is one advertised model. Name is required; a listing entry
// without it is a shape mismatch, not an error.
type tagEntry struct {
	Name   *string `json:"name"`
	Size   *int64  `json:"size"`
	Digest *string `json:"digest"`
}

// OllamaStrategy probes the fixed tags endpoint and accepts only the two
// recognized response shapes.
type OllamaStrategy struct {
	client *http.Client
}

// NewOllamaStrategy builds the strict single-endpoint strategy.
func NewOllamaStrategy(timeout time.Duration) *OllamaStrategy {
	return &OllamaStrategy{client: newProbeClient(timeout)}
}

// Name identifies the strategy.
func (s *OllamaStrategy) Name() string { return "ollama" }

// Probe issues one GET against /api/tags. Transport failures map to
// Unreachable; any other negative signal, including a malformed or
// unexpected body, maps to NotMatched.
func (s *OllamaStrategy) Probe(ctx context.Context, candidate domain.Candidate) domain.ProbeOutcome {
	reqURL := "http://" + candidate.HostPort() + ollamaTagsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.NotMatched(fmt.Sprintf("build request: %v", err))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Unreachable(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.NotMatched(fmt.Sprintf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return domain.Unreachable(fmt.Sprintf("read body: %v", err))
	}

	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		if json.Valid(body) {
			// Well-formed JSON that is not an object; keep it for diagnostics.
			out := domain.NotMatched("unexpected response shape")
			out.Raw = body
			return out
		}
		return domain.NotMatched(fmt.Sprintf("malformed body: %v", err))
	}

	entries := tags.Models
	version := domain.APIVersionNew
	if entries == nil {
		entries = tags.Tags
		version = domain.APIVersionOld
	}
	if entries == nil {
		// Neither recognized key; keep the body for diagnostics.
		out := domain.NotMatched("unexpected response shape")
		out.Raw = body
		return out
	}

	names := make([]string, 0, len(*entries))
	details := make([]domain.ModelInfo, 0, len(*entries))
	for _, e := range *entries {
		if e.Name == nil {
			return domain.NotMatched("listing entry missing name")
		}
		names = append(names, *e.Name)
		details = append(details, domain.ModelInfo{
			Name:   *e.Name,
			Size:   sizeString(e.Size),
			Digest: stringOr(e.Digest, domain.Unknown),
		})
	}

	return domain.ProbeOutcome{
		Kind:         domain.OutcomeMatched,
		Endpoint:     ollamaTagsPath,
		APIType:      domain.APITypeOllama,
		APIVersion:   version,
		Models:       names,
		ModelDetails: details,
	}
}

func sizeString(size *int64) string {
	if size == nil {
		return domain.Unknown
	}
	return strconv.FormatInt(*size, 10)
}

func stringOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
