package domain

import "encoding/json"

// Unknown is the sentinel substituted for metadata a server or lookup did
// not provide.
const Unknown = "Unknown"

// OutcomeKind tags a ProbeOutcome variant.
type OutcomeKind string

const (
	// OutcomeNotMatched means the candidate answered but is not the target
	// service, or answered with an unrecognized shape.
	OutcomeNotMatched OutcomeKind = "not_matched"
	// OutcomeMatched means the probe positively identified the service.
	OutcomeMatched OutcomeKind = "matched"
	// OutcomeUnreachable means a network-level failure: timeout, connection
	// refused, DNS failure.
	OutcomeUnreachable OutcomeKind = "unreachable"
)

// APIType classifies how a matched service was recognized.
type APIType string

const (
	// APITypeOllama is the Ollama tags endpoint, either API generation.
	APITypeOllama APIType = "ollama"
	// APITypeOpenAICompatible is an OpenAI-style /v1/models listing.
	APITypeOpenAICompatible APIType = "openai_compatible"
	// APITypeServerHeader is a match on the Server response header alone.
	APITypeServerHeader APIType = "server_header"
	// APITypeJSON is a generic well-formed JSON object response.
	APITypeJSON APIType = "json"
	// APITypeWebInterface is an HTML page carrying the service signature.
	APITypeWebInterface APIType = "web_interface"
)

// APIVersion tags which Ollama listing generation answered.
type APIVersion string

const (
	// APIVersionNew is the current generation, a top-level "models" list.
	APIVersionNew APIVersion = "new"
	// APIVersionOld is the legacy generation, a top-level "tags" list.
	APIVersionOld APIVersion = "old"
)

// ModelInfo describes one model advertised by a confirmed server. Size and
// Digest fall back to the Unknown sentinel when the server omits them.
type ModelInfo struct {
	Name   string `json:"name"`
	Size   string `json:"size"`
	Digest string `json:"digest"`
}

// ProbeOutcome is the result of one full probe attempt against a candidate.
// Exactly one outcome exists per candidate per run.
type ProbeOutcome struct {
	Kind OutcomeKind

	// Endpoint is the path that produced the positive signal, for Matched.
	Endpoint string
	// APIType classifies the positive signal, for Matched.
	APIType APIType
	// APIVersion records the listing generation for Ollama matches.
	APIVersion APIVersion

	// Models lists extracted model identifiers, when the signal carried any.
	Models []string
	// ModelDetails carries the structured entries behind Models.
	ModelDetails []ModelInfo
	// ServerHeader is the Server response header, when it drove the match.
	ServerHeader string
	// Raw retains the response body for diagnostics and generic JSON matches.
	Raw json.RawMessage

	// Reason records why a probe came back NotMatched or Unreachable.
	Reason string
}

// NotMatched builds the negative outcome with a short diagnostic reason.
func NotMatched(reason string) ProbeOutcome {
	return ProbeOutcome{Kind: OutcomeNotMatched, Reason: reason}
}

// Unreachable builds the network-failure outcome.
func Unreachable(reason string) ProbeOutcome {
	return ProbeOutcome{Kind: OutcomeUnreachable, Reason: reason}
}

// HasPayload reports whether a Matched outcome extracted anything worth
// reporting. A strict Ollama match with an empty model list is an
// uninformative hit and is suppressed from the final report; heuristic
// matches always carry their classification as payload.
func (o ProbeOutcome) HasPayload() bool {
	if o.Kind != OutcomeMatched {
		return false
	}
	if o.APIType == APITypeOllama {
		return len(o.Models) > 0
	}
	return true
}
