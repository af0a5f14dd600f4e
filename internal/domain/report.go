package domain

import "encoding/json"

// HostMetadata is host-level enrichment from the search index. Every field
// degrades to the Unknown sentinel (or an empty list) when the lookup fails;
// enrichment failure never drops a confirmed server.
type HostMetadata struct {
	Country      string
	City         string
	Organization string
	Hostnames    []string
}

// UnknownHostMetadata returns the degraded enrichment used when a host
// lookup fails.
func UnknownHostMetadata() HostMetadata {
	return HostMetadata{
		Country:      Unknown,
		City:         Unknown,
		Organization: Unknown,
		Hostnames:    []string{},
	}
}

// Location is the geographic part of an enriched server record.
type Location struct {
	CountryName string `json:"country_name"`
	CityName    string `json:"city_name"`
}

// ServerInfo is the classification payload attached to heuristic matches.
// Field presence mirrors the signal that produced the match, so all fields
// are optional.
type ServerInfo struct {
	Endpoint string          `json:"endpoint,omitempty"`
	APIType  APIType         `json:"api_type,omitempty"`
	Models   []string        `json:"models,omitempty"`
	RawData  json.RawMessage `json:"raw_data,omitempty"`
	Server   string          `json:"server,omitempty"`
	Type     string          `json:"type,omitempty"`
	Title    string          `json:"title,omitempty"`
}

// EnrichedServer is a confirmed server joined with host metadata. Models is
// set for strict (Ollama) matches, ServerInfo for heuristic (llama.cpp)
// matches. APIVersion and ModelDetails are filled only by single-host
// lookups, which report everything the probe extracted.
type EnrichedServer struct {
	IPStr        string      `json:"ip_str"`
	Port         int         `json:"port"`
	ServerInfo   *ServerInfo `json:"server_info,omitempty"`
	Location     Location    `json:"location"`
	Org          string      `json:"org"`
	Hostnames    []string    `json:"hostnames"`
	Models       []string    `json:"models,omitempty"`
	APIVersion   APIVersion  `json:"api_version,omitempty"`
	ModelDetails []ModelInfo `json:"model_details,omitempty"`
}

// DebugInfo explains a run that found nothing.
type DebugInfo struct {
	TotalUniqueIPs int      `json:"total_unique_ips"`
	Queries        []string `json:"queries"`
}

// Envelope is the diagnostic artifact emitted instead of a server list when
// zero servers matched. "No results" is a normal outcome, not an error.
type Envelope struct {
	Error     string    `json:"error"`
	DebugInfo DebugInfo `json:"debug_info"`
}

// Report is the final run artifact. Servers are sorted by address, then
// port. Exactly one of Servers and Envelope is meaningful: Envelope is
// non-nil only when Servers is empty.
type Report struct {
	Servers  []EnrichedServer
	Envelope *Envelope
}

// Empty reports whether the run confirmed no servers.
func (r *Report) Empty() bool {
	return len(r.Servers) == 0
}

// MarshalJSON serializes the report boundary format: a JSON array of servers,
// or the diagnostic envelope object when the run found nothing.
func (r *Report) MarshalJSON() ([]byte, error) {
	if r.Empty() && r.Envelope != nil {
		return json.Marshal(r.Envelope)
	}
	return json.Marshal(r.Servers)
}
