// Package domain defines the core domain types for the modelscout discovery
// pipeline.
//
// # Core Types
//
// Candidate is a discovered (address, port) pair awaiting confirmation.
// CandidateSet deduplicates candidates and is safe for concurrent insertion.
//
// ProbeOutcome is the tagged result of actively probing one candidate:
// NotMatched, Matched (with extracted service metadata), or Unreachable.
//
// EnrichedServer is a confirmed server joined with host-level metadata
// (geography, organization, hostnames) from the search index. Report is the
// final run artifact: either a list of enriched servers or a diagnostic
// envelope for runs that found nothing.
//
// # Design Principles
//
//   - Immutable value objects where possible
//   - No network or database dependencies
//   - Probe and lookup failures are represented as data, never control flow
package domain
