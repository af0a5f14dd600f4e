// Package probe implements active fingerprinting of discovery candidates.
//
// Two strategies exist, one per targeted service family, and their
// classification rules are deliberately kept separate:
//
// Ollama is a strict single-endpoint check: one GET against /api/tags,
// accepted only when the body is a JSON object in one of the two known
// tag-listing shapes.
//
// LlamaCpp is a heuristic walk over an ordered endpoint list, stopping at
// the first positive signal: an OpenAI-style model list, the llama.cpp
// Server header, a generic JSON object, or an HTML page mentioning
// llama.cpp, in that precedence.
//
// Scheduler fans probes over all candidates on a bounded worker pool. A
// candidate's failure is recorded as its own outcome and never affects
// sibling probes.
package probe
