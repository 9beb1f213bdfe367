// Package core provides the foundational domain types and interfaces shared by
// every layer of the assistant:
//
//   - Messages (immutable conversational records with role, agent tag and type)
//   - The error taxonomy surfaced by agents, managers and the pipeline
//   - Pluggable stores for conversation history, agent context and artifacts
//
// The package keeps implementation concerns (channels, agents, model backends)
// out of scope and exposes small interfaces so custom backends can be swapped
// in without touching orchestration code.
package core
