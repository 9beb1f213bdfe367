// Package model defines the provider‑agnostic abstractions for the decision
// making backend that drives agents and the inbound pipeline.
//
// Two layers are exposed:
//   - Model: a minimal generation interface implemented by vendor adapters
//     (openai, anthropic) using a normalized Request / Response shape
//   - DecisionModel and Planner: the collaborator contracts consumed by the
//     orchestration engine. Decider implements both on top of any Model;
//     ScriptedModel is a deterministic stub for tests and demos.
//
// Collaborator methods never return errors: the absence of a usable answer is
// reported through a boolean and is an expected outcome.
package model
