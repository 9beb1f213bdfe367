// Package agent contains the perceive-decide-act agent, its task
// representations, the agent manager and the step scheduler.
//
// The package focuses on four concerns:
//
//  1. Agent state machine (Created, Running, Paused, AwaitingUserInput, Complete)
//  2. Tasks: free text (TextTask) or a structured PlanOfAction
//  3. Registry and dispatch (Manager)
//  4. Step re-submission with at most one step in flight per agent (Scheduler)
//
// Execution model:
//   - One call to Agent.Step runs exactly one loop iteration
//   - Step reports Continue when another iteration should be scheduled
//   - The Scheduler re-submits Continue outcomes; nothing recurses
//   - Failures are returned as typed errors, logged and counted, and never
//     affect other agents
//
// The decision backend is injected through model.DecisionModel; channels and
// services reach the agent through the manager's Environment.
package agent
