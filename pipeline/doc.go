// Package pipeline routes an inbound user turn that is not addressed to a
// running agent.
//
// Two modes are available. ModeDirect asks the planner for a list of agent
// tasks and dispatches one agent per task. ModeClassify first classifies the
// turn: conversational turns are answered directly on the channel while
// action turns are turned into a plan of action bound to exactly one agent.
// In both modes the channel receives either a reply or evidence that agents
// were started.
package pipeline
