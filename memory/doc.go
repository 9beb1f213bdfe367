// Package memory provides the agent context store: the private, accumulating
// key/value memory each agent builds from its past action outputs.
//
// Keys keep their first insertion position when overwritten and are never
// removed, so perception text derived from the store is deterministic.
package memory
