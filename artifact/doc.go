// Package artifact contains core.ArtifactStore implementations used as
// one-way export sinks for plans of action.
//
// InMemoryStore suits tests and ephemeral servers. FileStore writes each
// artifact to <root>/<owner>/<artifact> on disk for audit; the engine never
// reads exports back.
package artifact
