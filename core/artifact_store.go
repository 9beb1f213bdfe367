package core

// ArtifactStore defines the interface for one-way artifact exports (plans of
// action rendered as JSON or Markdown). Artifacts are scoped by an owner id,
// usually the agent name. Implementations should be thread-safe.
type ArtifactStore interface {
	Save(ownerID, artifactID string, data []byte) error
	Get(ownerID, artifactID string) ([]byte, error)
	List(ownerID string) ([]string, error)
	Delete(ownerID, artifactID string) error
}
