package agent

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewName returns a random agent name of eight upper-case hex characters.
// Uniqueness is enforced by the Manager, not here.
func NewName() string {
	id := uuid.New()
	return strings.ToUpper(hex.EncodeToString(id[:4]))
}
