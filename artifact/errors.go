package artifact

import (
	"fmt"

	"github.com/hupe1980/assistant/core"
)

// ErrNotFound is returned when an artifact for the given owner / id pair
// does not exist in the underlying store. It wraps core.ErrNotFound.
var ErrNotFound = fmt.Errorf("artifact %w", core.ErrNotFound)
