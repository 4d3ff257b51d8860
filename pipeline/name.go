package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateProjectName builds a project name from the current time and the
// sanitized project tag. A short random suffix keeps two batches landing in
// the same second with the same tag from colliding.
func GenerateProjectName(tag string) string {
	stamp := time.Now().Format("060102-150405")
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s-%s-%s", stamp, tag, suffix)
}
