package store

import (
	"strings"

	"github.com/google/uuid"

	"github.com/okarlsen/daytally/internal/model"
)

// newID returns a prefixed random identifier, e.g. "te_2f6c…".
func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewEntryID returns a fresh logged-entry identifier.
func NewEntryID() string { return newID("te") }

// importedID derives a stable row id for an imported planned event, so
// replaying a sync window reproduces the same rows.
func importedID(userID, source, externalID string) string {
	return model.PlannedEventID(userID, model.EventSource(source), externalID)
}
