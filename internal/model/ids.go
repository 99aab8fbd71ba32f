package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// PlannedEventID derives a stable planned-event identifier from the event's
// identity key. Live fetches and persisted imports produce the same id for
// the same event, so entry links survive re-fetches and sync replays.
func PlannedEventID(userID string, source EventSource, externalID string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + string(source) + "\x00" + externalID))
	return "pe_" + hex.EncodeToString(sum[:10])
}
