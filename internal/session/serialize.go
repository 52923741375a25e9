package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// envelopeVersion guards the persisted session schema. Bumping it makes
// older payloads decode as corrupt instead of silently misreading fields.
const envelopeVersion = 1

var errCorruptSession = errors.New("corrupt session payload")

type envelope struct {
	Version  int      `json:"version"`
	Identity Identity `json:"identity"`
}

// encodeIdentity serializes an identity for the session store.
func encodeIdentity(id *Identity) (string, error) {
	raw, err := json.Marshal(envelope{Version: envelopeVersion, Identity: *id})
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}
	return string(raw), nil
}

// decodeIdentity parses a stored session payload. Any malformed input —
// bad JSON, a version mismatch, or field values that fail validation —
// is reported as errCorruptSession so restore can discard it.
func decodeIdentity(raw string) (*Identity, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptSession, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: schema version %d", errCorruptSession, env.Version)
	}
	id := env.Identity
	if id.ID == "" || id.HomeTenantID == "" {
		return nil, fmt.Errorf("%w: missing identity fields", errCorruptSession)
	}
	if !id.Role.Valid() {
		return nil, fmt.Errorf("%w: role %q", errCorruptSession, string(id.Role))
	}
	if !id.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", errCorruptSession, string(id.Status))
	}
	return &id, nil
}
