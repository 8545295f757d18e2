package session

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrInvalidRecord is returned when a persisted token record cannot be
// re-derived into a valid Session. Such a record is discarded by the caller,
// never patched.
var ErrInvalidRecord = errors.New("invalid persisted token record")

// EncodeRecord serializes a session into its persisted token record form.
func EncodeRecord(s *Session) (string, error) {
	if !s.Valid() {
		return "", errors.Wrap(ErrInvalidRecord, "[EncodeRecord] refusing to persist a partial session")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "[EncodeRecord] marshal")
	}
	return string(data), nil
}

// DecodeRecord parses a persisted token record back into a Session. A record
// that fails to parse, or that is missing the refresh token or expiry, yields
// ErrInvalidRecord.
func DecodeRecord(record string) (*Session, error) {
	if record == "" {
		return nil, errors.Wrap(ErrInvalidRecord, "[DecodeRecord] empty record")
	}
	var s Session
	if err := json.Unmarshal([]byte(record), &s); err != nil {
		return nil, errors.Wrapf(ErrInvalidRecord, "[DecodeRecord] malformed record: %v", err)
	}
	if !s.Valid() {
		return nil, errors.Wrap(ErrInvalidRecord, "[DecodeRecord] incomplete record")
	}
	return &s, nil
}
