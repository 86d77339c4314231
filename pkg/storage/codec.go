package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// encodeRecord marshals v to JSON and prepends its 8-byte discriminant, the
// on-disk shape every persisted account buffer takes.
func encodeRecord(discriminant [8]byte, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("storage: marshal record: %w", err)
	}
	buf := make([]byte, 0, 8+len(body))
	buf = append(buf, discriminant[:]...)
	buf = append(buf, body...)
	return buf, nil
}

// decodeRecord checks data's leading discriminant against want and
// unmarshals the remainder into v.
func decodeRecord(data []byte, want [8]byte, v any) error {
	if len(data) < 8 {
		return fmt.Errorf("storage: record too short to carry a discriminant")
	}
	if !bytes.Equal(data[:8], want[:]) {
		return fmt.Errorf("storage: discriminant mismatch, got %x want %x", data[:8], want[:])
	}
	if err := json.Unmarshal(data[8:], v); err != nil {
		return fmt.Errorf("storage: unmarshal record: %w", err)
	}
	return nil
}
