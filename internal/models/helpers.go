package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ConversationID is a server-assigned conversation identity.
// Backends encode it as either a JSON string or a JSON number; both decode to the
// same textual form. An empty ConversationID means "not yet persisted".
type ConversationID string

// UnmarshalJSON accepts a string, a number, or null.
func (id *ConversationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode conversation id: %w", err)
		}
		*id = ConversationID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unexpected conversation id: %s", string(data))
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("unexpected conversation id: %s", string(data))
	}
	*id = ConversationID(n.String())
	return nil
}

// MarshalJSON encodes an empty id as null.
func (id ConversationID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// String returns the id as text.
func (id ConversationID) String() string {
	return string(id)
}

// IsZero reports whether the id is absent.
func (id ConversationID) IsZero() bool {
	return id == ""
}
