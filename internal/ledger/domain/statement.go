package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Statement is one immutable audit event. Everything except BlockID is fixed
// at creation; BlockID transitions from nil to a block identity exactly once.
type Statement struct {
	ID        int64
	Kind      string
	UserID    *int64
	Payload   Payload
	CreatedAt time.Time
	BlockID   *int64
}

// Sealed reports whether the statement has been assigned to a block.
func (s Statement) Sealed() bool {
	return s.BlockID != nil
}

// Payload is an arbitrary structured event document held in canonical JSON
// form: sorted object keys, compact separators, no HTML escaping. The ledger
// never interprets it; canonical form only makes hashing reproducible.
type Payload []byte

// NewPayload canonicalizes an arbitrary JSON document. A nil or empty input
// becomes the empty object. The document's shape is not validated beyond
// being well-formed JSON; the ledger stores payloads opaquely.
func NewPayload(raw []byte) (Payload, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Payload("{}"), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode payload: trailing data")
	}
	return encodeCanonical(value)
}

// PayloadFromMap canonicalizes an in-process document.
func PayloadFromMap(doc map[string]any) (Payload, error) {
	if doc == nil {
		return Payload("{}"), nil
	}
	return encodeCanonical(doc)
}

// MarshalJSON emits the canonical document verbatim.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("{}"), nil
	}
	return []byte(p), nil
}

// UnmarshalJSON re-canonicalizes incoming JSON.
func (p *Payload) UnmarshalJSON(data []byte) error {
	canonical, err := NewPayload(data)
	if err != nil {
		return err
	}
	*p = canonical
	return nil
}

// String returns the canonical document text.
func (p Payload) String() string {
	if len(p) == 0 {
		return "{}"
	}
	return string(p)
}

// encodeCanonical serializes a decoded JSON value deterministically.
// encoding/json already emits object keys in sorted order and json.Number
// values verbatim; disabling HTML escaping keeps the text byte-stable across
// encode/store/re-encode round trips.
func encodeCanonical(value any) (Payload, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return Payload(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
