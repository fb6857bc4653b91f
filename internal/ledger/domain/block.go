package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Block is one immutable batch of sealed statements. Index is zero-based and
// gapless; PrevHash is empty only for block zero.
type Block struct {
	ID        int64
	Index     int64
	PrevHash  string
	Hash      string
	CreatedAt time.Time
}

// CorruptionReport identifies the first chain position where stored data
// disagrees with its recomputed hash or linkage. It is a read-side diagnostic
// result, never a runtime fault.
type CorruptionReport struct {
	BlockIndex int64
	Reason     string
}

// Verification failure reasons.
const (
	ReasonIndexGap        = "block index gap"
	ReasonHashMismatch    = "recomputed hash mismatch"
	ReasonLinkageMismatch = "prev hash linkage mismatch"
)

func (r CorruptionReport) String() string {
	return fmt.Sprintf("chain corrupted at block %d: %s", r.BlockIndex, r.Reason)
}

// blockEnvelope is the canonical hash input. Field order is alphabetical and
// must never change: every persisted hash depends on it.
type blockEnvelope struct {
	CreatedAt  string              `json:"created_at"`
	Index      int64               `json:"index"`
	PrevHash   string              `json:"prev_hash"`
	Statements []statementEnvelope `json:"statements"`
}

type statementEnvelope struct {
	CreatedAt string          `json:"created_at"`
	ID        int64           `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	UserID    *int64          `json:"user_id"`
}

// hashTimeLayout renders UTC timestamps with fixed millisecond precision,
// matching the precision statements and blocks are persisted with.
const hashTimeLayout = "2006-01-02T15:04:05.000Z"

// BlockHash computes the lowercase hex SHA-256 digest binding a block's chain
// position and sealing time to the full content of its statements, in
// ascending-id order. It is a pure function of its inputs: recomputing from
// stored data must reproduce the stored hash bit-for-bit.
func BlockHash(index int64, prevHash string, createdAt time.Time, statements []Statement) (string, error) {
	envelope := blockEnvelope{
		CreatedAt:  createdAt.UTC().Format(hashTimeLayout),
		Index:      index,
		PrevHash:   prevHash,
		Statements: make([]statementEnvelope, 0, len(statements)),
	}
	for _, st := range statements {
		payload := st.Payload
		if len(payload) == 0 {
			payload = Payload("{}")
		}
		envelope.Statements = append(envelope.Statements, statementEnvelope{
			CreatedAt: st.CreatedAt.UTC().Format(hashTimeLayout),
			ID:        st.ID,
			Kind:      st.Kind,
			Payload:   json.RawMessage(payload),
			UserID:    st.UserID,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(envelope); err != nil {
		return "", fmt.Errorf("encode block envelope: %w", err)
	}
	digest := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(digest[:]), nil
}
