package chain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPayload is returned by Append when the payload is nil, empty,
// JSON null, or not valid JSON. A ledger entry with no content is always a
// caller bug.
var ErrInvalidPayload = errors.New("invalid payload: empty or nil data")

var jsonNull = []byte("null")

// Append extends existing with a new transaction carrying payload.
//
// The payload is canonicalized (compacted and escaped by encoding/json)
// before hashing. Canonical form is a fixpoint under re-marshal, so the
// bytes the digest covers are exactly the bytes every future serialization
// of the chain will carry. A payload hashed as supplied could drift from
// its stored form and break its own signature.
//
// The new transaction is linked to the tail of existing (or to
// NoPreviousHash when existing is empty) before its Signature is computed;
// the digest covers PreviousHash, so linkage must be fixed first.
//
// The returned slice is freshly allocated. Callers holding the old chain
// never observe the append, so concurrent readers of the input are safe.
func Append(existing []Transaction, payload []byte) ([]Transaction, *Transaction, error) {
	if len(payload) == 0 {
		return nil, nil, ErrInvalidPayload
	}
	canonical, err := json.Marshal(json.RawMessage(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if bytes.Equal(canonical, jsonNull) {
		return nil, nil, ErrInvalidPayload
	}

	now := time.Now().UTC()
	tx := Transaction{
		ID:           newTransactionID(now),
		Timestamp:    now.UnixMilli(),
		Data:         canonical,
		PreviousHash: NoPreviousHash,
	}
	if len(existing) > 0 {
		tx.PreviousHash = existing[len(existing)-1].Signature
	}
	tx.Signature = Digest(&tx)

	updated := make([]Transaction, len(existing), len(existing)+1)
	copy(updated, existing)
	updated = append(updated, tx)
	return updated, &updated[len(updated)-1], nil
}
