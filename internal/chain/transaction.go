package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NoPreviousHash is the sentinel PreviousHash of the first transaction in a
// chain. It is a literal marker rather than a zero digest so that serialized
// chains are self-describing.
const NoPreviousHash = "none"

// Transaction is the atomic, immutable unit of a domain's ledger.
//
// Data holds the payload in canonical JSON (compact, escaped — see Append).
// The digest is computed over those exact bytes, so any re-encoding between
// write and verify would change the hash even when the value is logically
// equal.
type Transaction struct {
	ID           string          `json:"id"`
	Timestamp    int64           `json:"timestamp"` // milliseconds since epoch
	Data         json.RawMessage `json:"data"`
	PreviousHash string          `json:"previousHash"`
	Signature    string          `json:"signature"`
}

// Digest computes the hex SHA-256 content address of a transaction.
//
// The input is the canonical serialization timestamp|data|previousHash.
// ID is a lookup key only, and Signature is what is being computed, so
// neither contributes to the digest.
func Digest(tx *Transaction) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s", tx.Timestamp, tx.Data, tx.PreviousHash)
	return hex.EncodeToString(h.Sum(nil))
}

// newTransactionID returns a locally-unique identifier: creation time in
// epoch milliseconds plus a random suffix to disambiguate same-millisecond
// transactions.
func newTransactionID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
