package chain

// Failure reasons reported by Verify.
const (
	ReasonSignatureMismatch = "signature mismatch"
	ReasonBrokenLink        = "broken chain link"
)

// VerificationResult reports the outcome of a chain walk. A corrupted chain
// is a normal, expected answer — Verify never returns an error for it.
type VerificationResult struct {
	Valid       bool   `json:"valid"`
	FailedIndex int    `json:"failedIndex"` // -1 when Valid
	Reason      string `json:"reason,omitempty"`
}

// Verify walks txs front-to-back, recomputing each digest and checking
// linkage. It stops at the first violation: once a link is broken, every
// downstream PreviousHash comparison is meaningless.
//
// An empty chain is vacuously valid. O(n) time, O(1) extra space.
func Verify(txs []Transaction) VerificationResult {
	for i := range txs {
		tx := &txs[i]
		if Digest(tx) != tx.Signature {
			return VerificationResult{Valid: false, FailedIndex: i, Reason: ReasonSignatureMismatch}
		}
		if i > 0 && tx.PreviousHash != txs[i-1].Signature {
			return VerificationResult{Valid: false, FailedIndex: i, Reason: ReasonBrokenLink}
		}
		if i == 0 && tx.PreviousHash != NoPreviousHash {
			return VerificationResult{Valid: false, FailedIndex: 0, Reason: ReasonBrokenLink}
		}
	}
	return VerificationResult{Valid: true, FailedIndex: -1}
}
