// Package chain implements the hash-linked transaction log at the heart of
// chainvault.
//
// Every transaction carries the SHA-256 digest of its own canonical content
// in Signature, and the Signature of its predecessor in PreviousHash (the
// first transaction uses the well-known sentinel NoPreviousHash). Mutating
// any linked transaction without recomputing every downstream digest breaks
// the chain, which is exactly what Verify detects.
//
// The package is pure: no I/O, no logging, no shared state. All functions
// are safe for concurrent use.
package chain
