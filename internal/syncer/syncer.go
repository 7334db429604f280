// Package syncer orchestrates appends and replication between the local
// domain registry and the remote blob store.
//
// Every append re-serializes and re-transmits the domain's whole chain:
// exactly one remote read (skipped on first write) and one remote write per
// call, O(n) bytes each. That keeps the remote API down to three verbs at
// the cost of O(n²) total bytes over the life of a chain.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soulfra/chainvault/internal/blobstore"
	"github.com/soulfra/chainvault/internal/chain"
	"github.com/soulfra/chainvault/internal/domains"
	"go.uber.org/zap"
)

// ErrChainCorrupted is returned when the pre-flight verification of a
// fetched remote chain fails. Appending on top of corrupted history would
// mask the corruption, so this is fatal for the operation.
var ErrChainCorrupted = errors.New("remote chain failed verification")

// Orchestrator coordinates chain builds, remote container writes, and
// registry bookkeeping for all domains.
type Orchestrator struct {
	registry domains.Registry
	store    blobstore.Store
	logger   *zap.Logger
}

// New creates an Orchestrator with injected registry and store backends.
func New(registry domains.Registry, store blobstore.Store, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{registry: registry, store: store, logger: logger}
}

// AppendResult describes a completed append.
type AppendResult struct {
	Transaction *chain.Transaction `json:"transaction"`
	ChainLen    int                `json:"chainLen"`
	ContainerID string             `json:"containerId"`
	IsNew       bool               `json:"isNew"` // true when this append created the domain's container
}

// BroadcastResult describes the outcome of replicating a chain into one
// target domain.
type BroadcastResult struct {
	ContainerID string `json:"containerId,omitempty"`
	IsNew       bool   `json:"isNew"`
	Error       string `json:"error,omitempty"`
}

// AppendAndSync appends payload to domain's chain and pushes the full
// updated chain to the domain's remote container.
//
// First write for a domain creates the container and registers its id;
// subsequent writes fetch the current chain, verify it (ErrChainCorrupted
// on failure), extend it, and overwrite the container. A concurrent writer
// between the read and the write surfaces as
// blobstore.ErrConcurrentModification; re-invoking AppendAndSync retries
// from a fresh read.
func (o *Orchestrator) AppendAndSync(ctx context.Context, domain string, payload []byte) (*AppendResult, error) {
	containerID, err := o.registry.Get(ctx, domain)
	switch {
	case errors.Is(err, domains.ErrNotFound):
		return o.appendFirst(ctx, domain, payload)
	case err != nil:
		return nil, fmt.Errorf("resolve container for %q: %w", domain, err)
	}

	content, version, err := o.store.Read(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("fetch chain for %q: %w", domain, err)
	}
	existing, err := decodeChain(content)
	if err != nil {
		return nil, fmt.Errorf("decode chain for %q: %w", domain, err)
	}

	// Fail fast if the remote copy was already tampered with, rather than
	// building on top of corruption.
	if res := chain.Verify(existing); !res.Valid {
		return nil, fmt.Errorf("%w: domain %q: %s at index %d",
			ErrChainCorrupted, domain, res.Reason, res.FailedIndex)
	}

	updated, tx, err := chain.Append(existing, payload)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("encode chain for %q: %w", domain, err)
	}
	if err := o.store.Update(ctx, containerID, encoded, version); err != nil {
		return nil, fmt.Errorf("push chain for %q: %w", domain, err)
	}

	o.logger.Info("transaction appended",
		zap.String("domain", domain),
		zap.String("tx_id", tx.ID),
		zap.Int("chain_len", len(updated)),
	)
	return &AppendResult{
		Transaction: tx,
		ChainLen:    len(updated),
		ContainerID: containerID,
		IsNew:       false,
	}, nil
}

// appendFirst handles the bootstrap path: build a one-transaction chain,
// create the remote container, record the mapping.
func (o *Orchestrator) appendFirst(ctx context.Context, domain string, payload []byte) (*AppendResult, error) {
	updated, tx, err := chain.Append(nil, payload)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("encode chain for %q: %w", domain, err)
	}

	containerID, err := o.store.Create(ctx, encoded)
	if err != nil {
		return nil, fmt.Errorf("create container for %q: %w", domain, err)
	}
	if err := o.registry.Set(ctx, domain, containerID); err != nil {
		// A racing first-writer registered another container between our
		// Get and Set. Our container is now orphaned; surface the conflict
		// so the caller can retry against the winner's container.
		o.logger.Warn("container orphaned by registry conflict",
			zap.String("domain", domain),
			zap.String("container_id", containerID),
		)
		return nil, fmt.Errorf("register container for %q: %w", domain, err)
	}

	o.logger.Info("domain bootstrapped",
		zap.String("domain", domain),
		zap.String("container_id", containerID),
		zap.String("tx_id", tx.ID),
	)
	return &AppendResult{
		Transaction: tx,
		ChainLen:    1,
		ContainerID: containerID,
		IsNew:       true,
	}, nil
}

// FetchChain returns domain's current remote chain without mutating
// anything.
func (o *Orchestrator) FetchChain(ctx context.Context, domain string) ([]chain.Transaction, error) {
	containerID, err := o.registry.Get(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("resolve container for %q: %w", domain, err)
	}
	content, _, err := o.store.Read(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("fetch chain for %q: %w", domain, err)
	}
	txs, err := decodeChain(content)
	if err != nil {
		return nil, fmt.Errorf("decode chain for %q: %w", domain, err)
	}
	return txs, nil
}

// VerifyDomain fetches domain's remote chain and verifies it. A corrupted
// chain is reported in the result, not as an error; errors are reserved for
// failures to obtain the chain at all.
func (o *Orchestrator) VerifyDomain(ctx context.Context, domain string) (chain.VerificationResult, int, error) {
	txs, err := o.FetchChain(ctx, domain)
	if err != nil {
		return chain.VerificationResult{}, 0, err
	}
	return chain.Verify(txs), len(txs), nil
}

// BroadcastToDomains replicates source's chain into every target domain,
// creating containers (and registry entries) for targets that have none and
// overwriting the containers of those that do. Per-target failures are
// recorded in the result map; they do not abort the fan-out.
func (o *Orchestrator) BroadcastToDomains(ctx context.Context, source string, targets []string) (map[string]BroadcastResult, error) {
	txs, err := o.FetchChain(ctx, source)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(txs)
	if err != nil {
		return nil, fmt.Errorf("encode chain for %q: %w", source, err)
	}

	results := make(map[string]BroadcastResult, len(targets))
	for _, target := range targets {
		if target == source {
			results[target] = BroadcastResult{Error: "target is the source domain"}
			continue
		}
		results[target] = o.replicate(ctx, target, encoded)
	}
	return results, nil
}

// replicate pushes an already-encoded chain into one target domain.
func (o *Orchestrator) replicate(ctx context.Context, target string, encoded []byte) BroadcastResult {
	containerID, err := o.registry.Get(ctx, target)
	switch {
	case errors.Is(err, domains.ErrNotFound):
		containerID, err = o.store.Create(ctx, encoded)
		if err != nil {
			return BroadcastResult{Error: err.Error()}
		}
		if err := o.registry.Set(ctx, target, containerID); err != nil {
			return BroadcastResult{ContainerID: containerID, Error: err.Error()}
		}
		o.logger.Info("chain replicated to new container",
			zap.String("target", target),
			zap.String("container_id", containerID),
		)
		return BroadcastResult{ContainerID: containerID, IsNew: true}

	case err != nil:
		return BroadcastResult{Error: err.Error()}
	}

	_, version, err := o.store.Read(ctx, containerID)
	if err != nil {
		return BroadcastResult{ContainerID: containerID, Error: err.Error()}
	}
	if err := o.store.Update(ctx, containerID, encoded, version); err != nil {
		return BroadcastResult{ContainerID: containerID, Error: err.Error()}
	}
	o.logger.Info("chain replicated",
		zap.String("target", target),
		zap.String("container_id", containerID),
	)
	return BroadcastResult{ContainerID: containerID, IsNew: false}
}

// decodeChain parses a serialized chain. An empty container decodes to an
// empty chain.
func decodeChain(content []byte) ([]chain.Transaction, error) {
	if len(content) == 0 {
		return nil, nil
	}
	var txs []chain.Transaction
	if err := json.Unmarshal(content, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}
