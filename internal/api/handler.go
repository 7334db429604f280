// Package api exposes the ledger over HTTP: appends, chain reads,
// verification, broadcast replication, and domain listing.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soulfra/chainvault/internal/blobstore"
	"github.com/soulfra/chainvault/internal/chain"
	"github.com/soulfra/chainvault/internal/domains"
	"github.com/soulfra/chainvault/internal/syncer"
	"go.uber.org/zap"
)

// LedgerHandler exposes HTTP endpoints for domain ledgers.
type LedgerHandler struct {
	orch     *syncer.Orchestrator
	registry domains.Registry
	logger   *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(orch *syncer.Orchestrator, registry domains.Registry, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{orch: orch, registry: registry, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	d := rg.Group("/domains")
	{
		d.GET("", h.ListDomains)
		d.POST("/:domain/transactions", h.Append)
		d.GET("/:domain/chain", h.GetChain)
		d.GET("/:domain/verify", h.Verify)
		d.POST("/:domain/broadcast", h.Broadcast)
	}
}

type appendRequest struct {
	Data json.RawMessage `json:"data"`
}

// Append handles POST /domains/:domain/transactions — appends a payload and
// syncs the full chain to the domain's remote container.
func (h *LedgerHandler) Append(c *gin.Context) {
	domain := c.Param("domain")

	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be JSON with a data field"})
		return
	}

	res, err := h.orch.AppendAndSync(c.Request.Context(), domain, req.Data)
	if err != nil {
		h.renderAppendError(c, domain, err)
		return
	}

	ledgerAppendsTotal.Inc()
	status := http.StatusOK
	if res.IsNew {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// renderAppendError maps the error taxonomy onto HTTP statuses.
func (h *LedgerHandler) renderAppendError(c *gin.Context, domain string, err error) {
	switch {
	case errors.Is(err, chain.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "data must be non-empty JSON"})
	case errors.Is(err, syncer.ErrChainCorrupted):
		ledgerVerifyFailuresTotal.Inc()
		h.logger.Error("append refused: remote chain corrupted",
			zap.String("domain", domain), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, blobstore.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{
			"error": "concurrent write detected, retry the append",
		})
	case errors.Is(err, domains.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, blobstore.ErrUnavailable):
		h.logger.Warn("blob store unavailable", zap.String("domain", domain), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote store unavailable, retry later"})
	default:
		h.logger.Error("append failed", zap.String("domain", domain), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "append failed"})
	}
}

// GetChain handles GET /domains/:domain/chain — returns the full remote
// chain as a JSON array.
func (h *LedgerHandler) GetChain(c *gin.Context) {
	domain := c.Param("domain")

	txs, err := h.orch.FetchChain(c.Request.Context(), domain)
	if err != nil {
		if errors.Is(err, domains.ErrNotFound) || errors.Is(err, blobstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		h.logger.Error("fetch chain", zap.String("domain", domain), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch chain"})
		return
	}
	if txs == nil {
		txs = []chain.Transaction{}
	}
	c.JSON(http.StatusOK, txs)
}

// Verify handles GET /domains/:domain/verify — walks the remote chain and
// reports integrity. Corruption is a 200 with valid=false, never an error
// status.
func (h *LedgerHandler) Verify(c *gin.Context) {
	domain := c.Param("domain")

	res, n, err := h.orch.VerifyDomain(c.Request.Context(), domain)
	if err != nil {
		if errors.Is(err, domains.ErrNotFound) || errors.Is(err, blobstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		h.logger.Error("verify domain", zap.String("domain", domain), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch chain"})
		return
	}

	if !res.Valid {
		ledgerVerifyFailuresTotal.Inc()
		h.logger.Warn("chain integrity check failed",
			zap.String("domain", domain),
			zap.Int("failed_index", res.FailedIndex),
			zap.String("reason", res.Reason),
		)
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":       res.Valid,
		"failedIndex": res.FailedIndex,
		"reason":      res.Reason,
		"entries":     n,
	})
}

type broadcastRequest struct {
	Targets []string `json:"targets"`
}

// Broadcast handles POST /domains/:domain/broadcast — replicates the
// domain's chain into every target domain.
func (h *LedgerHandler) Broadcast(c *gin.Context) {
	source := c.Param("domain")

	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Targets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must list at least one target domain"})
		return
	}

	results, err := h.orch.BroadcastToDomains(c.Request.Context(), source, req.Targets)
	if err != nil {
		if errors.Is(err, domains.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "source domain not found"})
			return
		}
		h.logger.Error("broadcast", zap.String("source", source), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch source chain"})
		return
	}

	for _, r := range results {
		if r.Error == "" {
			ledgerBroadcastsTotal.WithLabelValues("ok").Inc()
		} else {
			ledgerBroadcastsTotal.WithLabelValues("error").Inc()
		}
	}
	c.JSON(http.StatusOK, gin.H{"source": source, "results": results})
}

// ListDomains handles GET /domains — returns every registered
// domain → container mapping.
func (h *LedgerHandler) ListDomains(c *gin.Context) {
	all, err := h.registry.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list domains", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list domains"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"domains": all})
}
