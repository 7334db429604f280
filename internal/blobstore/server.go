package blobstore

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContainerServer serves the remote container API over HTTP, backed by any
// Store. It exists for development and tests: `cv serve-store` runs one so
// a vaultd configured with the HTTP store has something to talk to without
// an external blob service.
type ContainerServer struct {
	store  Store
	logger *zap.Logger
}

// NewContainerServer creates a ContainerServer on top of store.
func NewContainerServer(store Store, logger *zap.Logger) *ContainerServer {
	return &ContainerServer{store: store, logger: logger}
}

// Register mounts the container routes on the given router.
func (s *ContainerServer) Register(r gin.IRouter) {
	c := r.Group("/containers")
	{
		c.POST("", s.create)
		c.GET("/:id", s.read)
		c.PUT("/:id", s.update)
	}
}

func (s *ContainerServer) create(c *gin.Context) {
	content, err := io.ReadAll(io.LimitReader(c.Request.Body, maxContainerBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	id, err := s.store.Create(c.Request.Context(), content)
	if err != nil {
		s.logger.Error("create container", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *ContainerServer) read(c *gin.Context) {
	content, version, err := s.store.Read(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Header("ETag", version)
	c.Data(http.StatusOK, "application/json", content)
}

func (s *ContainerServer) update(c *gin.Context) {
	content, err := io.ReadAll(io.LimitReader(c.Request.Body, maxContainerBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	err = s.store.Update(c.Request.Context(), c.Param("id"), content, c.GetHeader("If-Match"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *ContainerServer) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "container not found"})
	case errors.Is(err, ErrConcurrentModification):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "version mismatch"})
	default:
		s.logger.Error("container store", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
	}
}
