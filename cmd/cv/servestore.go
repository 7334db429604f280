package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/soulfra/chainvault/internal/blobstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveStorePort int

var serveStoreCmd = &cobra.Command{
	Use:   "serve-store",
	Short: "Run an in-memory container store server (development only)",
	Long: `serve-store runs a throwaway implementation of the remote container
API, so a vaultd configured with store.backend=http has something to talk
to during development:

  cv serve-store --port 9090

Containers live in memory and are lost when the process exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, _ := zap.NewDevelopment()
		defer logger.Sync() //nolint:errcheck

		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())
		blobstore.NewContainerServer(blobstore.NewMemory(), logger).Register(router)

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", serveStorePort),
			Handler: router,
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-quit
			srv.Close()
		}()

		logger.Info("container store listening", zap.Int("port", serveStorePort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveStoreCmd.Flags().IntVar(&serveStorePort, "port", 9090, "port to listen on")
}
