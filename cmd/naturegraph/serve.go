package naturegraph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundprediction/naturegraph/pkg/server"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server.

The server provides endpoints for:
- Ingesting extraction units
- Hybrid search and cited answers
- Node lookup, neighbourhoods and graph statistics
- Glossary term detection
- Health and readiness checks

Search works without model credentials; answers then return 501.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().Int("port", 8080, "server port")
	serveCmd.Flags().String("mode", "release", "server mode (debug, release, test)")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.mode", serveCmd.Flags().Lookup("mode"))
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), modelsOptional)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.client.EnsureIndices(cmd.Context()); err != nil {
		a.logger.Warn("Failed to ensure indices", "error", err)
	}

	srv := server.New(a.cfg, a.client, a.logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		a.logger.Info("Received signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		a.logger.Info("Server stopped gracefully")
		return nil
	}
}
