package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/database"
	"github.com/kozaktomas/face-sculptor/internal/logging"
	"github.com/kozaktomas/face-sculptor/internal/metrics"
	"github.com/kozaktomas/face-sculptor/internal/session"
	"github.com/kozaktomas/face-sculptor/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the editing API server",
	Long: `Start the Face Sculptor HTTP API.
Clients open editors, post scanned landmarks, adjust parameters and receive
the deformed mesh over JSON or a server-sent event stream. Saved sessions go
to the store selected by DATABASE_URL (in-memory when unset).`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
}

// resolveServeHostPort lets flags override the environment.
func resolveServeHostPort(cmd *cobra.Command, port int, host string) (int, string) {
	if p := mustGetInt(cmd, "port"); p != 0 {
		port = p
	}
	if h := mustGetString(cmd, "host"); h != "" {
		host = h
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	log := logging.For("serve")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheme := database.Scheme(cfg.Database.URL)
	if scheme == "" {
		scheme = database.SchemeMemory
	}
	fmt.Printf("Opening %s session store...\n", scheme)
	repo, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer repo.Close()

	sessions := session.NewService(repo, catalog, logging.For("sessions"))
	port, host := resolveServeHostPort(cmd, cfg.Web.Port, cfg.Web.Host)
	server := web.NewServer(cfg, port, host, catalog, sessions, metrics.New())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("error during shutdown")
		}
	}()

	fmt.Printf("Starting Face Sculptor API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
