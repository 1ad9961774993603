package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/samsaffron/webchat/internal/config"
	"github.com/samsaffron/webchat/internal/serve/proxy"
)

var serveAddrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API relay so clients can chat without their own key",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "listen address (default from config, then :8787)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	addr := serveAddrFlag
	if addr == "" {
		addr = cfg.Serve.Addr
	}

	// The relay still starts without a key so the route shape can be
	// exercised; requests then fail with a clear error body.
	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "warning: no API key configured, requests will be rejected")
	}

	relay := proxy.New(cfg.APIKey)
	srv := &http.Server{
		Addr:    addr,
		Handler: relay.Handler(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "relay listening on %s (route %s)\n", addr, relay.Route)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
