package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamilpajak/radiolens/internal/auth"
	"github.com/kamilpajak/radiolens/internal/config"
	"github.com/kamilpajak/radiolens/internal/dashboard"
	"github.com/kamilpajak/radiolens/internal/llm"
	"github.com/kamilpajak/radiolens/internal/logger"
	"github.com/kamilpajak/radiolens/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "", "Interface to listen on (overrides config)")
	cmd.Flags().StringVarP(&opts.port, "port", "p", "", "Port to listen on (overrides config)")
	return cmd
}

// newServer wires the HTTP handler. It fails before anything listens when the
// model client or the auth verifier cannot be built.
func newServer(cfg *config.Config) (*http.Server, *session.Manager, error) {
	client, err := llm.NewClient(clientOptions(cfg))
	if err != nil {
		return nil, nil, err
	}

	var verifier *auth.Verifier
	authCfg := auth.Config{Domain: cfg.Auth.Domain, Audience: cfg.Auth.Audience}
	if authCfg.Enabled() {
		verifier, err = auth.NewVerifier(authCfg)
		if err != nil {
			return nil, nil, err
		}
	}

	sessions := session.NewManager(client, cfg.SessionTTL)
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: dashboard.NewHandler(dashboard.Options{
			Sessions:       sessions,
			MaxUploadBytes: cfg.MaxUploadBytes,
			Verifier:       verifier,
			CORSOrigin:     cfg.CORSOrigin,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, sessions, nil
}

func serve(ctx context.Context, opts *options, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.host != "" {
		cfg.Host = opts.host
	}
	if opts.port != "" {
		cfg.Port = opts.port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	srv, sessions, err := newServer(cfg)
	if err != nil {
		return err
	}

	go sessions.Run(ctx)

	go func() {
		<-ctx.Done()
		fmt.Fprintln(stderr, "\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Shutdown error")
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":       cfg.Addr(),
		"model":      cfg.Model,
		"validation": cfg.Validation,
		"auth":       cfg.Auth.Domain != "",
	}).Info("Starting server")
	fmt.Fprintf(stderr, "Dashboard: http://%s\n", cfg.Addr())

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
