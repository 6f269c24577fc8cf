package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/auth"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the action over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	rt, err := newApp()
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.config.ValidateServe(); err != nil {
		return err
	}

	callerValidator, err := auth.NewCallerValidator(auth.CallerValidatorConfig{
		SigningSecret: []byte(rt.config.CallerSigningKey),
		Issuer:        rt.config.CallerIssuer,
	})
	if err != nil {
		return err
	}

	deps := server.Dependencies{
		Action:          rt.action,
		CallerValidator: callerValidator,
		AllowedOrigins:  rt.config.CORSAllowedOrigins,
		Logger:          rt.logger,
	}
	if rt.journal != nil {
		deps.Journal = rt.journal
	}
	handler, err := server.NewHTTPHandler(deps)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              rt.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("server starting", zap.String("address", rt.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
