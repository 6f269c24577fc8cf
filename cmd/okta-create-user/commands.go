package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/action"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/actionerr"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/audit"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/auth"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/config"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/credentials"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app bundles what every command needs once configuration has been loaded.
type app struct {
	config  config.AppConfig
	logger  *zap.Logger
	action  *action.Action
	journal *audit.Journal
}

func newApp() (*app, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	rt := &app{config: appConfig, logger: logger}
	actionConfig := action.Config{
		Resolver: credentials.NewResolver(credentials.ResolverConfig{
			StaticTokenScheme: appConfig.StaticTokenScheme,
			Logger:            logger,
		}),
		Strategy: action.Strategy(appConfig.ReconcileStrategy),
		Logger:   logger,
	}

	if appConfig.AuditDatabasePath != "" {
		db, err := audit.OpenSQLite(appConfig.AuditDatabasePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open audit journal: %w", err)
		}
		journal, err := audit.NewJournal(db)
		if err != nil {
			return nil, err
		}
		rt.journal = journal
		actionConfig.Journal = journal
	}

	rt.action, err = action.New(actionConfig)
	if err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func (rt *app) close() {
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			rt.logger.Warn("failed to close audit journal", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

func newInvokeCommand() *cobra.Command {
	var paramsPath string
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Create the user described by --params, reconciling an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := readParams(cmd.InOrStdin(), paramsPath)
			if err != nil {
				return err
			}
			rt, err := newApp()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			result, err := rt.action.Invoke(ctx, params, processContext(os.Environ()))
			if err != nil {
				err = rt.action.HandleError(ctx, params, err)
				if writeErr := writeJSON(cmd.ErrOrStderr(), describeError(err)); writeErr != nil {
					return writeErr
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&paramsPath, "params", "-", "Path to the params JSON document, or - for stdin")
	return cmd
}

func newHaltCommand() *cobra.Command {
	var (
		paramsPath string
		reason     string
	)
	cmd := &cobra.Command{
		Use:   "halt",
		Short: "Acknowledge that the workflow was halted",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := readParams(cmd.InOrStdin(), paramsPath)
			if err != nil {
				return err
			}
			rt, err := newApp()
			if err != nil {
				return err
			}
			defer rt.close()

			return writeJSON(cmd.OutOrStdout(), rt.action.Halt(cmd.Context(), params, reason))
		},
	}
	cmd.Flags().StringVar(&paramsPath, "params", "-", "Path to the params JSON document, or - for stdin")
	cmd.Flags().StringVar(&reason, "reason", "", "Halt reason reported by the orchestrator")
	return cmd
}

func newCallerTokenCommand() *cobra.Command {
	var (
		subject    string
		ttlMinutes int
	)
	cmd := &cobra.Command{
		Use:   "caller-token",
		Short: "Mint a bearer token for calling the HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			issuer, err := auth.NewCallerIssuer(auth.CallerIssuerConfig{
				SigningSecret: []byte(appConfig.CallerSigningKey),
				Issuer:        appConfig.CallerIssuer,
				TokenTTL:      time.Duration(ttlMinutes) * time.Minute,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.Issue(subject)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"access_token": token,
				"token_type":   "Bearer",
				"expires_at":   expiresAt.Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Caller identity placed in the sub claim")
	cmd.Flags().IntVar(&ttlMinutes, "ttl-minutes", 60, "Token lifetime in minutes")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func readParams(stdin io.Reader, path string) (action.Params, error) {
	var (
		payload []byte
		err     error
	)
	if path == "" || path == "-" {
		payload, err = io.ReadAll(stdin)
	} else {
		payload, err = os.ReadFile(path)
	}
	if err != nil {
		return action.Params{}, fmt.Errorf("read params: %w", err)
	}

	var params action.Params
	decoder := json.NewDecoder(bytes.NewReader(payload))
	if err := decoder.Decode(&params); err != nil {
		return action.Params{}, fmt.Errorf("decode params: %w", err)
	}
	return params, nil
}

// processContext exposes the process environment as both secrets and environment.
func processContext(environ []string) action.Context {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		values[key] = value
	}
	secrets := make(map[string]string, len(values))
	for key, value := range values {
		secrets[key] = value
	}
	return action.Context{Secrets: secrets, Environment: values}
}

type errorReport struct {
	Kind       string          `json:"kind"`
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Retryable  bool            `json:"retryable"`
}

func describeError(err error) map[string]errorReport {
	report := errorReport{Kind: "Error", Message: err.Error(), Retryable: actionerr.IsRetryable(err)}
	var actionErr *actionerr.Error
	if errors.As(err, &actionErr) {
		report.Kind = actionErr.KindName()
		report.StatusCode = actionErr.StatusCode
		report.Body = actionErr.Body
	}
	return map[string]errorReport{"error": report}
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
