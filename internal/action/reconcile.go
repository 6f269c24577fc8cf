package action

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/actionerr"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/okta"
	"go.uber.org/zap"
)

// Strategy selects how an already existing user is detected.
type Strategy string

const (
	// StrategyPrecheck looks the login up before creating and rejects email mismatches.
	StrategyPrecheck Strategy = "precheck"
	// StrategyConflict creates first and looks the login up when Okta reports a duplicate.
	StrategyConflict Strategy = "conflict"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case StrategyPrecheck, "":
		return StrategyPrecheck, nil
	case StrategyConflict:
		return StrategyConflict, nil
	default:
		return "", fmt.Errorf("unknown reconcile strategy %q", value)
	}
}

// Outcome records whether a user was created or an existing one returned.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeReconciled Outcome = "reconciled"
)

// UserAPI is the subset of the Okta client the reconciler drives.
type UserAPI interface {
	GetUser(ctx context.Context, login string) (okta.User, error)
	CreateUser(ctx context.Context, request okta.CreateUserRequest) (okta.User, error)
}

type reconciler struct {
	api    UserAPI
	logger *zap.Logger
}

func (r reconciler) run(ctx context.Context, strategy Strategy, params Params, request okta.CreateUserRequest) (okta.User, Outcome, error) {
	switch strategy {
	case StrategyConflict:
		return r.createThenReconcile(ctx, params, request)
	default:
		return r.precheckThenCreate(ctx, params, request)
	}
}

func (r reconciler) precheckThenCreate(ctx context.Context, params Params, request okta.CreateUserRequest) (okta.User, Outcome, error) {
	existing, err := r.api.GetUser(ctx, params.Login)
	if err == nil {
		if !sameEmail(existing.ProfileString("email"), params.Email) {
			return okta.User{}, "", actionerr.New(actionerr.ErrIdentityConflict,
				fmt.Sprintf("User with login %s already exists with a different email", params.Login)).
				WithStatus(http.StatusConflict, nil)
		}
		r.logger.Info("user already exists with matching email", zap.String("user_id", existing.ID))
		return existing, OutcomeReconciled, nil
	}

	var apiErr *okta.APIError
	if !errors.As(err, &apiErr) || !apiErr.IsNotFound() {
		return okta.User{}, "", providerError(actionerr.ErrExistenceCheck, "Failed to check for existing user", err)
	}

	created, err := r.api.CreateUser(ctx, request)
	if err != nil {
		return okta.User{}, "", providerError(actionerr.ErrCreateUser, "Failed to create user", err)
	}
	return created, OutcomeCreated, nil
}

func (r reconciler) createThenReconcile(ctx context.Context, params Params, request okta.CreateUserRequest) (okta.User, Outcome, error) {
	created, createErr := r.api.CreateUser(ctx, request)
	if createErr == nil {
		return created, OutcomeCreated, nil
	}

	var apiErr *okta.APIError
	if !errors.As(createErr, &apiErr) || !apiErr.IsDuplicateLogin() {
		return okta.User{}, "", providerError(actionerr.ErrCreateUser, "Failed to create user", createErr)
	}

	r.logger.Info("login already exists; fetching existing user", zap.Int("status", apiErr.StatusCode))
	existing, lookupErr := r.api.GetUser(ctx, params.Login)
	if lookupErr != nil {
		return okta.User{}, "", actionerr.New(actionerr.ErrUnreconciledDuplicate,
			fmt.Sprintf("User with login %s already exists but could not be retrieved: %v", params.Login, lookupErr)).
			WithStatus(apiErr.StatusCode, apiErr.Body).
			WithCause(errors.Join(createErr, lookupErr))
	}
	return existing, OutcomeReconciled, nil
}

func sameEmail(existing, requested string) bool {
	return strings.ToLower(strings.TrimSpace(existing)) == strings.ToLower(strings.TrimSpace(requested))
}

func providerError(kind error, message string, err error) error {
	var apiErr *okta.APIError
	if errors.As(err, &apiErr) {
		return actionerr.New(kind, message+": "+apiErr.Error()).
			WithStatus(apiErr.StatusCode, apiErr.Body).
			WithCause(err)
	}
	return actionerr.New(kind, message+": "+err.Error()).WithCause(err)
}
