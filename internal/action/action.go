package action

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/actionerr"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/audit"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/credentials"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/logging"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/okta"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const haltedAtLayout = "2006-01-02T15:04:05.000Z07:00"

var errMissingResolver = errors.New("action: auth resolver required")

// AuthResolver produces the Authorization header value for an invocation.
type AuthResolver interface {
	Resolve(ctx context.Context, secrets, env map[string]string) (string, error)
}

// Journal receives invocation outcomes.
type Journal interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Config describes the dependencies of an Action.
type Config struct {
	Resolver   AuthResolver
	Strategy   Strategy
	HTTPClient *http.Client
	Journal    Journal
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Action creates an Okta user or returns the one that already exists.
// It holds no per-invocation state; every call validates and authenticates afresh.
type Action struct {
	resolver   AuthResolver
	strategy   Strategy
	httpClient *http.Client
	journal    Journal
	logger     *zap.Logger
	clock      func() time.Time
}

// New constructs an Action.
func New(cfg Config) (*Action, error) {
	if cfg.Resolver == nil {
		return nil, errMissingResolver
	}
	strategy, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, fmt.Errorf("action: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Action{
		resolver:   cfg.Resolver,
		strategy:   strategy,
		httpClient: httpClient,
		journal:    cfg.Journal,
		logger:     logger,
		clock:      clock,
	}, nil
}

// Invoke runs one create-or-reconcile for params.
func (a *Action) Invoke(ctx context.Context, params Params, invocation Context) (Result, error) {
	invocationID := uuid.NewString()
	logger := logging.WithInvocation(a.logger, invocationID)

	result, outcome, err := a.invoke(ctx, logger, params, invocation)
	a.record(ctx, logger, audit.Entry{
		InvocationID: invocationID,
		Operation:    audit.OperationInvoke,
		Login:        params.Login,
		Outcome:      string(outcome),
		UserID:       result.ID,
	}, err)
	if err != nil {
		return Result{}, err
	}
	logger.Info("user provisioned",
		zap.String("user_id", result.ID),
		zap.String("outcome", string(outcome)),
		zap.Int("group_count", len(result.GroupIDs)),
	)
	return result, nil
}

func (a *Action) invoke(ctx context.Context, logger *zap.Logger, params Params, invocation Context) (Result, Outcome, error) {
	if err := RequireFields(params.Values(), RequiredParams...); err != nil {
		return Result{}, "", err
	}
	baseURL, err := ResolveAddress(params, invocation.Environment)
	if err != nil {
		return Result{}, "", err
	}
	profile, err := BuildProfile(params)
	if err != nil {
		return Result{}, "", err
	}
	groupIDs := ParseGroupIDs(params.GroupIDs)

	authorization, err := a.resolver.Resolve(ctx, invocation.Secrets, invocation.Environment)
	if err != nil {
		return Result{}, "", err
	}
	logger.Debug("authorization resolved", zap.String("scheme", credentials.Scheme(authorization)))

	client, err := okta.NewClient(okta.ClientConfig{
		BaseURL:       baseURL,
		Authorization: authorization,
		HTTPClient:    a.httpClient,
		Logger:        logger,
	})
	if err != nil {
		return Result{}, "", err
	}

	logger.Info("provisioning user", zap.String("login", params.Login), zap.String("strategy", string(a.strategy)))
	user, outcome, err := reconciler{api: client, logger: logger}.run(ctx, a.strategy, params, okta.CreateUserRequest{
		Profile:  profile,
		GroupIDs: groupIDs,
	})
	if err != nil {
		return Result{}, "", err
	}
	return Normalize(user, groupIDs), outcome, nil
}

// HandleError logs the retry classification of err and returns it unchanged.
// Retrying is left to the orchestrator.
func (a *Action) HandleError(ctx context.Context, params Params, err error) error {
	if err == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("login", params.Login),
		zap.Bool("retryable", actionerr.IsRetryable(err)),
		zap.Error(err),
	}
	if statusCode, ok := actionerr.StatusCode(err); ok {
		fields = append(fields, zap.Int("status", statusCode))
	}
	a.logger.Error("user provisioning failed", fields...)
	return err
}

// Halt acknowledges a halt request. Nothing is rolled back and in-flight requests are not interrupted.
func (a *Action) Halt(ctx context.Context, params Params, reason string) HaltResult {
	invocationID := uuid.NewString()
	logger := logging.WithInvocation(a.logger, invocationID)
	logger.Info("halt requested", zap.String("login", params.Login), zap.String("reason", reason))

	a.record(ctx, logger, audit.Entry{
		InvocationID: invocationID,
		Operation:    audit.OperationHalt,
		Login:        params.Login,
		Outcome:      audit.OutcomeHalted,
	}, nil)

	return HaltResult{
		Email:            params.Email,
		Reason:           reason,
		HaltedAt:         a.clock().UTC().Format(haltedAtLayout),
		CleanupCompleted: true,
	}
}

func (a *Action) record(ctx context.Context, logger *zap.Logger, entry audit.Entry, invokeErr error) {
	if a.journal == nil {
		return
	}
	entry.RecordedAt = a.clock().UTC()
	if invokeErr != nil {
		entry.Outcome = audit.OutcomeFailed
		entry.UserID = ""
		entry.Retryable = actionerr.IsRetryable(invokeErr)
		if statusCode, ok := actionerr.StatusCode(invokeErr); ok {
			entry.StatusCode = statusCode
		}
		var actionErr *actionerr.Error
		if errors.As(invokeErr, &actionErr) {
			entry.ErrorKind = actionErr.KindName()
		}
	}
	if err := a.journal.Record(ctx, entry); err != nil {
		logger.Warn("failed to record invocation", zap.Error(err))
	}
}
