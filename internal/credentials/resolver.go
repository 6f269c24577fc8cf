package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/actionerr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	SchemeBearer = "Bearer"
	SchemeBasic  = "Basic"
	SchemeSSWS   = "SSWS" // Okta static API tokens

	clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	clientAssertionTTL  = 5 * time.Minute
)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	HTTPClient *http.Client
	// StaticTokenScheme is the scheme applied to BearerToken credentials only.
	StaticTokenScheme string
	Logger            *zap.Logger
	Clock             func() time.Time
}

// Resolver turns a credential into a ready-to-use Authorization header value.
// It keeps no tokens between calls.
type Resolver struct {
	httpClient        *http.Client
	staticTokenScheme string
	logger            *zap.Logger
	clock             func() time.Time
}

// NewResolver constructs a Resolver with defaults applied.
func NewResolver(cfg ResolverConfig) *Resolver {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	scheme := strings.TrimSpace(cfg.StaticTokenScheme)
	if scheme == "" {
		scheme = SchemeBearer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Resolver{
		httpClient:        httpClient,
		staticTokenScheme: scheme,
		logger:            logger,
		clock:             clock,
	}
}

// Resolve selects the credential present in secrets/env and returns its header value.
func (r *Resolver) Resolve(ctx context.Context, secrets, env map[string]string) (string, error) {
	credential, ignored, err := FromContext(secrets, env)
	if err != nil {
		return "", err
	}
	if len(ignored) > 0 {
		r.logger.Warn("multiple credential kinds configured; using the first",
			zap.String("selected", string(credential.Kind())),
			zap.Any("ignored", ignored),
		)
	}
	return r.Header(ctx, credential)
}

// Header builds the Authorization header value for a single credential.
func (r *Resolver) Header(ctx context.Context, credential Credential) (string, error) {
	switch c := credential.(type) {
	case BearerToken:
		return withScheme(c.Token, r.staticTokenScheme), nil
	case BasicAuth:
		encoded := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
		return SchemeBasic + " " + encoded, nil
	case OAuth2AccessToken:
		return withScheme(c.Token, SchemeBearer), nil
	case ClientCredentials:
		accessToken, err := r.fetchClientCredentialsToken(ctx, c)
		if err != nil {
			return "", err
		}
		return SchemeBearer + " " + accessToken, nil
	default:
		return "", actionerr.New(actionerr.ErrAuthConfiguration, fmt.Sprintf("unsupported credential kind %T", credential))
	}
}

func (r *Resolver) fetchClientCredentialsToken(ctx context.Context, c ClientCredentials) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}

	params := url.Values{}
	if c.Audience != "" {
		params.Set("audience", c.Audience)
	}
	cfg := clientcredentials.Config{
		ClientID:       c.ClientID,
		ClientSecret:   c.ClientSecret,
		TokenURL:       c.TokenURL,
		Scopes:         strings.Fields(c.Scope),
		EndpointParams: params,
		AuthStyle:      oauth2.AuthStyleInHeader,
	}
	switch c.AuthStyle {
	case AuthStyleInParams:
		cfg.AuthStyle = oauth2.AuthStyleInParams
	case AuthStyleClientSecretJWT:
		assertion, err := r.signClientAssertion(c)
		if err != nil {
			return "", actionerr.New(actionerr.ErrTokenAcquisition, "Failed to sign client assertion").WithCause(err)
		}
		params.Set("client_assertion_type", clientAssertionType)
		params.Set("client_assertion", assertion)
		cfg.ClientSecret = ""
		cfg.AuthStyle = oauth2.AuthStyleInParams
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	token, err := cfg.Token(tokenCtx)
	if err != nil {
		return "", tokenAcquisitionError(err)
	}
	if token.AccessToken == "" {
		return "", actionerr.New(actionerr.ErrTokenAcquisition, "No access_token in OAuth2 response")
	}

	r.logger.Debug("client credentials token acquired",
		zap.String("token_type", token.Type()),
		zap.Time("expiry", token.Expiry),
	)
	return token.AccessToken, nil
}

func (r *Resolver) signClientAssertion(c ClientCredentials) (string, error) {
	now := r.clock().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    c.ClientID,
		Subject:   c.ClientID,
		Audience:  []string{c.TokenURL},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(clientAssertionTTL)),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.ClientSecret))
}

func tokenAcquisitionError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		statusCode := retrieveErr.Response.StatusCode
		message := fmt.Sprintf("OAuth2 token request failed: %d %s", statusCode, http.StatusText(statusCode))
		return actionerr.New(actionerr.ErrTokenAcquisition, message).
			WithStatus(statusCode, jsonBody(retrieveErr.Body)).
			WithCause(err)
	}
	return actionerr.New(actionerr.ErrTokenAcquisition, "OAuth2 token request failed: "+err.Error()).WithCause(err)
}

func jsonBody(payload []byte) json.RawMessage {
	if len(payload) == 0 || !json.Valid(payload) {
		return nil
	}
	return json.RawMessage(append([]byte(nil), payload...))
}

// withScheme prefixes token with scheme unless it already carries it. A leading "Bearer " is
// replaced when another scheme is requested.
func withScheme(token, scheme string) string {
	prefix := scheme + " "
	if strings.HasPrefix(token, prefix) {
		return token
	}
	token = strings.TrimPrefix(token, SchemeBearer+" ")
	if strings.HasPrefix(token, prefix) {
		return token
	}
	return prefix + token
}

// Scheme returns the scheme portion of an Authorization header value, safe to log.
func Scheme(header string) string {
	scheme, _, _ := strings.Cut(header, " ")
	return scheme
}
