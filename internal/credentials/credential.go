package credentials

import (
	"strings"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/actionerr"
)

// Secret and environment keys supplied by the orchestrator.
const (
	SecretBearerToken             = "BEARER_AUTH_TOKEN"
	SecretBasicUsername           = "BASIC_USERNAME"
	SecretBasicPassword           = "BASIC_PASSWORD"
	SecretOAuth2AccessToken       = "OAUTH2_AUTHORIZATION_CODE_ACCESS_TOKEN"
	SecretClientCredentialsSecret = "OAUTH2_CLIENT_CREDENTIALS_CLIENT_SECRET"
	EnvClientCredentialsTokenURL  = "OAUTH2_CLIENT_CREDENTIALS_TOKEN_URL"
	EnvClientCredentialsClientID  = "OAUTH2_CLIENT_CREDENTIALS_CLIENT_ID"
	EnvClientCredentialsScope     = "OAUTH2_CLIENT_CREDENTIALS_SCOPE"
	EnvClientCredentialsAudience  = "OAUTH2_CLIENT_CREDENTIALS_AUDIENCE"
	EnvClientCredentialsAuthStyle = "OAUTH2_CLIENT_CREDENTIALS_AUTH_STYLE"
)

// Kind names a credential strategy.
type Kind string

const (
	KindBearerToken       Kind = "bearer_token"
	KindBasicAuth         Kind = "basic_auth"
	KindOAuth2AccessToken Kind = "oauth2_access_token"
	KindClientCredentials Kind = "oauth2_client_credentials"
)

// AuthStyle selects how client credentials reach the token endpoint.
type AuthStyle string

const (
	AuthStyleInHeader        AuthStyle = "InHeader"
	AuthStyleInParams        AuthStyle = "InParams"
	AuthStyleClientSecretJWT AuthStyle = "ClientSecretJWT"
)

// Credential is one of BearerToken, BasicAuth, OAuth2AccessToken or ClientCredentials.
type Credential interface {
	Kind() Kind
}

// BearerToken is a static API token.
type BearerToken struct {
	Token string
}

func (BearerToken) Kind() Kind { return KindBearerToken }

// BasicAuth is a username and password pair.
type BasicAuth struct {
	Username string
	Password string
}

func (BasicAuth) Kind() Kind { return KindBasicAuth }

// OAuth2AccessToken is an access token issued ahead of the invocation.
type OAuth2AccessToken struct {
	Token string
}

func (OAuth2AccessToken) Kind() Kind { return KindOAuth2AccessToken }

// ClientCredentials carries what the OAuth2 client credentials grant needs.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	Audience     string
	AuthStyle    AuthStyle
}

func (ClientCredentials) Kind() Kind { return KindClientCredentials }

// FromContext selects the credential from the orchestrator secrets and environment.
// The first present kind wins; the remaining present kinds are returned as ignored.
func FromContext(secrets, env map[string]string) (Credential, []Kind, error) {
	candidates := make([]Credential, 0, 4)

	if token := lookup(secrets, SecretBearerToken); token != "" {
		candidates = append(candidates, BearerToken{Token: token})
	}
	username := lookup(secrets, SecretBasicUsername)
	password := lookup(secrets, SecretBasicPassword)
	if username != "" && password != "" {
		candidates = append(candidates, BasicAuth{Username: username, Password: password})
	}
	if token := lookup(secrets, SecretOAuth2AccessToken); token != "" {
		candidates = append(candidates, OAuth2AccessToken{Token: token})
	}
	if clientSecret := lookup(secrets, SecretClientCredentialsSecret); clientSecret != "" {
		candidates = append(candidates, ClientCredentials{
			TokenURL:     lookup(env, EnvClientCredentialsTokenURL),
			ClientID:     lookup(env, EnvClientCredentialsClientID),
			ClientSecret: clientSecret,
			Scope:        lookup(env, EnvClientCredentialsScope),
			Audience:     lookup(env, EnvClientCredentialsAudience),
			AuthStyle:    AuthStyle(lookup(env, EnvClientCredentialsAuthStyle)),
		})
	}

	if len(candidates) == 0 {
		return nil, nil, actionerr.New(actionerr.ErrAuthConfiguration,
			"No authentication configured. Provide one of: "+SecretBearerToken+", "+SecretBasicUsername+"/"+SecretBasicPassword+", "+
				SecretOAuth2AccessToken+", "+SecretClientCredentialsSecret)
	}

	selected := candidates[0]
	if clientCredentials, ok := selected.(ClientCredentials); ok {
		if err := clientCredentials.validate(); err != nil {
			return nil, nil, err
		}
	}

	ignored := make([]Kind, 0, len(candidates)-1)
	for _, candidate := range candidates[1:] {
		ignored = append(ignored, candidate.Kind())
	}
	return selected, ignored, nil
}

func (c ClientCredentials) validate() error {
	if c.TokenURL == "" {
		return actionerr.New(actionerr.ErrAuthConfiguration, "OAuth2 Client Credentials flow requires "+EnvClientCredentialsTokenURL)
	}
	if c.ClientID == "" {
		return actionerr.New(actionerr.ErrAuthConfiguration, "OAuth2 Client Credentials flow requires "+EnvClientCredentialsClientID)
	}
	switch c.AuthStyle {
	case "", AuthStyleInHeader, AuthStyleInParams, AuthStyleClientSecretJWT:
		return nil
	default:
		return actionerr.New(actionerr.ErrAuthConfiguration, "Unsupported "+EnvClientCredentialsAuthStyle+": "+string(c.AuthStyle))
	}
}

func lookup(values map[string]string, key string) string {
	if values == nil {
		return ""
	}
	return strings.TrimSpace(values[key])
}
