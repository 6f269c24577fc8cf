package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "OKTA_CREATE_USER"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultLogLevel          = "info"
	defaultReconcileStrategy = "precheck"
	defaultStaticTokenScheme = "SSWS"
	defaultCallerIssuer      = "okta-create-user"
)

// AppConfig captures runtime configuration for the CLI and the HTTP surface.
type AppConfig struct {
	HTTPAddress        string
	LogLevel           string
	ReconcileStrategy  string
	StaticTokenScheme  string
	AuditDatabasePath  string
	CallerSigningKey   string
	CallerIssuer       string
	CORSAllowedOrigins []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("reconcile.strategy", defaultReconcileStrategy)
	configViper.SetDefault("okta.static_token_scheme", defaultStaticTokenScheme)
	configViper.SetDefault("audit.database_path", "")
	configViper.SetDefault("caller.signing_secret", "")
	configViper.SetDefault("caller.issuer", defaultCallerIssuer)
	configViper.SetDefault("cors.allowed_origins", []string{})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		LogLevel:           configViper.GetString("log.level"),
		ReconcileStrategy:  configViper.GetString("reconcile.strategy"),
		StaticTokenScheme:  configViper.GetString("okta.static_token_scheme"),
		AuditDatabasePath:  strings.TrimSpace(configViper.GetString("audit.database_path")),
		CallerSigningKey:   configViper.GetString("caller.signing_secret"),
		CallerIssuer:       configViper.GetString("caller.issuer"),
		CORSAllowedOrigins: splitList(configViper.GetStringSlice("cors.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// ValidateServe checks the settings only the HTTP surface needs.
func (c AppConfig) ValidateServe() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.CallerSigningKey) == "" {
		return fmt.Errorf("caller.signing_secret is required")
	}
	if strings.TrimSpace(c.CallerIssuer) == "" {
		return fmt.Errorf("caller.issuer is required")
	}
	return nil
}

func (c AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.ReconcileStrategy)) {
	case "precheck", "conflict":
	default:
		return fmt.Errorf("reconcile.strategy must be precheck or conflict, got %q", c.ReconcileStrategy)
	}
	if strings.TrimSpace(c.StaticTokenScheme) == "" {
		return fmt.Errorf("okta.static_token_scheme is required")
	}
	return nil
}

// splitList accepts both repeated values and a single comma-separated env value.
func splitList(values []string) []string {
	items := make([]string, 0, len(values))
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}
