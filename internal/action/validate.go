package action

import (
	"strings"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/actionerr"
)

// RequireFields fails with a MissingParameterError naming every key whose value is absent or empty.
func RequireFields(values map[string]string, keys ...string) error {
	missing := make([]string, 0, len(keys))
	for _, key := range keys {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return actionerr.New(actionerr.ErrMissingParameter, "Missing required parameters: "+strings.Join(missing, ", "))
}

// ResolveAddress returns the Okta base URL from the address parameter or the ADDRESS environment
// value, with a single trailing slash removed.
func ResolveAddress(params Params, env map[string]string) (string, error) {
	address := params.Address
	if address == "" {
		address = env[EnvAddress]
	}
	if address == "" {
		return "", actionerr.New(actionerr.ErrMissingAddress,
			"No URL specified. Provide address parameter or "+EnvAddress+" environment variable")
	}
	return strings.TrimSuffix(address, "/"), nil
}
