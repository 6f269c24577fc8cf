package action

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/actionerr"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/okta"
)

const invalidAttributesMessage = "Invalid additionalProfileAttributes JSON"

// BuildProfile assembles the Okta profile from the parameters. Keys from
// additionalProfileAttributes are kept as extensions and win over the typed fields.
func BuildProfile(params Params) (okta.Profile, error) {
	profile := okta.Profile{
		Email:          params.Email,
		Login:          params.Login,
		FirstName:      params.FirstName,
		LastName:       params.LastName,
		Department:     params.Department,
		EmployeeNumber: params.EmployeeNumber,
	}
	if params.AdditionalProfileAttributes == "" {
		return profile, nil
	}
	extensions, err := parseAttributes(params.AdditionalProfileAttributes)
	if err != nil {
		return okta.Profile{}, actionerr.New(actionerr.ErrInvalidAttributes, invalidAttributesMessage+": "+err.Error()).WithCause(err)
	}
	profile.Extensions = extensions
	return profile, nil
}

func parseAttributes(raw string) (map[string]any, error) {
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	var attributes map[string]any
	if err := decoder.Decode(&attributes); err != nil {
		return nil, err
	}
	var trailing json.RawMessage
	if err := decoder.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return attributes, nil
}

// ParseGroupIDs splits a comma-separated list, trimming tokens and dropping empty ones.
// Order and duplicates are kept.
func ParseGroupIDs(raw string) []string {
	groupIDs := make([]string, 0)
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		groupIDs = append(groupIDs, token)
	}
	return groupIDs
}
