package okta

import (
	"encoding/json"
)

// Profile is the user profile sent to Okta on creation.
// Extensions are merged after the typed fields, so an extension key overrides a typed field
// of the same name.
type Profile struct {
	Email          string
	Login          string
	FirstName      string
	LastName       string
	Department     string
	EmployeeNumber string
	Extensions     map[string]any
}

// Fields flattens the profile into the attribute map Okta stores.
func (p Profile) Fields() map[string]any {
	fields := make(map[string]any, 6+len(p.Extensions))
	fields["email"] = p.Email
	fields["login"] = p.Login
	fields["firstName"] = p.FirstName
	fields["lastName"] = p.LastName
	if p.Department != "" {
		fields["department"] = p.Department
	}
	if p.EmployeeNumber != "" {
		fields["employeeNumber"] = p.EmployeeNumber
	}
	for key, value := range p.Extensions {
		fields[key] = value
	}
	return fields
}

func (p Profile) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields())
}

// CreateUserRequest is the body of POST /api/v1/users.
type CreateUserRequest struct {
	Profile  Profile  `json:"profile"`
	GroupIDs []string `json:"groupIds,omitempty"`
}

// User mirrors the user representation returned by Okta.
type User struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Created       string         `json:"created"`
	Activated     *string        `json:"activated"`
	StatusChanged *string        `json:"statusChanged"`
	LastLogin     *string        `json:"lastLogin"`
	LastUpdated   string         `json:"lastUpdated"`
	Profile       map[string]any `json:"profile"`
}

// ProfileString returns a string attribute from the stored profile.
func (u User) ProfileString(key string) string {
	if u.Profile == nil {
		return ""
	}
	value, _ := u.Profile[key].(string)
	return value
}
