package action

import "github.com/MarcoPoloResearchLab/okta-create-user/internal/okta"

// Result is the fixed output schema of the action.
type Result struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Created       string         `json:"created"`
	Activated     *string        `json:"activated"`
	StatusChanged *string        `json:"statusChanged"`
	LastLogin     *string        `json:"lastLogin"`
	LastUpdated   string         `json:"lastUpdated"`
	Profile       map[string]any `json:"profile"`
	GroupIDs      []string       `json:"groupIds"`
}

// Normalize projects a provider user into a Result. GroupIDs is the requested list, not the
// membership Okta confirmed.
func Normalize(user okta.User, requestedGroupIDs []string) Result {
	groupIDs := make([]string, len(requestedGroupIDs))
	copy(groupIDs, requestedGroupIDs)
	return Result{
		ID:            user.ID,
		Status:        user.Status,
		Created:       user.Created,
		Activated:     user.Activated,
		StatusChanged: user.StatusChanged,
		LastLogin:     user.LastLogin,
		LastUpdated:   user.LastUpdated,
		Profile:       user.Profile,
		GroupIDs:      groupIDs,
	}
}

// HaltResult acknowledges a halt request.
type HaltResult struct {
	Email            string `json:"email"`
	Reason           string `json:"reason"`
	HaltedAt         string `json:"haltedAt"`
	CleanupCompleted bool   `json:"cleanupCompleted"`
}
