package action

// Input parameter names.
const (
	ParamEmail                       = "email"
	ParamLogin                       = "login"
	ParamFirstName                   = "firstName"
	ParamLastName                    = "lastName"
	ParamDepartment                  = "department"
	ParamEmployeeNumber              = "employeeNumber"
	ParamGroupIDs                    = "groupIds"
	ParamAdditionalProfileAttributes = "additionalProfileAttributes"
	ParamAddress                     = "address"

	// EnvAddress is the environment fallback for the Okta base URL.
	EnvAddress = "ADDRESS"
)

// RequiredParams lists the parameters every invocation must carry.
var RequiredParams = []string{ParamEmail, ParamLogin, ParamFirstName, ParamLastName}

// Params are the resolved input parameters of one invocation.
type Params struct {
	Email                       string `json:"email"`
	Login                       string `json:"login"`
	FirstName                   string `json:"firstName"`
	LastName                    string `json:"lastName"`
	Department                  string `json:"department,omitempty"`
	EmployeeNumber              string `json:"employeeNumber,omitempty"`
	GroupIDs                    string `json:"groupIds,omitempty"`
	AdditionalProfileAttributes string `json:"additionalProfileAttributes,omitempty"`
	Address                     string `json:"address,omitempty"`
}

// Values exposes the parameters keyed by their input names.
func (p Params) Values() map[string]string {
	return map[string]string{
		ParamEmail:                       p.Email,
		ParamLogin:                       p.Login,
		ParamFirstName:                   p.FirstName,
		ParamLastName:                    p.LastName,
		ParamDepartment:                  p.Department,
		ParamEmployeeNumber:              p.EmployeeNumber,
		ParamGroupIDs:                    p.GroupIDs,
		ParamAdditionalProfileAttributes: p.AdditionalProfileAttributes,
		ParamAddress:                     p.Address,
	}
}

// Context is what the orchestrator hands to an invocation besides its parameters.
// It is passed by value and never read from process-wide state.
type Context struct {
	Secrets     map[string]string `json:"secrets"`
	Environment map[string]string `json:"environment"`
}
