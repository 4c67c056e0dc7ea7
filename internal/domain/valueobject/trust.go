package valueobject

// TrustLevel marks whether a value can be treated as originating from a
// trusted actor (the user, the planner, or a policy-validated tool) with every
// ancestor in its provenance chain also trusted.
type TrustLevel string

const (
	Trusted   TrustLevel = "trusted"
	Untrusted TrustLevel = "untrusted"
)

func (t TrustLevel) Valid() bool {
	return t == Trusted || t == Untrusted
}

// DataSource identifies who produced a value. Advisory only — trust is
// computed independently via TrustLevel inheritance.
type DataSource string

const (
	SourceUser    DataSource = "user"
	SourcePlanner DataSource = "planner"
	SourceWorker  DataSource = "worker"
	SourceWeb     DataSource = "web"
	SourceFile    DataSource = "file"
	SourceTool    DataSource = "tool"
)

// PolicyResult is the outcome of a policy engine check.
type PolicyResult string

const (
	PolicyAllowed                PolicyResult = "allowed"
	PolicyBlocked                PolicyResult = "blocked"
	PolicyHumanApprovalRequired  PolicyResult = "human_approval_required"
)

// ValidationResult is returned by every PolicyEngine check.
type ValidationResult struct {
	Status       PolicyResult
	Path         string
	Reason       string
	ResolvedPath string
}

func (v ValidationResult) Allowed() bool {
	return v.Status == PolicyAllowed
}
