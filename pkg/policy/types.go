package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that block the invocation.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that block the invocation.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity denies the invocation.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Violations are read from the
	// deny set of its package.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks the policies shipped with the engine.
	Builtin bool `json:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Address is the address of the invocation that violated the policy.
	Address string `json:"address,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	Severity Severity `json:"severity"`

	Details map[string]interface{} `json:"details,omitempty"`
}

// Result represents the result of policy evaluation.
type Result struct {
	// Allowed is false when any violation blocks.
	Allowed bool `json:"allowed"`

	// Violations lists the blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists violations that don't block the invocation, and
	// policies that failed to evaluate.
	Warnings []Violation `json:"warnings,omitempty"`

	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	Duration time.Duration `json:"duration"`
}

// Input is the document a policy sees as input.
type Input struct {
	// Address is the full address of the invocation.
	Address string `json:"address"`

	// AddressType is the type path of the address, "/" for the root and
	// "/server/disk" below it.
	AddressType string `json:"address_type"`

	Operation string `json:"operation"`

	// Params holds the parameter values in their JSON form.
	Params map[string]interface{} `json:"params"`

	// Target describes the addressed entity, when it exists.
	Target *Target `json:"target,omitempty"`

	Context *Context `json:"context,omitempty"`
}

// Target describes the entity an invocation addresses.
type Target struct {
	// Exists is false for an add, whose target is not in the tree yet.
	Exists bool `json:"exists"`

	// Element and Name are the element name and identifying attribute
	// value of the last address segment.
	Element string `json:"element,omitempty"`
	Name    string `json:"name,omitempty"`

	// Fields are the free-form fields of the entity's info.
	Fields map[string]interface{} `json:"fields,omitempty"`

	// Children is the total number of direct children.
	Children int `json:"children"`
}

// Context provides information about the evaluation.
type Context struct {
	RequestID string `json:"request_id,omitempty"`

	// Environment is the environment (e.g., "production", "staging").
	Environment string `json:"environment,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Replay is set while the journal is replayed.
	Replay bool `json:"replay"`
}

// PolicyBundle represents a collection of related policies.
type PolicyBundle struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Policies    []Policy `json:"policies"`

	CreatedAt time.Time `json:"created_at"`
}
