package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		protectedEntitiesPolicy(),
		entityNamingPolicy(),
		productionRemovalPolicy(),
	}
}

// protectedEntitiesPolicy blocks removal of entities whose info is marked
// protected.
func protectedEntitiesPolicy() Policy {
	return Policy{
		Name:        "protected-entities",
		Description: "Forbids removing entities whose resource info sets the protected field",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package detyped.policies.protected

import rego.v1

deny contains violation if {
	input.operation == "remove"
	input.target.exists
	input.target.fields.protected == true

	violation := {
		"message": sprintf("Entity %s is protected and cannot be removed", [input.address]),
		"severity": "error",
	}
}`,
	}
}

// entityNamingPolicy warns about identifying attribute values that are
// awkward to address.
func entityNamingPolicy() Policy {
	return Policy{
		Name:        "entity-naming",
		Description: "Warns when an added entity's name is not made of letters, digits, dots, underscores and hyphens",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package detyped.policies.naming

import rego.v1

deny contains violation if {
	input.operation == "add"
	name := input.target.name
	name != ""
	not regex.match("^[A-Za-z0-9][A-Za-z0-9._-]*$", name)

	violation := {
		"message": sprintf("Name '%s' of %s should contain only letters, digits, dots, underscores and hyphens", [name, input.target.element]),
		"severity": "warning",
	}
}

deny contains violation if {
	input.operation == "add"
	name := input.target.name
	count(name) > 63

	violation := {
		"message": sprintf("Name of %s is longer than 63 characters", [input.target.element]),
		"severity": "warning",
	}
}`,
	}
}

// productionRemovalPolicy blocks removing subtrees in production, which
// cannot be undone.
func productionRemovalPolicy() Policy {
	return Policy{
		Name:        "production-removal",
		Description: "Forbids removing entities that still have children in the production environment",
		Severity:    SeverityCritical,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"safety", "production"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package detyped.policies.production

import rego.v1

deny contains violation if {
	input.context.environment == "production"
	not input.context.replay
	input.operation == "remove"
	input.target.children > 0

	violation := {
		"message": sprintf("Removing %s would drop %d children and cannot be undone", [input.address, input.target.children]),
		"severity": "critical",
		"details": {"children": input.target.children},
	}
}`,
	}
}
