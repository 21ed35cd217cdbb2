// Package policy gates management invocations with Open Policy Agent (OPA)
// Rego policies.
//
// Every policy is a Rego module whose package defines a deny set. The engine
// evaluates the deny set of each enabled policy against an Input describing
// one invocation, before the invocation reaches the model:
//
//	{
//	    "address":      "/server[@name='web-01']",
//	    "address_type": "/server",
//	    "operation":    "remove",
//	    "params":       {},
//	    "target":       {"exists": true, "element": "server", "name": "web-01",
//	                     "fields": {"protected": true}, "children": 0},
//	    "context":      {"environment": "production", "replay": false}
//	}
//
// A deny element is either a message string or an object with message,
// severity and details. Violations of severity error or critical block the
// invocation; the others are reported as warnings.
//
// # Usage
//
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//
//	if _, err := engine.EvaluateInvocation(ctx, input); err != nil {
//	    // faults.IsPolicy(err) reports a denial
//	}
//
// # Built-in Policies
//
//  1. protected-entities - Forbids removing entities whose info sets the protected field
//  2. entity-naming - Warns about names that are awkward to address
//  3. production-removal - Forbids removing subtrees in production
//
// # Custom Policies
//
// Custom policies are .rego files, named after the file, or .json policy
// definitions. Leading comments of a .rego file form its description and a
// "# severity: error" comment sets the default severity:
//
//	# Disks are never removed.
//	# severity: error
//	package site.disks
//
//	import rego.v1
//
//	deny contains msg if {
//	    input.address_type == "/server/disk"
//	    input.operation == "remove"
//	    msg := "disks are never removed"
//	}
//
// Engine.Watch loads policy paths and reloads them through fsnotify when
// files change.
package policy
