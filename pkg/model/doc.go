// Package model applies management invocations to a resource tree.
//
// A Model owns the root of a tree and a table of handlers keyed by the type
// path of the target address and the operation id. Applying an invocation
// resolves the target, checks the parameters against the handler signature,
// applies the change and returns a compensating invocation:
//
//	comp, err := m.Apply(inv)
//	if err != nil {
//		// the tree is unchanged
//	}
//	if comp != nil {
//		_, _ = m.Apply(comp) // back to the state before inv
//	}
//
// Add and remove invocations address the child being added or removed.
package model
