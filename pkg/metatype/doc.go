// Package metatype implements the closed type and value algebra of the
// detyped management model.
//
// A MetaType is an immutable descriptor for one value shape: simple scalars,
// enums, composites, composite maps, tables, arrays, collections and maps.
// A MetaValue is a mutable container bound to exactly one MetaType; every
// mutator validates its input with the type's IsValue before touching state.
//
// Simple types are process-wide singletons. Decoders reach them through
// ResolveSimple so that identity comparison keeps working after a round trip:
//
//	t, ok := metatype.ResolveSimple("*int32")
//	// t == metatype.Integer
//
// Composite types are either immutable from construction or built with
// AddItem and then frozen:
//
//	server, _ := metatype.NewCompositeType("server", "a listening server",
//		metatype.Item{Name: "name", Type: metatype.String},
//		metatype.Item{Name: "port", Type: metatype.Integer},
//	)
//	v, _ := metatype.NewCompositeValue(server, map[string]metatype.MetaValue{
//		"name": metatype.StringValue("http"),
//	})
//	_ = v.Set("port", metatype.IntValue(8080))
//
// Values are not safe for concurrent mutation. Types are safe to share once
// constructed (or frozen).
package metatype
