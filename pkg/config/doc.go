// Package config loads schema documents that declare the types and resource
// types of a model, and evaluates Starlark invocation scripts.
//
// # Schema Documents
//
// A schema document is YAML, JSON or CUE. Named types go under types and
// resource types under resources; the resource named by root (default
// "root") describes the tree root and has no identifier:
//
//	version: "1"
//	types:
//	  Port: int
//	  Protocol:
//	    enum: [tcp, udp]
//	  Endpoint:
//	    composite:
//	      host: string
//	      port: Port
//	resources:
//	  root:
//	    children:
//	      - resource: server
//	        cardinality: "0..*"
//	  server:
//	    identifier: server[@name]
//	    fields:
//	      protected: true
//	    attributes:
//	      name: string
//	      port: Port
//	    operations:
//	      - name: write-port
//	        signature:
//	          port: Port
//	    adders:
//	      - name: add
//	        signature:
//	          port: Port?
//
// A scalar is a type reference: a short simple name (bool, byte, char,
// short, int, long, float, double, string, date, bigint, bigdecimal,
// objectname, void), a metatype class name such as "int32", or a named type.
// A trailing "?" marks a signature parameter as nillable.
//
// Documents are checked twice: against the built-in CUE #SchemaDocument
// definition held by SchemaRegistry, and against the validator tags of the
// Go types. A CUE document is unified with the definition first, so it may
// use CUE references and constraints as long as it evaluates to a concrete
// document.
//
// # Usage
//
//	parser := config.NewParser()
//	catalog, err := parser.Load("schema.yaml")
//	if err != nil {
//	    for _, e := range config.ValidationErrors(err) {
//	        fmt.Println(e)
//	    }
//	    return err
//	}
//	m, err := catalog.NewModel()
//
// Build rejects unknown and self-referencing types, resources that contain
// themselves, and resources that are not reachable from the root.
//
// # Invocation Scripts
//
// ScriptEvaluator runs Starlark with one extra builtin:
//
//	def add_servers(count):
//	    for i in range(count):
//	        invoke("/server[@name='web-%d']" % i, "add", port = 8080 + i)
//
//	add_servers(3)
//
// Each call records a protocol.InvocationRequest with JSON parameters.
// Nothing is applied by the evaluator. Scripts are cancelled when the
// timeout or the context expires.
package config
