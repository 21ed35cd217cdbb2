// Package jsonvalue converts meta values to and from JSON.
//
// Every variant has one JSON shape: simple values are scalars, enums are
// strings, composites are objects keyed by item name, arrays and collections
// are arrays, tables and composite maps are arrays of row objects, and maps
// are arrays of {"KEY": k, "VALUE": v} objects. Decoding is driven by the
// expected MetaType and fails on any input of the wrong shape.
package jsonvalue
