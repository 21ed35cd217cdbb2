// Package resource implements the addressable resource tree: entity ids and
// addresses, node schemas (Info) with child cardinalities, and the
// ManagedResource nodes themselves.
//
// A node is read through *ManagedResource and changed through *Mutable. Only
// the constructors hand out a Mutable, so whoever owns the root decides who may
// change the tree. Every mutation is checked before anything changes; a failed
// call leaves the node as it was.
//
// Trees are not synchronized. Serialize writers, and give readers a Clone.
package resource
