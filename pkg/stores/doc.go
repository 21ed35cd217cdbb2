// Package stores persists the invocation journal of a management model.
// The SQLite implementation embeds its migrations and keeps entries in
// sequence order; replaying the applied entries of a journal rebuilds the
// tree it recorded.
package stores
