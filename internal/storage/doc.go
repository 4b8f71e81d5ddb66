// Package storage defines the journal entry model, the Provider contract every
// storage backend satisfies, and the typed errors those backends return.
package storage
