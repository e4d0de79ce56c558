// Package history persists what the node did on its own behalf: connectivity
// transitions, link changes, inbound commands, and every attempted state
// publish with its outcome.
//
// Rows live in the local SQLite store (see migrations/) and are pruned by
// count, so the file stays bounded on flash storage. The status API reads
// recent rows back for diagnostics.
package history
