// Package store persists the panel's collections as flat JSON documents.
//
// Each collection lives in its own file under the data directory and is read
// and written as a whole. A per-document mutex serializes every
// read-modify-write, and writes go through a temporary file and a rename.
// There are no transactions spanning two documents.
//
// Consumers depend on the repository interfaces in repositories.go rather
// than on the JSON implementation.
package store
