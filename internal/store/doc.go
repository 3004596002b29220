// Package store persists cases and their image assets and exposes the status
// transitions the pipeline drives them through.
//
// The Store is the single source of truth for pipeline state. Every stage
// reads its work by claiming records whose status code says they are pending,
// and records completion or failure by writing the next code back. Records are
// never deleted by the pipeline; terminal failure codes stay visible until an
// operator retries them.
//
// The same Store runs against SQLite for local development and Postgres in
// production. Queries are written once with ? placeholders and rebound for
// Postgres, timestamps are stored as RFC 3339 text in both dialects, and
// booleans as 0/1 integers.
package store
