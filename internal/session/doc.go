// Package session provides the in-memory conversation store.
//
// A Session is an ordered, append-only list of messages identified by an
// opaque string ID. Sessions live for the lifetime of the process; there is
// no persistence layer, so a restart starts from an empty store.
//
// Concurrency: every Store operation is safe for concurrent use. A completed
// chat turn is appended as one AppendExchange call, so two concurrent turns
// against the same session interleave whole user/assistant pairs and never
// lose or split a pair. Turn-level serialization is intentionally not
// provided: a client issuing overlapping requests on one session accepts
// that the pairs may land in either order.
package session
