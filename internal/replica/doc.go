// Package replica owns both halves of state replication.
//
// Ownership boundary:
// - Tracker: authoritative side; keeps the single snapshot of the last tick and turns
//   each tick into a delta against it
// - Mirror: follower side; holds the replicated map and applies fullstate/diff to it
//
// Neither type is safe for concurrent use. Each is owned by the event loop of the
// endpoint that created it.
package replica
