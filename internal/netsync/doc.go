// Package netsync keeps a shared state object synchronized between one authoritative
// Host and any number of Followers.
//
// Ownership boundary:
// - connection registry and liveness (Host only; followers never time out a peer)
// - routing of reserved protocol messages ahead of application dispatch
// - driving replica.Tracker on Sync and replica.Mirror on fullstate/diff receipt
//
// Each endpoint serializes transport callbacks, heartbeat ticks, sync ticks and
// handler invocations on one event loop started by Run. Handlers run on that loop
// and must not block.
package netsync
