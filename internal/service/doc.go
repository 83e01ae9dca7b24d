// Package service assembles netsync endpoints into runnable processes.
//
// Ownership boundary:
// - process configuration defaults
// - HTTP listener lifecycle for the host (admin routes plus the sync endpoint)
// - the external tick driver that calls Host.Sync, and the demo document it mutates
// - signal-driven shutdown
package service
