// Package protocol owns the wire envelope shared by hosts and followers.
//
// Every frame is one JSON object with a string `type` discriminator. Four types are
// reserved by the replication layer:
// - ping: liveness probe and its acknowledgment (no payload)
// - empty: a sync tick that produced no change (no payload)
// - diff: incremental change since the previous tick (field `diff`)
// - fullstate: complete state used to bootstrap a follower (field `fullstate`)
//
// Any other type belongs to the application and is carried through untouched in
// Message.Raw.
package protocol
