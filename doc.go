// Package here is the root of an event attendance service: hosts create
// in-person events, attendees RSVP and check in against a time window and a
// geofence.
//
// Packages:
//   - auth issues scoped JWTs, keeps revocation and one-time codes in a
//     credential store, and turns bearer tokens into typed principals through
//     the Guard pipeline.
//   - attendance owns events, their lifecycle state machine, RSVP, check-in,
//     the host summary, and the sweeper that closes events and records
//     no-shows.
//   - api wires both into go-router controllers.
//
// This package only ships the embedded SQL migrations.
package here
