// Package ws streams decoded MIDI events to WebSocket clients.
//
// The package implements:
//   - Message: the JSON wire form of one event, with explicit nulls for
//     fields the event type does not carry
//   - Session: one connected client, pumping bus events out and draining
//     (and ignoring) whatever the client sends in
//   - Handler: the upgrade endpoint and the table of live sessions
//
// A session moves through four phases: opened on upgrade, streaming while
// both pumps run, closing as soon as either pump finishes or the server
// context is cancelled, and closed once the subscription and connection
// are released. Clients are independent; a slow or dead client never
// stalls the publisher or the other sessions.
package ws
