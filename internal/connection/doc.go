// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns at most one WebSocket to the dashboard backend at a time
//   - Sends the auth handshake once the socket opens
//   - Hands every inbound frame, in receive order, to a Dispatcher
//   - Retries abnormal closes through a reconnect.Policy and gives up
//     with a persistent notification once the policy is exhausted
//
// Lifecycle transitions are serialized by the Manager's mutex. Each socket
// gets a generation number; events and timers belonging to an older
// generation are ignored, so a socket replaced by Connect or Disconnect
// cannot move the state machine.
package connection
