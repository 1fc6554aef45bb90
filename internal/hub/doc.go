// Package hub speaks the hub's WebSocket API: an authenticated connection
// carrying id-correlated commands and event subscriptions, plus the flow
// services built on top of it.
//
// Dial performs the auth handshake (auth_required, auth, auth_ok) and
// starts a read loop that routes result envelopes to waiting Call invocations
// and event envelopes to their subscriptions. There are no automatic
// reconnects or retries; a lost connection fails everything in flight and
// the caller decides whether to dial again.
//
// FlowService implements flow.Client for the three data entry flow domains
// (config, options, repairs) and FlowEvents implements flow.EventSource for
// the two flow push event types.
package hub
