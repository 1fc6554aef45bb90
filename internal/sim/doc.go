// Package sim is a scripted hub for development and testing. It serves the
// WebSocket API surface the wizard needs (auth handshake, flow commands,
// event subscriptions) and answers flow commands from a YAML script instead
// of real integrations.
//
// A script is a graph of steps. Form steps can route on submitted input to
// produce validation errors or branch; external and progress steps advance
// on timers and push the same events a real hub would. Terminal steps
// (abort, create_entry) end the flow.
package sim
