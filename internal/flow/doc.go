// Package flow implements the data entry flow dialog state machine.
//
// A data entry flow is a server-tracked, multi-step wizard session
// (integration setup, options, repair) identified by a flow_id. The hub
// returns one Step at a time; each Step is tagged with a StepType that
// decides how it is presented and how it advances:
//
//	form         user fills in a data schema and submits
//	menu         user picks a branch (submitted as next_step_id)
//	external     an external URL completes the step; a push event advances
//	progress     a server-side action runs; push events advance/update it
//	abort        terminal, flow ended with a reason
//	create_entry terminal, flow produced an entry
//
// # Controller
//
// Controller drives one dialog instance. It talks to the server only
// through the Client interface (create/fetch/submit/delete) and the
// optional EventSource (push events), holds the single current Step, and
// replaces it wholesale on every transition.
//
// Asynchronous completions are guarded by a generation token captured when
// the operation starts and compared when its result lands; a result that
// resolves after the dialog closed is discarded, never applied. Step
// submissions are strictly sequential: a second submit while one is in
// flight fails with ErrKindBusy.
//
// Failures are never retried automatically. Creation failures are fatal to
// the dialog; submission failures keep the current step so the user can
// correct input and try again.
//
// # Presenters
//
// Presenters (the TUI, tests) receive Update notifications through
// Updates() and call controller methods in response to user actions. They
// hold no transport state of their own.
package flow
