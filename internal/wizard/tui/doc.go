// Package tui implements the interactive wizard screens using the Bubble
// Tea framework.
//
// # Architecture
//
// The package follows the Elm architecture that Bubble Tea enforces:
//
//   - AppModel is the top-level coordinator. It owns the active screen,
//     routes messages to it, and handles screen transitions.
//   - HandlersModel is the integration picker: the filterable list of
//     handlers that can start a flow on the connected hub.
//   - DialogModel drives one flow dialog. It renders whatever step the
//     flow controller currently holds and feeds user input back through
//     the controller.
//
// # Dialog updates
//
// The flow controller pushes Update values on a channel; waitForUpdate
// relays them into the Bubble Tea loop one at a time and re-arms itself
// after every delivery. Step changes, the debounced loading indicator,
// open-URL requests for external steps, and the final close notification
// all arrive this way, so the screens never touch transport state.
//
// # Step rendering
//
// Form steps build one input per schema field: text inputs for strings and
// numbers (password fields with echo disabled), a toggle for booleans, and
// an option cycler for selects. Menu steps render a cursor list. External
// steps show the authorization URL while a browser tab is opened once.
// Progress steps render a progress bar fed by server push events. Terminal
// steps (abort, create_entry) show the outcome and wait for
// acknowledgement.
//
// All screens render through RenderApplicationContainer, which provides
// the shared header, footer, and bordered full-screen layout.
package tui
