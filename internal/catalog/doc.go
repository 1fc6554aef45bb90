// Package catalog serves integration metadata for the wizard: the list of
// handlers that can start a flow, and the localized strings used to render
// step titles, field labels, error codes, and abort reasons.
//
// Results are held in an injected TTL cache so repeated dialogs against the
// same hub do not refetch. A failed metadata fetch never blocks a flow; the
// localizer degrades to raw resource keys.
package catalog
