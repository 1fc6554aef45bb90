package catalog

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/veldt/entryflow/internal/hub"
)

// Localizer resolves dotted resource keys for one handler within one flow
// domain. Every lookup has a raw fallback so a missing or unfetched string
// table degrades to showing the key instead of hiding the dialog.
type Localizer struct {
	strings map[string]string
	section string
}

// section names the top-level key group per flow domain in the hub's
// string tables.
func sectionFor(domain hub.FlowDomain) string {
	switch domain {
	case hub.DomainOptions:
		return "options"
	case hub.DomainRepairs:
		return "issues"
	default:
		return "config"
	}
}

func newLocalizer(table map[string]string, domain hub.FlowDomain) *Localizer {
	return &Localizer{strings: table, section: sectionFor(domain)}
}

// lookup returns the string for key, or fallback when absent.
func (l *Localizer) lookup(key, fallback string) string {
	if v, ok := l.strings[key]; ok && v != "" {
		return v
	}
	return fallback
}

// StepTitle returns the title for a step, falling back to a readable form
// of the step id.
func (l *Localizer) StepTitle(stepID string) string {
	key := fmt.Sprintf("%s.step.%s.title", l.section, stepID)
	return l.lookup(key, titleize(stepID))
}

// StepDescription returns the descriptive text under a step title, or ""
// when the handler provides none.
func (l *Localizer) StepDescription(stepID string) string {
	key := fmt.Sprintf("%s.step.%s.description", l.section, stepID)
	return l.lookup(key, "")
}

// FieldLabel returns the label for a form field, falling back to a
// readable form of the field name.
func (l *Localizer) FieldLabel(stepID, field string) string {
	key := fmt.Sprintf("%s.step.%s.data.%s", l.section, stepID, field)
	return l.lookup(key, titleize(field))
}

// MenuOptionLabel returns the label for a menu option, falling back to the
// label the step itself carried.
func (l *Localizer) MenuOptionLabel(stepID, optionID, fallback string) string {
	key := fmt.Sprintf("%s.step.%s.menu_options.%s", l.section, stepID, optionID)
	if fallback == "" {
		fallback = titleize(optionID)
	}
	return l.lookup(key, fallback)
}

// ErrorText returns the user-facing text for a validation error code,
// falling back to the raw code.
func (l *Localizer) ErrorText(code string) string {
	key := fmt.Sprintf("%s.error.%s", l.section, code)
	return l.lookup(key, code)
}

// AbortReason returns the user-facing text for an abort reason, falling
// back to a readable form of the raw reason.
func (l *Localizer) AbortReason(reason string) string {
	key := fmt.Sprintf("%s.abort.%s", l.section, reason)
	return l.lookup(key, titleize(reason))
}

// ProgressAction returns the text describing a progress step's current
// action, falling back to a readable form of the action id.
func (l *Localizer) ProgressAction(action string) string {
	key := fmt.Sprintf("%s.progress.%s", l.section, action)
	return l.lookup(key, titleize(action))
}

// titleize turns a snake_case identifier into display text, e.g.
// "already_configured" into "Already configured".
func titleize(id string) string {
	if id == "" {
		return ""
	}
	out := strings.ReplaceAll(id, "_", " ")
	first, size := utf8.DecodeRuneInString(out)
	return string(unicode.ToUpper(first)) + out[size:]
}
