package prospect

import "strings"

const (
	// FirstNamePlaceholder is substituted in note and message templates.
	FirstNamePlaceholder = "{{first_name}}"

	// FallbackDM is sent when neither a row override nor a template is configured.
	FallbackDM = "Hi, thanks for connecting!"

	// NoteLimit is the most characters an invitation note may carry.
	NoteLimit = 300

	unknownFirstName = "there"
	maxErrorLen      = 500
)

// FirstName takes the first word of a scraped display name.
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Personalize substitutes the first name into tmpl. An unknown first name
// becomes "there" so no raw placeholder is ever sent.
func Personalize(tmpl, firstName string) string {
	if !strings.Contains(tmpl, FirstNamePlaceholder) {
		return tmpl
	}
	if firstName == "" {
		firstName = unknownFirstName
	}
	return strings.ReplaceAll(tmpl, FirstNamePlaceholder, firstName)
}

// NoteText personalizes an invitation note and cuts it to NoteLimit runes.
func NoteText(tmpl, firstName string) string {
	n := []rune(Personalize(tmpl, firstName))
	if len(n) > NoteLimit {
		n = n[:NoteLimit]
	}
	return string(n)
}

// MessageText picks the direct message for a row: the row override, else the
// global template, else FallbackDM. The chosen text is personalized.
func MessageText(rowOverride, template, firstName string) string {
	t := rowOverride
	if strings.TrimSpace(t) == "" {
		t = template
	}
	if strings.TrimSpace(t) == "" {
		t = FallbackDM
	}
	return Personalize(t, firstName)
}

// TruncateError shortens an error for the last_error column.
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) > maxErrorLen {
		s = s[:maxErrorLen]
	}
	return s
}
