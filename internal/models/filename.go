package models

import "strings"

// SanitizeFileName replaces every character outside [A-Za-z0-9] with an
// underscore so a display name can be used in a download name.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ExportFileName is the download name of an exported template.
func ExportFileName(templateName string) string {
	return "badge_template_" + SanitizeFileName(templateName) + ".json"
}

// BadgesFileName is the download name of a generated batch.
func BadgesFileName(templateName string, format Format) string {
	ext := ".pdf"
	if format == FormatZIP {
		ext = ".zip"
	}
	return "badges_" + SanitizeFileName(templateName) + ext
}
