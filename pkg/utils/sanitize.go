package utils

import (
	"regexp"
	"strings"
	"time"
)

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F\s]`) // Invalid in Windows/Unix filenames, plus whitespace
var consecutiveUnderscores = regexp.MustCompile(`_+`)
const maxFilenameLength = 100

// SanitizeFilename cleans a string to be safe for use as a filename component
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "_")
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ ")

	if len(sanitized) > maxFilenameLength {
		sanitized = strings.Trim(sanitized[:maxFilenameLength], "_ ")
	}

	if sanitized == "" {
		sanitized = "untitled"
	}
	return sanitized
}

// ExportFilename builds "<prefix>_<yyyymmdd_hhmmss>.<ext>" for report exports
func ExportFilename(prefix string, at time.Time, ext string) string {
	return SanitizeFilename(prefix) + "_" + at.Format("20060102_150405") + "." + strings.TrimPrefix(ext, ".")
}
