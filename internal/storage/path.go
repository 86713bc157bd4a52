package storage

import (
	"fmt"
	"regexp"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeFilename replaces every character outside [a-zA-Z0-9.-] with '_'.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// ObjectPath builds the storage key of a processed image:
// {userID}/{unix millis}-{sanitized filename}.png
func ObjectPath(userID, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%d-%s.png", userID, now.UnixMilli(), SanitizeFilename(filename))
}
