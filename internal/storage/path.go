package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var (
	pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)
	unsafeNameChars      = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// UploadKey is where an uploaded file is archived:
// uploads/session=<id>/date=YYYY-MM-DD/<uploadID>-<file>.
func UploadKey(sessionID, uploadID, fileName string, at time.Time) (string, error) {
	if err := validatePathComponent(sessionID, "session id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(uploadID, "upload id"); err != nil {
		return "", err
	}
	name := SafeFileName(fileName)
	ts := at.UTC()
	return path.Join(
		"uploads",
		"session="+sessionID,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		uploadID+"-"+name,
	), nil
}

func SafeFileName(fileName string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), `\`, "/"))
	cleaned := strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "._")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return cleaned, nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
