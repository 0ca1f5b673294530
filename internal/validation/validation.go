// Package validation provides identifier and path sanitization used by
// the session kernel before anything touches disk or a container boundary.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	uuidRegex     = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	safePathRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	// generatedSessionRegex matches the kernel's own synthesized session ID
	// format: gogol_YYYYMMDD_HHMMSS_RANDOMHEX.
	generatedSessionRegex = regexp.MustCompile(`^gogol_\d{8}_\d{6}_[0-9a-fA-F]+$`)
)

// ValidateUUID checks if the string is a valid UUID.
func ValidateUUID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if !uuidRegex.MatchString(id) {
		return fmt.Errorf("invalid UUID format: %s", id)
	}
	return nil
}

// ValidateProjectID validates a project ID.
func ValidateProjectID(id string) error {
	return ValidateUUID(id)
}

// ValidateSessionID validates a session ID: a UUID, a child_<parent>_<counter>
// recursion ID, or a kernel-generated gogol_* ID.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	if strings.HasPrefix(id, "child_") {
		parts := strings.Split(id, "_")
		if len(parts) < 3 {
			return fmt.Errorf("invalid child session ID format: %s", id)
		}
		return nil
	}

	if strings.HasPrefix(id, "gogol_") {
		if !generatedSessionRegex.MatchString(id) {
			return fmt.Errorf("invalid generated session ID format: %s", id)
		}
		return nil
	}

	return ValidateUUID(id)
}

// ValidateWorkspaceID validates a workspace ID.
func ValidateWorkspaceID(id string) error {
	return ValidateUUID(id)
}

// SanitizePath rejects path traversal attempts and absolute paths, validates
// each path component, and returns the path unchanged when it passes.
func SanitizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path traversal detected: %s", path)
	}

	if strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("absolute paths not allowed: %s", path)
	}

	parts := strings.Split(path, "/")
	for _, part := range parts {
		if part == "" {
			continue // Allow trailing and repeated slashes
		}
		if !safePathRegex.MatchString(part) {
			return "", fmt.Errorf("unsafe path component: %s", part)
		}
	}

	return path, nil
}

// ValidateContainerID validates a container ID (hex string).
func ValidateContainerID(id string) error {
	if id == "" {
		return fmt.Errorf("container ID cannot be empty")
	}

	if len(id) < 12 || len(id) > 64 {
		return fmt.Errorf("invalid container ID length: %s", id)
	}

	for _, c := range id {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return fmt.Errorf("invalid container ID format: %s", id)
		}
	}

	return nil
}
