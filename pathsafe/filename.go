package pathsafe

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Device names Windows refuses as file names regardless of extension.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename turns a client supplied upload name into a safe single segment.
//
// Names carrying directory components, NUL bytes or parent references are rejected with
// ErrInvalidPath. Everything else is normalised: non-ASCII is dropped, whitespace runs become
// "_", characters outside [A-Za-z0-9._-] are removed and leading/trailing "._" trimmed.
func SanitizeFilename(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty filename", ErrInvalidPath)
	}
	if strings.ContainsAny(name, "/\\\x00") || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: filename %q contains directory components", ErrInvalidPath, name)
	}
	if name == "." || name == ".." {
		return "", fmt.Errorf("%w: parent or self reference", ErrInvalidPath)
	}

	var ascii strings.Builder
	ascii.Grow(len(name))
	for _, c := range name {
		if c < 0x80 {
			ascii.WriteRune(c)
		}
	}

	joined := strings.Join(strings.Fields(ascii.String()), "_")

	var kept strings.Builder
	kept.Grow(len(joined))
	for i := 0; i < len(joined); i++ {
		c := joined[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			kept.WriteByte(c)
		case c == '.' || c == '_' || c == '-':
			kept.WriteByte(c)
		}
	}

	out := strings.Trim(kept.String(), "._")
	if out == "" {
		return "", fmt.Errorf("%w: filename %q has no safe characters", ErrInvalidPath, name)
	}

	stem, _, _ := strings.Cut(out, ".")
	if _, reserved := reservedNames[strings.ToUpper(stem)]; reserved {
		out = "_" + out
	}

	if err := ValidateSegment(out); err != nil {
		return "", err
	}
	return out, nil
}
