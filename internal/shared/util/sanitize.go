package util

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFileNameLen = 200

var errInvalidFileName = errors.New("invalid file name")

// SanitizeFileName flattens path separators, drops control characters and
// rejects traversal. Long names keep their extension.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errInvalidFileName
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if s == "" {
		return "", errInvalidFileName
	}
	if len(s) > maxFileNameLen {
		ext := ""
		if i := strings.LastIndexByte(s, '.'); i > 0 && len(s)-i <= 10 {
			ext = s[i:]
		}
		s = truncateRunes(s[:len(s)-len(ext)], maxFileNameLen-len(ext)) + ext
	}
	return s, nil
}

// SanitizeMessage folds a message onto one line and caps it at limit bytes
// without splitting a rune.
func SanitizeMessage(msg string, limit int) string {
	msg = strings.Join(strings.Fields(msg), " ")
	return truncateRunes(msg, limit)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	s = s[:limit]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
