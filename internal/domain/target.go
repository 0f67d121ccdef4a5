package domain

import (
	"fmt"
	"strings"
)

// TargetKind tags the closed set of scannable target variants.
type TargetKind string

const (
	TargetURL      TargetKind = "url"
	TargetEmail    TargetKind = "email"
	TargetFileHash TargetKind = "file_hash"
)

// CheckTarget is the immutable identity a scan carries: the raw submitted
// value plus its kind tag. Construct it through one of the typed helpers.
type CheckTarget struct {
	Kind  TargetKind
	Value string
}

func URLTarget(raw string) CheckTarget {
	return CheckTarget{Kind: TargetURL, Value: strings.TrimSpace(raw)}
}

func EmailTarget(raw string) CheckTarget {
	return CheckTarget{Kind: TargetEmail, Value: strings.TrimSpace(raw)}
}

func FileHashTarget(raw string) CheckTarget {
	return CheckTarget{Kind: TargetFileHash, Value: strings.TrimSpace(raw)}
}

// DetectTarget guesses the target kind from the raw value. A 64-char hex
// string is treated as a SHA-256 hash, a value containing "@" but no scheme
// as an email address, everything else as a URL.
func DetectTarget(raw string) CheckTarget {
	value := strings.TrimSpace(raw)

	if isHex(value) && len(value) == 64 {
		return FileHashTarget(value)
	}
	if strings.Contains(value, "@") && !strings.Contains(value, "://") {
		return EmailTarget(value)
	}
	return URLTarget(value)
}

func (t CheckTarget) String() string {
	return fmt.Sprintf("%s(%s)", t.Kind, t.Value)
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
