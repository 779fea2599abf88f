package userinfo

import "strings"

// Type is the broad category a platform user ID falls into. The comment
// stream carries several ID shapes and each one gets different treatment
// downstream.
type Type string

const (
	// TypeUnknown is an empty or missing user ID.
	TypeUnknown Type = "unknown"
	// TypeAnonymous is a hash-anonymised viewer ("a:" prefix).
	TypeAnonymous Type = "anonymous"
	// TypeOperator is a broadcaster or channel staff account ("o:" prefix).
	TypeOperator Type = "operator"
	// TypeRawID is a plain numeric account ID. Only these can be resolved
	// to a nickname and icon.
	TypeRawID Type = "raw"
	// TypeOther is any remaining shape.
	TypeOther Type = "other"
)

// Classify buckets a user ID by its shape.
func Classify(userID string) Type {
	switch {
	case userID == "":
		return TypeUnknown
	case strings.HasPrefix(userID, "a:"):
		return TypeAnonymous
	case strings.HasPrefix(userID, "o:"):
		return TypeOperator
	case allDigits(userID):
		return TypeRawID
	default:
		return TypeOther
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
