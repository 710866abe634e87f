package enums

import "fmt"

// CompletionPath records which payment path produced a completion attempt.
type CompletionPath string

const (
	CompletionPathWallet  CompletionPath = "wallet"
	CompletionPathGeneric CompletionPath = "generic"
)

var validCompletionPaths = []CompletionPath{
	CompletionPathWallet,
	CompletionPathGeneric,
}

// String implements fmt.Stringer.
func (c CompletionPath) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CompletionPath.
func (c CompletionPath) IsValid() bool {
	for _, candidate := range validCompletionPaths {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCompletionPath converts raw input into a CompletionPath.
func ParseCompletionPath(value string) (CompletionPath, error) {
	for _, candidate := range validCompletionPaths {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid completion path %q", value)
}
