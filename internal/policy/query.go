package policy

import (
	"errors"
	"strings"
)

// ErrNotReadOnlyQuery is returned for ad-hoc query text that is not a SELECT.
var ErrNotReadOnlyQuery = errors.New("only SELECT queries are allowed")

// CheckReadOnlyQuery accepts query text whose first keyword is SELECT,
// ignoring case and surrounding whitespace.
func CheckReadOnlyQuery(text string) error {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ErrNotReadOnlyQuery
	}
	first := fields[0]
	if len(first) < len("SELECT") || !strings.EqualFold(first[:len("SELECT")], "SELECT") {
		return ErrNotReadOnlyQuery
	}
	if rest := first[len("SELECT"):]; rest != "" && rest[0] != '*' && rest[0] != '(' {
		return ErrNotReadOnlyQuery
	}
	return nil
}
