package resolver

import (
	"strings"
	"unicode/utf8"

	"strainscan/internal/util"
)

const minNameLength = 3

// Clean validates a candidate name. It returns the whitespace-normalized
// name and true, or "" and false when the input is empty, shorter than
// three characters, or carries a blocklisted fragment.
func (r *Resolver) Clean(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	name := util.CollapseSpaces(util.Fold(raw))
	if utf8.RuneCountInString(name) < minNameLength {
		return "", false
	}
	if containsAny(strings.ToLower(name), r.lists.NameFragments) {
		return "", false
	}
	return name, true
}
