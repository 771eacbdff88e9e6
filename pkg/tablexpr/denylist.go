package tablexpr

import (
	"regexp"
	"strings"
)

// The denylist is a secondary defense: the primary boundary is the closed
// grammar, which only parses the enumerated operation set. The pre-check
// rejects obviously hostile candidates before they reach the parser at all.
var (
	// Matched as whole words, case-insensitive.
	denyWords = []string{
		"import", "exec", "eval", "compile", "subprocess", "pickle", "shutil",
		"open", "read", "write", "delete", "drop", "insert", "update",
		"truncate", "remove", "system", "getattr", "setattr", "globals",
		"locals", "request", "socket", "http", "https", "urllib",
	}

	// Matched as raw substrings: punctuation-bearing tokens word matching
	// would miss.
	denySubstrings = []string{"__", "os.", "sys.", "net.", ";", "`", "$"}

	denyWordRE = regexp.MustCompile(`(?i)\b(` + strings.Join(denyWords, "|") + `)\b`)
)

// DenylistMatch returns the first denylisted token found in code, or "" if
// the code passes the pre-check.
func DenylistMatch(code string) string {
	lower := strings.ToLower(code)
	for _, tok := range denySubstrings {
		if strings.Contains(lower, tok) {
			return tok
		}
	}
	if m := denyWordRE.FindString(code); m != "" {
		return strings.ToLower(m)
	}
	return ""
}
