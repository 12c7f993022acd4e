package grammar

import (
	"path"
	"strings"
)

// hasWildcard reports whether a token contains a glob metacharacter.
func hasWildcard(tok string) bool {
	return strings.ContainsAny(tok, "*?[")
}

// ExpandWildcards resolves glob tokens ('*', '?', '[...]' classes) against a
// fixed vocabulary, case-sensitively. Non-wildcard tokens pass through
// unchanged whether or not they appear in the vocabulary. The result is
// deduplicated, preserving first-seen order; wildcard matches follow
// vocabulary order.
func ExpandWildcards(tokens []string, vocabulary []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, tok := range tokens {
		if !hasWildcard(tok) {
			add(tok)
			continue
		}
		// A pattern with no matches contributes nothing.
		for _, entry := range vocabulary {
			ok, err := path.Match(tok, entry)
			if err != nil {
				return nil, errf(tok, "invalid wildcard pattern")
			}
			if ok {
				add(entry)
			}
		}
	}
	return out, nil
}
