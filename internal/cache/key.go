package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
)

// Key derives the cache key for a request under the given rule. The
// key always includes the path; the query string and configured header
// values are appended only when the rule varies by them. The query is
// canonicalized (sorted by parameter name) so equivalent URLs map to
// the same key, and header values follow the rule's configured order.
func Key(rule *Rule, path string, query url.Values, headers http.Header) string {
	var b strings.Builder
	b.WriteString(path)

	if rule.VaryByQueryParams && len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}

	if rule.VaryByHeaders {
		for _, name := range rule.VaryHeaders {
			b.WriteByte('|')
			b.WriteString(strings.ToLower(name))
			b.WriteByte('=')
			b.WriteString(headers.Get(name))
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
