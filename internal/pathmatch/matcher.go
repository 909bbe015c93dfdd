// Package pathmatch provides glob-style path pattern matching used by
// every policy stage to test inclusion and exclusion. Patterns support
// three tokens: `?` matches a single character, `*` matches within one
// path segment, and `**` matches zero or more segments.
package pathmatch

import (
	"regexp"
	"strings"
	"sync"
)

// patternCacheMaxSize is the maximum number of compiled patterns kept.
const patternCacheMaxSize = 1000

// patternCacheEntry holds a compiled pattern and its access order for
// LRU eviction.
type patternCacheEntry struct {
	regex       *regexp.Regexp
	accessOrder int64
}

var (
	patternCache   = make(map[string]*patternCacheEntry)
	patternCacheMu sync.Mutex
	accessCounter  int64
)

// Match reports whether path matches the glob pattern. Invalid patterns
// never match.
func Match(pattern, path string) bool {
	re, err := compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

// MatchAny reports whether path matches any of the given patterns.
func MatchAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if Match(p, path) {
			return true
		}
	}
	return false
}

// compile returns the compiled regex for a glob pattern, using a bounded
// LRU cache so hot patterns are compiled once.
func compile(pattern string) (*regexp.Regexp, error) {
	patternCacheMu.Lock()
	if entry, ok := patternCache[pattern]; ok {
		accessCounter++
		entry.accessOrder = accessCounter
		patternCacheMu.Unlock()
		return entry.regex, nil
	}
	patternCacheMu.Unlock()

	re, err := regexp.Compile(globToRegex(pattern))
	if err != nil {
		return nil, err
	}

	patternCacheMu.Lock()
	defer patternCacheMu.Unlock()

	if entry, ok := patternCache[pattern]; ok {
		accessCounter++
		entry.accessOrder = accessCounter
		return entry.regex, nil
	}

	if len(patternCache) >= patternCacheMaxSize {
		evictLRU()
	}

	accessCounter++
	patternCache[pattern] = &patternCacheEntry{
		regex:       re,
		accessOrder: accessCounter,
	}

	return re, nil
}

// evictLRU removes the least recently used entry.
// Must be called with patternCacheMu held.
func evictLRU() {
	var lruKey string
	var lruOrder int64 = -1

	for key, entry := range patternCache {
		if lruOrder == -1 || entry.accessOrder < lruOrder {
			lruOrder = entry.accessOrder
			lruKey = key
		}
	}

	if lruKey != "" {
		delete(patternCache, lruKey)
	}
}

// globToRegex converts a glob pattern to an anchored regex pattern.
// `/**` at a segment boundary matches zero or more trailing segments,
// so `/v1/orders/**` matches both `/v1/orders` and `/v1/orders/5/items`.
func globToRegex(pattern string) string {
	var result strings.Builder
	result.WriteString("^")

	i := 0
	for i < len(pattern) {
		switch {
		case strings.HasPrefix(pattern[i:], "/**"):
			result.WriteString("(/.*)?")
			i += 3
		case strings.HasPrefix(pattern[i:], "**"):
			result.WriteString(".*")
			i += 2
		case pattern[i] == '*':
			result.WriteString("[^/]*")
			i++
		case pattern[i] == '?':
			result.WriteString("[^/]")
			i++
		default:
			result.WriteString(regexp.QuoteMeta(string(pattern[i])))
			i++
		}
	}

	result.WriteString("$")
	return result.String()
}
