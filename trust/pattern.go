package trust

import "strings"

// pathMatches reports whether targetPath is authorized by pattern:
// '*' matches any run of characters not including '/'; a
// pattern ending in '/' or '*' additionally matches everything below (or
// following) that prefix, crossing '/' boundaries the interior wildcard
// does not.
func pathMatches(pattern, targetPath string) bool {
	if pattern == targetPath {
		return true
	}
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(targetPath, pattern)
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		if strings.HasPrefix(targetPath, prefix) {
			return true
		}
	}
	return globMatch(pattern, targetPath)
}

// anyPathMatches reports whether targetPath matches at least one pattern.
// An empty pattern list authorizes nothing.
func anyPathMatches(patterns []string, targetPath string) bool {
	for _, p := range patterns {
		if pathMatches(p, targetPath) {
			return true
		}
	}
	return false
}

// globMatch matches pattern against target segment-by-segment, with '*'
// standing for any run of characters within a single '/'-delimited
// segment. Segment counts must agree; trailing-prefix patterns are
// handled by pathMatches before this is consulted.
func globMatch(pattern, target string) bool {
	pSegs := strings.Split(pattern, "/")
	tSegs := strings.Split(target, "/")

	for len(pSegs) > 0 && len(tSegs) > 0 {
		if !segmentMatch(pSegs[0], tSegs[0]) {
			return false
		}
		pSegs = pSegs[1:]
		tSegs = tSegs[1:]
	}
	if len(pSegs) == 0 && len(tSegs) == 0 {
		return true
	}
	return false
}

func segmentMatch(pattern, segment string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == segment
	}
	if !strings.HasPrefix(segment, parts[0]) {
		return false
	}
	rest := segment[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(rest, part)
		if i < 0 {
			return false
		}
		rest = rest[i+len(part):]
	}
	return strings.HasSuffix(rest, parts[len(parts)-1])
}
