package trust

import "testing"

func TestPathMatches(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"a/*", "a/file.bin", true},
		{"a/*", "a/b/c", true},
		{"a/*", "b/file.bin", false},
		{"*", "anything/at/all", true},
		{"targets/*.json", "targets/foo.json", true},
		{"targets/*.json", "targets/sub/foo.json", false},
		{"exact/path", "exact/path", true},
		{"exact/path", "exact/path/extra", false},
	}
	for _, c := range cases {
		if got := pathMatches(c.pattern, c.path); got != c.want {
			t.Errorf("pathMatches(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestAnyPathMatchesEmptyAuthorizesNothing(t *testing.T) {
	if anyPathMatches(nil, "a") {
		t.Fatal("empty pattern list must not authorize any path")
	}
}
