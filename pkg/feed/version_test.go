package feed

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.10", "1.9", 1},
		{"2.0.0", "1.99.99", 1},
		{"1.2.3.4", "1.2.3.10", -1},
		{"1.0-pre1", "1.0", -1},
		{"1.0-rc1", "1.0-pre2", 1},
		{"1.0-post1", "1.0", 1},
		{"", "0.1", -1},
		{"0.1", "", 1},
	}
	for _, tt := range tests {
		if got := Compare(ParseVersion(tt.a), ParseVersion(tt.b)); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVersionEqualIsTextual(t *testing.T) {
	a, b := ParseVersion("1.0"), ParseVersion("1.0.0")
	if a.Equal(b) {
		t.Error("1.0 and 1.0.0 must be distinct versions for conflict detection")
	}
	if !a.Equal(ParseVersion(" 1.0 ")) {
		t.Error("surrounding whitespace should be ignored")
	}
}
