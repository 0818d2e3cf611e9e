package feed

import (
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Version is an implementation version.
//
// Versions that parse as semantic versions are ordered with
// github.com/Masterminds/semver/v3. Everything else (four-part versions,
// 0install "-pre"/"-post" modifiers) falls back to a dotted numeric
// comparison. Equality for conflict detection is always on the raw string.
type Version struct {
	raw string
	sv  *mm.Version
}

// ParseVersion wraps raw. It never fails: unparsable versions are still
// ordered by [Compare].
func ParseVersion(raw string) Version {
	raw = strings.TrimSpace(raw)
	v := Version{raw: raw}
	if sv, err := mm.NewVersion(raw); err == nil {
		v.sv = sv
	}
	return v
}

// String returns the version as written in the feed.
func (v Version) String() string { return v.raw }

// IsZero reports whether no version was given.
func (v Version) IsZero() bool { return v.raw == "" }

// Equal reports whether a and b are the same version string.
func (v Version) Equal(o Version) bool { return v.raw == o.raw }

// Compare compares a and b, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
//
// The zero Version sorts before every other version.
func Compare(a, b Version) int {
	switch {
	case a.raw == b.raw:
		return 0
	case a.IsZero():
		return -1
	case b.IsZero():
		return 1
	case a.sv != nil && b.sv != nil && a.sv.Prerelease() == "" && b.sv.Prerelease() == "":
		return a.sv.Compare(b.sv)
	}
	return compareDotted(a.raw, b.raw)
}

// modifierRank orders 0install version modifiers: pre < rc < (none) < post.
var modifierRank = map[string]int{"pre": -2, "rc": -1, "": 0, "post": 1}

func compareDotted(a, b string) int {
	as, bs := strings.Split(a, "-"), strings.Split(b, "-")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var x, y string
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		if c := compareSegment(x, y); c != 0 {
			return c
		}
	}
	return 0
}

// compareSegment compares one "-"-separated part such as "1.2.3" or "pre4".
func compareSegment(a, b string) int {
	am, an := splitModifier(a)
	bm, bn := splitModifier(b)
	if am != bm {
		return cmpInt(modifierRank[am], modifierRank[bm])
	}
	ap, bp := strings.Split(an, "."), strings.Split(bn, ".")
	for i := 0; i < len(ap) || i < len(bp); i++ {
		if i >= len(ap) {
			return -1
		}
		if i >= len(bp) {
			return 1
		}
		x, errX := strconv.Atoi(ap[i])
		y, errY := strconv.Atoi(bp[i])
		if errX != nil || errY != nil {
			if c := strings.Compare(ap[i], bp[i]); c != 0 {
				return c
			}
			continue
		}
		if c := cmpInt(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func splitModifier(s string) (modifier, rest string) {
	for _, m := range []string{"post", "pre", "rc"} {
		if strings.HasPrefix(s, m) {
			return m, s[len(m):]
		}
	}
	return "", s
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
