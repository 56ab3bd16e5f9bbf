package registry

import (
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// semVer is a parsed semantic version.
type semVer struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
}

var semverPattern = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:-(.+))?$`)

func parseSemver(version string) (*semVer, error) {
	matches := semverPattern.FindStringSubmatch(version)
	if matches == nil {
		return nil, &FetchError{Message: "invalid semver: " + version}
	}
	sv := &semVer{}
	sv.Major, _ = strconv.Atoi(matches[1])
	if matches[2] != "" {
		sv.Minor, _ = strconv.Atoi(matches[2])
	}
	if matches[3] != "" {
		sv.Patch, _ = strconv.Atoi(matches[3])
	}
	sv.Prerelease = matches[4]
	return sv, nil
}

// compareSemver returns -1, 0 or 1 as a is less than, equal to, or greater
// than b. An unparsable operand sorts lowest.
func compareSemver(a, b string) int {
	av, err := parseSemver(a)
	if err != nil {
		return -1
	}
	bv, err := parseSemver(b)
	if err != nil {
		return 1
	}
	if av.Major != bv.Major {
		return cmpInt(av.Major, bv.Major)
	}
	if av.Minor != bv.Minor {
		return cmpInt(av.Minor, bv.Minor)
	}
	if av.Patch != bv.Patch {
		return cmpInt(av.Patch, bv.Patch)
	}
	if av.Prerelease != "" && bv.Prerelease == "" {
		return -1
	}
	if av.Prerelease == "" && bv.Prerelease != "" {
		return 1
	}
	if av.Prerelease != bv.Prerelease {
		if av.Prerelease < bv.Prerelease {
			return -1
		}
		return 1
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// matchVersion picks the highest version in versions (ascending order
// assumed by callers who care, though this function re-derives order as
// needed) satisfying versionRange, per the npm range grammar: exact, tags,
// caret, tilde, comparison operators, x-ranges, hyphen ranges, space
// (intersection) and || (union) ranges.
func matchVersion(versions []string, versionRange string) string {
	versionRange = strings.TrimSpace(versionRange)

	if versionRange == "latest" || versionRange == "" || versionRange == "*" {
		sorted := sortedCopy(versions)
		for i := len(sorted) - 1; i >= 0; i-- {
			if sv, err := parseSemver(sorted[i]); err == nil && sv.Prerelease == "" {
				return sorted[i]
			}
		}
		if len(sorted) > 0 {
			return sorted[len(sorted)-1]
		}
		return ""
	}

	if strings.Contains(versionRange, "||") {
		return matchOrRange(versions, versionRange)
	}
	if base, ok := strings.CutPrefix(versionRange, "^"); ok {
		return matchCaretRange(versions, base)
	}
	if base, ok := strings.CutPrefix(versionRange, "~"); ok {
		return matchTildeRange(versions, base)
	}
	if base, ok := strings.CutPrefix(versionRange, ">="); ok {
		return highestWhere(versions, func(v string) bool { return compareSemver(v, base) >= 0 })
	}
	if base, ok := strings.CutPrefix(versionRange, ">"); ok {
		return highestWhere(versions, func(v string) bool { return compareSemver(v, base) > 0 })
	}
	if base, ok := strings.CutPrefix(versionRange, "<="); ok {
		return highestWhere(versions, func(v string) bool { return compareSemver(v, base) <= 0 })
	}
	if base, ok := strings.CutPrefix(versionRange, "<"); ok {
		return highestWhere(versions, func(v string) bool { return compareSemver(v, base) < 0 })
	}
	if exact, ok := strings.CutPrefix(versionRange, "="); ok {
		exact = strings.TrimSpace(exact)
		if slices.Contains(versions, exact) {
			return exact
		}
		return ""
	}
	if strings.ContainsAny(versionRange, "xX") {
		return matchXRange(versions, versionRange)
	}
	if strings.Contains(versionRange, " - ") {
		return matchHyphenRange(versions, versionRange)
	}
	if strings.Contains(versionRange, " ") {
		parts := strings.Fields(versionRange)
		candidates := versions
		for _, part := range parts {
			var filtered []string
			for _, v := range candidates {
				if versionSatisfies(v, part) {
					filtered = append(filtered, v)
				}
			}
			candidates = filtered
		}
		return highestOf(candidates)
	}
	if slices.Contains(versions, versionRange) {
		return versionRange
	}
	return ""
}

func sortedCopy(versions []string) []string {
	out := append([]string(nil), versions...)
	sort.Slice(out, func(i, j int) bool { return compareSemver(out[i], out[j]) < 0 })
	return out
}

func highestOf(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	return sortedCopy(versions)[len(versions)-1]
}

func highestWhere(versions []string, pred func(string) bool) string {
	var matches []string
	for _, v := range versions {
		if sv, err := parseSemver(v); err != nil || sv.Prerelease != "" {
			continue
		}
		if pred(v) {
			matches = append(matches, v)
		}
	}
	return highestOf(matches)
}

func matchCaretRange(versions []string, baseVersion string) string {
	base, err := parseSemver(baseVersion)
	if err != nil {
		return ""
	}
	return highestWhere(versions, func(v string) bool {
		sv, err := parseSemver(v)
		if err != nil || sv.Prerelease != "" {
			return false
		}
		switch {
		case base.Major == 0 && base.Minor == 0:
			return sv.Major == 0 && sv.Minor == 0 && sv.Patch >= base.Patch
		case base.Major == 0:
			return sv.Major == 0 && sv.Minor == base.Minor && sv.Patch >= base.Patch
		default:
			return sv.Major == base.Major && compareSemver(v, baseVersion) >= 0
		}
	})
}

func matchTildeRange(versions []string, baseVersion string) string {
	base, err := parseSemver(baseVersion)
	if err != nil {
		return ""
	}
	return highestWhere(versions, func(v string) bool {
		sv, err := parseSemver(v)
		return err == nil && sv.Prerelease == "" && sv.Major == base.Major && sv.Minor == base.Minor && sv.Patch >= base.Patch
	})
}

func matchXRange(versions []string, pattern string) string {
	parts := strings.Split(strings.ToLower(pattern), ".")
	return highestWhere(versions, func(v string) bool {
		sv, err := parseSemver(v)
		if err != nil {
			return false
		}
		for i, part := range parts {
			if part == "x" || part == "*" {
				continue
			}
			val, err := strconv.Atoi(part)
			if err != nil {
				return false
			}
			switch i {
			case 0:
				if sv.Major != val {
					return false
				}
			case 1:
				if sv.Minor != val {
					return false
				}
			case 2:
				if sv.Patch != val {
					return false
				}
			}
		}
		return true
	})
}

func matchHyphenRange(versions []string, rangeStr string) string {
	parts := strings.Split(rangeStr, " - ")
	if len(parts) != 2 {
		return ""
	}
	lower := strings.TrimSpace(parts[0])
	upper := strings.TrimSpace(parts[1])
	return highestWhere(versions, func(v string) bool {
		return compareSemver(v, lower) >= 0 && compareSemver(v, upper) <= 0
	})
}

func matchOrRange(versions []string, rangeStr string) string {
	var allMatches []string
	for _, part := range strings.Split(rangeStr, "||") {
		if m := matchVersion(versions, strings.TrimSpace(part)); m != "" {
			allMatches = append(allMatches, m)
		}
	}
	return highestOf(allMatches)
}

// StripRangeOperators reduces a version range to a literal version string:
// it strips a leading comparison/caret/tilde operator and keeps only the
// first alternative of an "||" union or a space-separated range. This is
// the trivial fallback used when the real registry lookup a range would
// normally drive (§4.C's fetchManifest) can't be reached at all, so the
// orchestrator still has some stand-in version to mount.
func StripRangeOperators(rng string) string {
	rng = strings.TrimSpace(rng)
	if rng == "" || rng == "latest" || rng == "*" {
		return rng
	}
	if alt, _, ok := strings.Cut(rng, "||"); ok {
		rng = strings.TrimSpace(alt)
	}
	for _, op := range []string{">=", "<=", "^", "~", ">", "<", "="} {
		if rest, ok := strings.CutPrefix(rng, op); ok {
			rng = strings.TrimSpace(rest)
			break
		}
	}
	if field, _, ok := strings.Cut(rng, " "); ok {
		rng = field
	}
	return rng
}

func versionSatisfies(version, constraint string) bool {
	constraint = strings.TrimSpace(constraint)
	switch {
	case constraint == "" || constraint == "*":
		return true
	}
	if base, ok := strings.CutPrefix(constraint, ">="); ok {
		return compareSemver(version, strings.TrimSpace(base)) >= 0
	}
	if base, ok := strings.CutPrefix(constraint, ">"); ok {
		return compareSemver(version, strings.TrimSpace(base)) > 0
	}
	if base, ok := strings.CutPrefix(constraint, "<="); ok {
		return compareSemver(version, strings.TrimSpace(base)) <= 0
	}
	if base, ok := strings.CutPrefix(constraint, "<"); ok {
		return compareSemver(version, strings.TrimSpace(base)) < 0
	}
	if base, ok := strings.CutPrefix(constraint, "^"); ok {
		return matchCaretRange([]string{version}, base) != ""
	}
	if base, ok := strings.CutPrefix(constraint, "~"); ok {
		return matchTildeRange([]string{version}, base) != ""
	}
	if base, ok := strings.CutPrefix(constraint, "="); ok {
		return version == strings.TrimSpace(base)
	}
	return version == constraint
}
