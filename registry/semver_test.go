package registry

import "testing"

func TestCompareSemver(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.1.0", "1.0.9", 1},
		{"2.0.0", "1.9.9", 1},
		{"1.0.0-rc.1", "1.0.0", -1},
		{"1.0.0", "1.0.0-rc.1", 1},
	}
	for _, c := range cases {
		if got := compareSemver(c.a, c.b); got != c.want {
			t.Errorf("compareSemver(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

var testVersions = []string{"1.0.0", "1.2.0", "1.2.5", "1.9.0", "2.0.0", "2.1.0-beta.1"}

func TestMatchVersionCaret(t *testing.T) {
	if got := matchVersion(testVersions, "^1.2.0"); got != "1.9.0" {
		t.Errorf("got %q", got)
	}
}

func TestMatchVersionCaretZeroMajor(t *testing.T) {
	versions := []string{"0.1.0", "0.1.9", "0.2.0"}
	if got := matchVersion(versions, "^0.1.0"); got != "0.1.9" {
		t.Errorf("got %q", got)
	}
}

func TestMatchVersionTilde(t *testing.T) {
	if got := matchVersion(testVersions, "~1.2.0"); got != "1.2.5" {
		t.Errorf("got %q", got)
	}
}

func TestMatchVersionXRange(t *testing.T) {
	if got := matchVersion(testVersions, "1.2.x"); got != "1.2.5" {
		t.Errorf("got %q", got)
	}
}

func TestMatchVersionHyphenRange(t *testing.T) {
	if got := matchVersion(testVersions, "1.0.0 - 1.2.5"); got != "1.2.5" {
		t.Errorf("got %q", got)
	}
}

func TestMatchVersionOrRange(t *testing.T) {
	if got := matchVersion(testVersions, "1.0.0 || 2.0.0"); got != "2.0.0" {
		t.Errorf("got %q", got)
	}
}

func TestMatchVersionComparisonOperators(t *testing.T) {
	if got := matchVersion(testVersions, ">=1.2.0"); got != "2.0.0" {
		t.Errorf(">=1.2.0: got %q", got)
	}
	if got := matchVersion(testVersions, "<1.2.0"); got != "1.0.0" {
		t.Errorf("<1.2.0: got %q", got)
	}
}

func TestMatchVersionExact(t *testing.T) {
	if got := matchVersion(testVersions, "1.2.5"); got != "1.2.5" {
		t.Errorf("got %q", got)
	}
}

func TestMatchVersionLatestSkipsPrerelease(t *testing.T) {
	if got := matchVersion(testVersions, "latest"); got != "2.0.0" {
		t.Errorf("expected latest to skip the prerelease, got %q", got)
	}
}

func TestMatchVersionNoMatch(t *testing.T) {
	if got := matchVersion(testVersions, "^99.0.0"); got != "" {
		t.Errorf("expected no match, got %q", got)
	}
}
