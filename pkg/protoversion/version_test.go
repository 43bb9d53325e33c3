package protoversion

import (
	"testing"
)

func parseVer(t *testing.T, verStr string) Version {
	t.Helper()
	pver, ok := Parse(verStr)
	if !ok {
		t.Fatalf("Could not parse version string <%s>", verStr)
	}
	return pver
}

func versionAfterOrEqual(t *testing.T, verStr string, ver Version) {
	t.Helper()
	pver := parseVer(t, verStr)
	if !pver.AfterOrEqual(ver) {
		t.Fatalf("Version <%s> parsed as %v not after %v", verStr, pver, ver)
	}
}

func versionEqual(t *testing.T, verStr string, ver Version) {
	t.Helper()
	pver := parseVer(t, verStr)
	if pver != ver {
		t.Fatalf("Version <%s> parsed as %v not equal to %v", verStr, pver, ver)
	}
}

func TestParseVersionStringEqual(t *testing.T) {
	versionEqual(t, "2.35", Version{2, 35})
	versionEqual(t, "v2.15", Version{2, 15})
	versionEqual(t, "3", Version{3, 0})
	versionEqual(t, "2.57.1", Version{2, 57})
	versionEqual(t, " 2.4 ", Version{2, 4})
}

func TestParseVersionStringAfterOrEqual(t *testing.T) {
	versionAfterOrEqual(t, "2.35", Version{2, 35})
	versionAfterOrEqual(t, "2.36", Version{2, 35})
	versionAfterOrEqual(t, "3.0", Version{2, 99})
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "x.1", "2.y", "-1.2", "2.-3"} {
		if _, ok := Parse(s); ok {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestFeatureGates(t *testing.T) {
	tests := []struct {
		ver                                  string
		virtual, outThis, genMethod, openGen bool
	}{
		{"2.14", false, false, false, false},
		{"2.15", false, false, false, true},
		{"2.24", false, false, true, true},
		{"2.34", false, false, true, true},
		{"2.35", false, true, true, true},
		{"2.36", false, true, true, true},
		{"2.37", true, true, true, true},
		{"3.0", true, true, true, true},
	}
	for _, tc := range tests {
		v := MustParse(tc.ver)
		if v.SupportsVirtualDispatch() != tc.virtual {
			t.Errorf("%s: virtual dispatch %v", tc.ver, !tc.virtual)
		}
		if v.SupportsReturnOutThis() != tc.outThis {
			t.Errorf("%s: return out this %v", tc.ver, !tc.outThis)
		}
		if v.SupportsGenericMethodCalls() != tc.genMethod {
			t.Errorf("%s: generic method calls %v", tc.ver, !tc.genMethod)
		}
		if v.SupportsOpenGenericTypes() != tc.openGen {
			t.Errorf("%s: open generic types %v", tc.ver, !tc.openGen)
		}
	}
	if !MustParse("2.35").AtLeast(2, 35) || MustParse("2.34").AtLeast(2, 35) {
		t.Errorf("AtLeast is wrong")
	}
}
