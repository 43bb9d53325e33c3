// Package protoversion describes the version of the remote debugger
// protocol spoken by an agent and the capabilities that depend on it.
package protoversion

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the major.minor version of the debugger wire protocol
// implemented by the remote runtime.
type Version struct {
	Major int
	Minor int
}

var (
	// Oldest protocol version that can resolve members of types that
	// still have open generic parameters.
	MinOpenGenericTypes = Version{2, 15}
	// Oldest protocol version that can call constructed generic methods.
	MinGenericMethodCalls = Version{2, 24}
	// Oldest protocol version that can return the mutated receiver of a
	// call made on a value type.
	MinReturnOutThis = Version{2, 35}
	// Oldest protocol version that resolves virtual calls itself.
	MinVirtualDispatch = Version{2, 37}
)

// Parse parses a version string of the form "major.minor". A missing
// minor component is treated as zero.
func Parse(ver string) (Version, bool) {
	ver = strings.TrimPrefix(strings.TrimSpace(ver), "v")
	v := strings.SplitN(ver, ".", 3)
	var r Version
	var err error
	switch len(v) {
	case 1:
		r.Major, err = strconv.Atoi(v[0])
	case 2, 3:
		r.Major, err = strconv.Atoi(v[0])
		if err != nil {
			return Version{}, false
		}
		r.Minor, err = strconv.Atoi(v[1])
	}
	if err != nil || r.Major < 0 || r.Minor < 0 {
		return Version{}, false
	}
	return r, true
}

// MustParse is like Parse but panics if ver can not be parsed.
func MustParse(ver string) Version {
	r, ok := Parse(ver)
	if !ok {
		panic(fmt.Errorf("invalid protocol version %q", ver))
	}
	return r
}

// AtLeast returns whether the version is major.minor or later.
func (v Version) AtLeast(major, minor int) bool {
	return v.AfterOrEqual(Version{major, minor})
}

// AfterOrEqual returns whether one Version is after or equal to the other.
func (v Version) AfterOrEqual(b Version) bool {
	if v.Major != b.Major {
		return v.Major > b.Major
	}
	return v.Minor >= b.Minor
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// SupportsVirtualDispatch reports whether the protocol performs virtual
// dispatch of invoked methods natively.
func (v Version) SupportsVirtualDispatch() bool {
	return v.AfterOrEqual(MinVirtualDispatch)
}

// SupportsReturnOutThis reports whether the protocol can return the
// post-call state of a value type receiver.
func (v Version) SupportsReturnOutThis() bool {
	return v.AfterOrEqual(MinReturnOutThis)
}

// SupportsGenericMethodCalls reports whether constructed generic methods
// can be invoked.
func (v Version) SupportsGenericMethodCalls() bool {
	return v.AfterOrEqual(MinGenericMethodCalls)
}

// SupportsOpenGenericTypes reports whether members of types containing
// open generic parameters can be accessed.
func (v Version) SupportsOpenGenericTypes() bool {
	return v.AfterOrEqual(MinOpenGenericTypes)
}
