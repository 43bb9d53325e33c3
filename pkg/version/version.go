package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Version represents the current version of the evaluator.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	Build    string
}

// RevalVersion is the current version of the evaluator.
var RevalVersion = Version{
	Major: "0", Minor: "3", Patch: "0", Metadata: "",
	Build: "$Id$",
}

func (v Version) String() string {
	fixBuild(&v)
	ver := fmt.Sprintf("Version: %s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return fmt.Sprintf("%s\nBuild: %s", ver, v.Build)
}

// BuildInfo returns the Go version the binary was built with followed by
// the libraries it links, one per line.
func BuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return runtime.Version() + "\nnot built in module mode"
	}
	return formatBuildInfo(runtime.Version(), info)
}

func formatBuildInfo(goVersion string, info *debug.BuildInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n mod\t%s\t%s\n", goVersion, info.Main.Path, info.Main.Version)
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			dep = dep.Replace
		}
		fmt.Fprintf(&sb, " dep\t%s\t%s\n", dep.Path, dep.Version)
	}
	return sb.String()
}

func fixBuild(v *Version) {
	// Only replace the unexpanded git ident.
	if !strings.HasPrefix(v.Build, "$Id$") {
		return
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			v.Build = setting.Value
			return
		}
	}
}
