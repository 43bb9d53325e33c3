package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestVersionString(t *testing.T) {
	v := Version{Major: "1", Minor: "2", Patch: "3", Metadata: "dev", Build: "abc"}
	if got, want := v.String(), "Version: 1.2.3-dev\nBuild: abc"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if !strings.HasPrefix(RevalVersion.String(), "Version: 0.3.0\nBuild: ") {
		t.Fatalf("unexpected version %q", RevalVersion.String())
	}
}

func TestFormatBuildInfo(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/go-delve/remoteeval", Version: "(devel)"},
		Deps: []*debug.Module{
			{Path: "github.com/sirupsen/logrus", Version: "v1.6.0"},
			{Path: "github.com/google/go-dap", Version: "v0.9.1", Replace: &debug.Module{Path: "example.com/go-dap", Version: "v0.9.2"}},
		},
	}
	want := "go1.21.0\n" +
		" mod\tgithub.com/go-delve/remoteeval\t(devel)\n" +
		" dep\tgithub.com/sirupsen/logrus\tv1.6.0\n" +
		" dep\texample.com/go-dap\tv0.9.2\n"
	if got := formatBuildInfo("go1.21.0", info); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
