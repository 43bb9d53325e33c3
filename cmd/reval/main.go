package main

import (
	"os"

	"github.com/go-delve/remoteeval/cmd/reval/cmds"
	"github.com/go-delve/remoteeval/pkg/version"
	"github.com/sirupsen/logrus"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.RevalVersion.Build = Build
	}
	if err := cmds.New().Execute(); err != nil {
		logrus.WithField("layer", "reval").Error(err)
		os.Exit(1)
	}
}
