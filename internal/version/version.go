// Package version holds the build version, overridden with -ldflags at release time.
package version

import "runtime"

var Version = "dev"

// String is the line printed by "dtadmin version".
func String() string {
	return "dtadmin " + Version + " (" + runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
