// Package version exposes the build version of the payagent binary.
package version

import "runtime/debug"

// Get returns the module version embedded at build time, or a
// placeholder when built outside of module mode.
func Get() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(unknown version)"
}
