// Package version exists solely so that we can store the version of this application
// in one location.
//
// The main.go driver-package reads it for the --version banner. The BIOS extension
// (BDOS 31) reports only the fixed emulator identity, not this version.
package version

import "fmt"

var (
	// version is populated with our release tag, via a Github Action.
	//
	// See .github/build in the source distribution for details.
	version = "unreleased"
)

// GetVersionBanner returns a banner which is suitable for printing, to show our name,
// version, and homepage link.
func GetVersionBanner() string {

	str := fmt.Sprintf("gocpm %s\n%s\n", version, "https://github.com/tjfoster/gocpm/")
	return str
}

// GetVersionString returns our version number as a string.
func GetVersionString() string {
	return version
}
