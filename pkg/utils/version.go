// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import "fmt"

var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// VersionString formats the build metadata for "askstream version".
func VersionString() string {
	return fmt.Sprintf("askstream %s (%s, built %s)", Version, Sha, Buildtime)
}
