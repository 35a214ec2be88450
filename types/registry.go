package types

import (
	"fmt"
	"strings"
)

// PackageURL returns the public registry page of a package, or of one version of it.
func PackageURL(eco Ecosystem, name, version string) string {
	var u string
	switch eco {
	case Npm:
		u = fmt.Sprintf("https://www.npmjs.com/package/%s", name)
		if version != "" {
			return u + "/v/" + version
		}
	case Maven:
		// groupId:artifactId
		u = fmt.Sprintf("https://mvnrepository.com/artifact/%s", strings.Replace(name, ":", "/", 1))
		if version != "" {
			return u + "/" + version
		}
	case Nuget:
		u = fmt.Sprintf("https://www.nuget.org/packages/%s", name)
		if version != "" {
			return u + "/" + version
		}
	}
	return u
}
