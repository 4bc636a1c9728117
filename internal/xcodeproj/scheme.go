package xcodeproj

import (
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// ErrMissingScheme is returned when a shared scheme file does not exist.
var ErrMissingScheme = errors.New("missing scheme")

type schemeAction struct {
	BuildConfiguration string `xml:"buildConfiguration,attr"`
}

type schemeDocument struct {
	XMLName       xml.Name       `xml:"Scheme"`
	BuildAction   []schemeAction `xml:"BuildAction"`
	TestAction    []schemeAction `xml:"TestAction"`
	LaunchAction  []schemeAction `xml:"LaunchAction"`
	ProfileAction []schemeAction `xml:"ProfileAction"`
	AnalyzeAction []schemeAction `xml:"AnalyzeAction"`
}

// SchemePath returns the location of a shared scheme inside a project.
func SchemePath(projectPath, scheme string) string {
	return filepath.Join(projectPath, "xcshareddata", "xcschemes", scheme+".xcscheme")
}

// SchemeConfigurations returns the build configurations a shared scheme uses
// across its build, test, launch, profile and analyze actions, without
// duplicates.
func SchemeConfigurations(projectPath, scheme string) ([]string, error) {
	path := SchemePath(projectPath, scheme)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithHint(
				errors.Wrapf(ErrMissingScheme, "scheme %s (expected %s)", scheme, path),
				"mark the scheme as shared in Xcode so it is committed under xcshareddata",
			)
		}
		return nil, errors.Wrapf(err, "reading scheme %s", scheme)
	}

	var doc schemeDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing scheme %s", path)
	}

	var configs []string
	seen := make(map[string]bool)
	for _, actions := range [][]schemeAction{doc.BuildAction, doc.TestAction, doc.LaunchAction, doc.ProfileAction, doc.AnalyzeAction} {
		for _, a := range actions {
			if a.BuildConfiguration != "" && !seen[a.BuildConfiguration] {
				seen[a.BuildConfiguration] = true
				configs = append(configs, a.BuildConfiguration)
			}
		}
	}
	if len(configs) == 0 {
		return nil, errors.Wrapf(ErrMissingConfiguration, "scheme %s of %s uses no build configuration", scheme, projectPath)
	}
	return configs, nil
}
