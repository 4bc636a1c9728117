package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// LocalFileName is the per-repository configuration file.
const LocalFileName = ".buildlens.yml"

// Local is the configuration a repository carries for itself.
type Local struct {
	XcodeVersion       string `yaml:"xcode_version,omitempty"`
	LinesAroundRelated int    `yaml:"lines_around_related,omitempty"`
}

// LoadLocal reads .buildlens.yml from the root of a source directory. A
// missing file yields a zero Local.
func LoadLocal(sourceDir string) (Local, error) {
	path := filepath.Join(sourceDir, LocalFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Local{}, nil
		}
		return Local{}, errors.Wrapf(err, "reading %s", path)
	}
	var local Local
	if err := yaml.Unmarshal(data, &local); err != nil {
		return Local{}, errors.Wrapf(err, "parsing %s", path)
	}
	return local, nil
}
