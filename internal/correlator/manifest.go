package correlator

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dshills/buildlens/internal/tools"
)

var (
	ErrNoManifest      = errors.New("no build manifest")
	ErrInvalidManifest = errors.New("invalid build manifest")
)

// Manifest describes how to build and check a repository.
type Manifest struct {
	// LinesAroundRelated overrides the configured tolerance when set.
	LinesAroundRelated *int         `yaml:"lines_around_related,omitempty"`
	Steps              []tools.Step `yaml:"steps"`

	// Path is the file the manifest was read from.
	Path string `yaml:"-"`
}

// ParseManifest decodes and checks a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "parsing build manifest")
	}
	if len(m.Steps) == 0 {
		return nil, errors.WithHint(
			errors.Wrap(ErrInvalidManifest, "no steps"),
			"list at least one step with a tool and an action",
		)
	}
	for i, s := range m.Steps {
		if s.Tool == "" || s.Action == "" {
			return nil, errors.Wrapf(ErrInvalidManifest, "step %d needs a tool and an action", i+1)
		}
	}
	if m.LinesAroundRelated != nil && *m.LinesAroundRelated < 0 {
		return nil, errors.Wrapf(ErrInvalidManifest, "lines_around_related is negative")
	}
	return &m, nil
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNoManifest, "%s", path)
		}
		return nil, errors.Wrapf(err, "reading build manifest %s", path)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	m.Path = path
	return m, nil
}

// ManifestCandidates lists where the manifest of a repository is looked up,
// most specific first.
func ManifestCandidates(dir, host, owner, repo string) []string {
	return []string{
		filepath.Join(dir, host, owner, repo+".yml"),
		filepath.Join(dir, host, "fallback.yml"),
		filepath.Join(dir, "fallback.yml"),
	}
}

// FindManifest loads the first manifest that exists for a repository.
func FindManifest(dir, host, owner, repo string) (*Manifest, error) {
	candidates := ManifestCandidates(dir, host, owner, repo)
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadManifest(path)
	}
	return nil, errors.WithHint(
		errors.Wrapf(ErrNoManifest, "for %s/%s/%s in %s", host, owner, repo, dir),
		"create "+candidates[0]+" or pass --manifest",
	)
}
