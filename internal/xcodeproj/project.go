package xcodeproj

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"howett.net/plist"
)

var (
	// ErrInvalidProject is returned when project.pbxproj cannot be read.
	ErrInvalidProject = errors.New("invalid project file")
	// ErrMissingConfiguration is returned when a build configuration is
	// referenced but not defined.
	ErrMissingConfiguration = errors.New("missing build configuration")
)

// Configuration is a named set of build settings.
type Configuration struct {
	Name     string
	Settings map[string]string
}

// Target is a buildable product with its own configurations.
type Target struct {
	Name           string
	Configurations []Configuration
}

// Project is the build configuration model of one .xcodeproj bundle.
type Project struct {
	Path           string
	Configurations []Configuration
	Targets        []Target
}

// Load reads <path>/project.pbxproj.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(filepath.Join(path, "project.pbxproj"))
	if err != nil {
		return nil, errors.Wrapf(err, "reading project %s", path)
	}
	return Parse(path, data)
}

// Parse builds the model from the contents of a project.pbxproj file.
func Parse(path string, data []byte) (*Project, error) {
	var doc struct {
		Objects    map[string]map[string]interface{} `plist:"objects"`
		RootObject string                            `plist:"rootObject"`
	}
	if _, err := plist.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(ErrInvalidProject, "%s: %v", path, err)
	}

	root, ok := doc.Objects[doc.RootObject]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidProject, "%s: root object %q not found", path, doc.RootObject)
	}

	p := &Project{Path: path}
	var err error
	p.Configurations, err = configurationList(doc.Objects, stringValue(root["buildConfigurationList"]))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: project configurations", path)
	}

	for _, id := range stringList(root["targets"]) {
		obj, ok := doc.Objects[id]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidProject, "%s: target %q not found", path, id)
		}
		t := Target{Name: stringValue(obj["name"])}
		t.Configurations, err = configurationList(doc.Objects, stringValue(obj["buildConfigurationList"]))
		if err != nil {
			return nil, errors.Wrapf(err, "%s: target %s", path, t.Name)
		}
		p.Targets = append(p.Targets, t)
	}
	return p, nil
}

func configurationList(objects map[string]map[string]interface{}, id string) ([]Configuration, error) {
	list, ok := objects[id]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidProject, "configuration list %q not found", id)
	}
	var configs []Configuration
	for _, cid := range stringList(list["buildConfigurations"]) {
		obj, ok := objects[cid]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidProject, "build configuration %q not found", cid)
		}
		c := Configuration{Name: stringValue(obj["name"]), Settings: map[string]string{}}
		if settings, ok := obj["buildSettings"].(map[string]interface{}); ok {
			for k, v := range settings {
				c.Settings[k] = settingValue(v)
			}
		}
		configs = append(configs, c)
	}
	return configs, nil
}

// settingValue flattens list-valued settings into a space-separated string.
func settingValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, settingValue(item))
		}
		return strings.Join(parts, " ")
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func stringList(v interface{}) []string {
	items, _ := v.([]interface{})
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ConfigurationNames returns the project-level configuration names, sorted.
func (p *Project) ConfigurationNames() []string {
	names := make([]string, 0, len(p.Configurations))
	for _, c := range p.Configurations {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Configuration returns the project-level configuration with the given name.
func (p *Project) Configuration(name string) (Configuration, bool) {
	return findConfiguration(p.Configurations, name)
}

// Configuration returns the target configuration with the given name.
func (t Target) Configuration(name string) (Configuration, bool) {
	return findConfiguration(t.Configurations, name)
}

func findConfiguration(configs []Configuration, name string) (Configuration, bool) {
	for _, c := range configs {
		if c.Name == name {
			return c, true
		}
	}
	return Configuration{}, false
}
