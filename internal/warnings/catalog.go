package warnings

import (
	_ "embed"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

//go:embed settings.yaml
var defaultCatalogYAML []byte

// Value is a symbolic build setting value.
type Value string

const (
	ValueYes           Value = "YES"
	ValueNo            Value = "NO"
	ValueYesError      Value = "YES_ERROR"
	ValueYesAggressive Value = "YES_AGGRESSIVE"
)

// valueOrder is the order used when searching a setting for a flag.
var valueOrder = []Value{ValueYes, ValueYesError, ValueYesAggressive, ValueNo}

// Free-form settings holding arbitrary compiler flags.
const (
	WarningCFlags = "WARNING_CFLAGS"
	OtherCFlags   = "OTHER_CFLAGS"
)

var (
	ErrUnknownWarning = errors.New("unknown warning")
	ErrInvalidValue   = errors.New("invalid setting value")
	ErrBrokenDefault  = errors.New("broken setting default")
	ErrUnknownSetting = errors.New("unknown setting")
)

// Setting describes one build setting.
type Setting struct {
	Description string           `yaml:"description"`
	Default     *string          `yaml:"default"`
	DefaultFrom string           `yaml:"default_from"`
	Flags       map[Value]string `yaml:"flags"`
}

// Catalog is the set of known settings and warning flag groups. It is
// read-only once loaded.
type Catalog struct {
	Groups   map[string][]string `yaml:"groups"`
	Settings map[string]Setting  `yaml:"settings"`

	names []string
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog returns the embedded catalog of Xcode warning settings.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = ParseCatalog(defaultCatalogYAML)
	})
	return defaultCatalog, defaultErr
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading setting catalog %s", path)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, errors.Wrapf(err, "setting catalog %s", path)
	}
	return c, nil
}

// ParseCatalog decodes and validates a catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "parsing setting catalog")
	}
	if c.Settings == nil {
		c.Settings = map[string]Setting{}
	}
	for _, name := range []string{WarningCFlags, OtherCFlags} {
		if _, ok := c.Settings[name]; !ok {
			empty := ""
			c.Settings[name] = Setting{Description: freeFormDescription(name), Default: &empty}
		}
	}
	for name, s := range c.Settings {
		for v, flags := range s.Flags {
			s.Flags[v] = strings.TrimSpace(flags)
		}
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func freeFormDescription(name string) string {
	if name == WarningCFlags {
		return "Other Warning Flags"
	}
	return "Other C Flags"
}

// validate checks that every setting's default chain terminates on a value
// the setting has flags for.
func (c *Catalog) validate() error {
	for _, name := range c.names {
		def, err := c.defaultValue(name)
		if err != nil {
			return err
		}
		s := c.Settings[name]
		if s.Flags == nil {
			continue
		}
		if _, ok := s.Flags[Value(def)]; !ok {
			return errors.Wrapf(ErrBrokenDefault, "default %q of %s has no flags", def, name)
		}
	}
	return nil
}

// defaultValue follows default_from references until a literal default.
func (c *Catalog) defaultValue(name string) (string, error) {
	visited := map[string]bool{}
	current := name
	for {
		if visited[current] {
			return "", errors.Wrapf(ErrBrokenDefault, "default of %s loops through %s", name, current)
		}
		visited[current] = true

		s, ok := c.Settings[current]
		if !ok {
			return "", errors.Wrapf(ErrBrokenDefault, "default of %s refers to unknown setting %s", name, current)
		}
		if s.DefaultFrom != "" {
			current = s.DefaultFrom
			continue
		}
		if s.Default == nil {
			return "", errors.Wrapf(ErrBrokenDefault, "setting %s has no default", current)
		}
		return *s.Default, nil
	}
}

// Names returns the setting names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Read returns the value of a setting: the target value, else the project
// value, else the setting default. Inherited defaults are read through the
// same layers.
func (c *Catalog) Read(name string, project, target map[string]string) (string, error) {
	visited := map[string]bool{}
	current := name
	for {
		if v, ok := target[current]; ok {
			return v, nil
		}
		if v, ok := project[current]; ok {
			return v, nil
		}
		if visited[current] {
			return "", errors.Wrapf(ErrBrokenDefault, "default of %s loops through %s", name, current)
		}
		visited[current] = true

		s, ok := c.Settings[current]
		if !ok {
			return "", errors.Wrapf(ErrUnknownSetting, "%s", current)
		}
		if s.DefaultFrom != "" {
			current = s.DefaultFrom
			continue
		}
		if s.Default == nil {
			return "", errors.Wrapf(ErrBrokenDefault, "setting %s has no default", current)
		}
		return *s.Default, nil
	}
}

// Place locates a flag in the catalog.
type Place struct {
	Setting     string
	Description string
	Value       Value
}

// FindFlag returns the first setting, in name order, whose value maps to
// exactly flag.
func (c *Catalog) FindFlag(flag string) (Place, bool) {
	for _, name := range c.names {
		s := c.Settings[name]
		for _, v := range valueOrder {
			if f, ok := s.Flags[v]; ok && f != "" && f == flag {
				return Place{Setting: name, Description: s.Description, Value: v}, true
			}
		}
	}
	return Place{}, false
}

// settingByDescription finds a setting by its Xcode display name.
func (c *Catalog) settingByDescription(desc string) (string, bool) {
	for _, name := range c.names {
		if c.Settings[name].Description == desc {
			return name, true
		}
	}
	return "", false
}
