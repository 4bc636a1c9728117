package tools

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dshills/buildlens/internal/buildlog"
	"github.com/dshills/buildlens/internal/config"
	"github.com/dshills/buildlens/internal/diffindex"
	"github.com/dshills/buildlens/internal/issue"
	"github.com/dshills/buildlens/internal/warnings"
)

var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrUnknownAction = errors.New("unknown action")
	ErrInvalidStep   = errors.New("invalid step")
	// ErrNoDiff is returned by actions that inspect the change when the run
	// has no diff.
	ErrNoDiff = errors.New("action needs the change's diff")
)

// Capability is a tool that can run manifest steps.
type Capability interface {
	Name() string
	Run(ctx context.Context, env *Env, step Step) error
}

// Step is one entry of a build manifest.
type Step struct {
	Tool         string   `yaml:"tool"`
	Action       string   `yaml:"action"`
	Project      string   `yaml:"project,omitempty"`
	Scheme       string   `yaml:"scheme,omitempty"`
	Schemes      []string `yaml:"schemes,omitempty"`
	Destinations []string `yaml:"destinations,omitempty"`
	Warnings     WantList `yaml:"warnings,omitempty"`
	XcodeVersion string   `yaml:"xcode_version,omitempty"`
	// UnlessError skips the step once a fatal issue has been collected.
	UnlessError bool `yaml:"unless_error,omitempty"`
}

func (s Step) String() string {
	if s.Project != "" {
		return s.Tool + " " + s.Action + " " + s.Project
	}
	return s.Tool + " " + s.Action
}

// WantList is a warning requirement written either as an ordered mapping of
// names to values or as a list of names. List entries may carry a value as
// name=value.
type WantList []warnings.Want

func (w *WantList) UnmarshalYAML(node *yaml.Node) error {
	var out WantList
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return errors.Wrapf(ErrInvalidStep, "line %d: value of warning %s must be a scalar", v.Line, k.Value)
			}
			out = append(out, warnings.Want{Name: k.Value, Value: v.Value})
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				name, value, _ := strings.Cut(item.Value, "=")
				out = append(out, warnings.Want{Name: name, Value: value})
			case yaml.MappingNode:
				var nested WantList
				if err := nested.UnmarshalYAML(item); err != nil {
					return err
				}
				out = append(out, nested...)
			default:
				return errors.Wrapf(ErrInvalidStep, "line %d: unexpected warning entry", item.Line)
			}
		}
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			break
		}
		name, value, _ := strings.Cut(node.Value, "=")
		out = append(out, warnings.Want{Name: name, Value: value})
	default:
		return errors.Wrapf(ErrInvalidStep, "line %d: warnings must be a mapping or a list", node.Line)
	}
	*w = out
	return nil
}

// Env is what a capability sees of the run.
type Env struct {
	Log       *slog.Logger
	Timer     buildlog.Measurer
	Store     *issue.Store
	Runner    buildlog.Runner
	SourceDir string
	WorkDir   string
	// Diff is the change being reviewed. Nil when the run has no diff.
	Diff        *diffindex.Index
	Catalog     *warnings.Catalog
	Xcode       config.XcodeConfig
	AndroidHome string
	Local       config.Local

	executed bool
}

// MarkExecuted records that a step performed a real action.
func (e *Env) MarkExecuted() { e.executed = true }

// ActionExecuted reports whether any step performed a real action.
func (e *Env) ActionExecuted() bool { return e.executed }

// Path resolves a path relative to the source directory.
func (e *Env) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.SourceDir, p)
}

func (e *Env) logger() *slog.Logger {
	if e.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Log
}

// run executes cmd in the source directory unless it names another one.
func (e *Env) run(ctx context.Context, cmd buildlog.Command, fn buildlog.LineFunc) (int, error) {
	if cmd.Dir == "" {
		cmd.Dir = e.SourceDir
	}
	return e.Runner.Run(ctx, cmd, fn)
}

// mustRun executes cmd and fails on a nonzero exit code.
func (e *Env) mustRun(ctx context.Context, cmd buildlog.Command) error {
	code, err := e.run(ctx, cmd, nil)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.Wrapf(buildlog.ErrToolFailed, "%s exited with %d", cmd, code)
	}
	return nil
}

// Factory builds a capability.
type Factory func() Capability

// Registry maps tool names to capabilities.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry holds every built-in tool.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("xcode", func() Capability { return Xcode{} })
	r.Register("cocoapods", func() Capability { return CocoaPods{} })
	r.Register("android", func() Capability { return Android{} })
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Lookup returns a new capability for a tool name.
func (r *Registry) Lookup(name string) (Capability, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, errors.WithHint(
			errors.Wrapf(ErrUnknownTool, "%q", name),
			"available tools: "+strings.Join(r.Names(), ", "),
		)
	}
	return f(), nil
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func unknownAction(tool, action string, valid ...string) error {
	return errors.WithHint(
		errors.Wrapf(ErrUnknownAction, "%s has no action %q", tool, action),
		"valid actions: "+strings.Join(valid, ", "),
	)
}
