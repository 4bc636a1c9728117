package tools

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dshills/buildlens/internal/buildlog"
	"github.com/dshills/buildlens/internal/issue"
)

// ignoredPodWarnings are pod install warnings that say nothing about the
// change.
var ignoredPodWarnings = []string{
	"Please close any current Xcode sessions",
	"This is a test version",
	"Unable to load a specification for the plugin",
}

// CocoaPods installs pods and reports the warnings pod install prints.
type CocoaPods struct{}

func (CocoaPods) Name() string { return "cocoapods" }

func (c CocoaPods) Run(ctx context.Context, env *Env, step Step) error {
	if step.Action != "install" {
		return unknownAction("cocoapods", step.Action, "install")
	}
	return c.install(ctx, env)
}

func (c CocoaPods) install(ctx context.Context, env *Env) error {
	if _, err := os.Stat(env.Path("Podfile")); err != nil {
		return errors.WithHint(
			errors.Wrapf(ErrInvalidStep, "%s does not use CocoaPods", env.SourceDir),
			"remove the cocoapods step or commit a Podfile",
		)
	}
	pod, err := c.podCommand(ctx, env)
	if err != nil {
		return err
	}
	log := env.logger()

	for attempt := 1; ; attempt++ {
		out := NewPodOutput()
		code, err := env.run(ctx, pod.with("install"), func(s buildlog.Stream, line string) error {
			if s == buildlog.Stderr {
				log.WarnContext(ctx, line)
			} else {
				log.DebugContext(ctx, line)
			}
			out.ProcessLine(s, line)
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "pod install")
		}
		if code != 0 && attempt == 1 {
			log.WarnContext(ctx, "pod install failed, updating the specs repo before retrying", "exit_code", code)
			if _, err := env.run(ctx, pod.with("repo", "update"), nil); err != nil {
				return errors.Wrap(err, "pod repo update")
			}
			continue
		}

		typ := issue.TypeWarning
		if code != 0 {
			typ = issue.TypeError
		}
		for _, msg := range out.Messages() {
			env.Store.Add(issue.Issue{Type: typ, Tool: issue.ToolCocoaPods, Description: msg})
		}
		return nil
	}
}

type podCommand []string

func (p podCommand) with(args ...string) buildlog.Command {
	return buildlog.Command{Name: p[0], Args: append(append([]string{}, p[1:]...), args...)}
}

// podCommand picks how to invoke pod: through bundler when the repository
// has a Gemfile, else at the version recorded in Podfile.lock.
func (c CocoaPods) podCommand(ctx context.Context, env *Env) (podCommand, error) {
	if _, err := os.Stat(env.Path("Gemfile")); err == nil {
		if err := env.mustRun(ctx, buildlog.Command{Name: "bundle", Args: []string{"install"}}); err != nil {
			return nil, err
		}
		return podCommand{"bundle", "exec", "pod"}, nil
	}
	data, err := os.ReadFile(env.Path("Podfile.lock"))
	if err != nil {
		return podCommand{"pod"}, nil
	}
	var lock struct {
		Version string `yaml:"COCOAPODS"`
	}
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return nil, errors.Wrap(err, "parsing Podfile.lock")
	}
	if lock.Version == "" {
		return podCommand{"pod"}, nil
	}
	return podCommand{"pod", "_" + lock.Version + "_"}, nil
}

// PodOutput collects the [!] warnings of pod install output. A warning
// ending with a colon continues on the following lines of its stream.
type PodOutput struct {
	found map[buildlog.Stream][]string
	open  map[buildlog.Stream]bool
}

func NewPodOutput() *PodOutput {
	return &PodOutput{
		found: map[buildlog.Stream][]string{},
		open:  map[buildlog.Stream]bool{},
	}
}

func (o *PodOutput) ProcessLine(s buildlog.Stream, line string) {
	if rest, ok := strings.CutPrefix(line, "[!] "); ok {
		if ignoredPodWarning(line) {
			o.open[s] = false
			return
		}
		o.found[s] = append(o.found[s], rest)
		o.open[s] = strings.HasSuffix(line, ":")
		return
	}
	if o.open[s] {
		msgs := o.found[s]
		msgs[len(msgs)-1] += "\n" + line
	}
}

// Messages returns the warnings, standard output first.
func (o *PodOutput) Messages() []string {
	var out []string
	for _, s := range []buildlog.Stream{buildlog.Stdout, buildlog.Stderr} {
		for _, m := range o.found[s] {
			out = append(out, strings.TrimSpace(m))
		}
	}
	return out
}

func ignoredPodWarning(line string) bool {
	for _, w := range ignoredPodWarnings {
		if strings.Contains(line, w) {
			return true
		}
	}
	return false
}
