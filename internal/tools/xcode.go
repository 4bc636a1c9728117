package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/buildlog"
	"github.com/dshills/buildlens/internal/warnings"
	"github.com/dshills/buildlens/internal/xcodeproj"
)

// xcodebuild exits with 65 when the simulator or the Interface Builder
// compiler fails spuriously.
const flakyExitCode = 65

// DefaultXcodePath is used when neither the config nor xcode-select names
// an Xcode.
const DefaultXcodePath = "/Applications/Xcode.app"

// ErrUnknownXcode is returned when a requested Xcode version is not
// configured or not installed.
var ErrUnknownXcode = errors.New("unknown Xcode")

// Xcode builds, tests and analyzes Xcode projects and checks their files
// and settings.
type Xcode struct{}

func (Xcode) Name() string { return "xcode" }

func (x Xcode) Run(ctx context.Context, env *Env, step Step) error {
	switch step.Action {
	case "build":
		env.MarkExecuted()
		return x.xcodebuild(ctx, env, step, "build", "iphoneos", "")
	case "analyze":
		env.MarkExecuted()
		if err := x.xcodebuild(ctx, env, step, "analyze", "iphoneos", ""); err != nil {
			return err
		}
		return AddAnalyzerReports(env, step.Project)
	case "test":
		if len(step.Destinations) == 0 {
			return errors.WithHint(
				errors.Wrapf(ErrInvalidStep, "xcode test of %s has no destination", step.Project),
				`add destinations, for example ["platform=iOS Simulator,name=iPhone 15"]`,
			)
		}
		env.MarkExecuted()
		for _, dest := range step.Destinations {
			if err := x.xcodebuild(ctx, env, step, "test", "iphonesimulator", dest); err != nil {
				return err
			}
		}
		return nil
	case "require_warnings":
		env.MarkExecuted()
		return requireWarnings(ctx, env, step)
	case "find_unchanged_storyboards":
		env.MarkExecuted()
		return FindUnchangedStoryboards(env)
	case "find_misplaced_constraints":
		env.MarkExecuted()
		return FindMisplacedConstraints(env)
	}
	return unknownAction("xcode", step.Action,
		"build", "test", "analyze", "require_warnings", "find_unchanged_storyboards", "find_misplaced_constraints")
}

// xcodebuild runs one xcodebuild action, feeding its output to a fresh log
// parser. A failing exit code is accepted when the parser found a new fatal
// diagnostic; otherwise exit code 65 is retried once.
func (x Xcode) xcodebuild(ctx context.Context, env *Env, step Step, action, sdk, destination string) error {
	if step.Scheme == "" {
		return errors.Wrapf(ErrInvalidStep, "xcode %s of %s has no scheme", action, step.Project)
	}
	tool, err := x.xcodebuildPath(ctx, env, step)
	if err != nil {
		return err
	}

	args := []string{}
	switch filepath.Ext(step.Project) {
	case ".xcodeproj":
		args = append(args, "-project", step.Project)
	case ".xcworkspace":
		args = append(args, "-workspace", step.Project)
	default:
		return errors.WithHint(
			errors.Wrapf(ErrInvalidStep, "unknown project type for %q", step.Project),
			"the project must be an .xcodeproj or an .xcworkspace",
		)
	}
	args = append(args, "-scheme", step.Scheme, "-sdk", sdk, "-derivedDataPath", env.WorkDir)
	if destination != "" {
		args = append(args, "-destination", destination)
	}
	args = append(args, action)
	cmd := buildlog.Command{Name: tool, Args: args}

	log := env.logger()
	for attempt := 1; ; attempt++ {
		log.InfoContext(ctx, "running xcodebuild", "action", action, "scheme", step.Scheme, "attempt", attempt)
		parser := buildlog.NewParser(env.Store, log)
		code, err := env.run(ctx, cmd, parser.ProcessLine)
		parser.Flush()
		if err != nil {
			return errors.Wrapf(err, "xcodebuild %s", action)
		}
		if code == 0 || parser.NewFatalFound() {
			return nil
		}
		if code == flakyExitCode && attempt == 1 {
			log.WarnContext(ctx, "xcodebuild failed without a diagnostic, retrying once", "exit_code", code)
			continue
		}
		return errors.Wrapf(buildlog.ErrToolFailed, "xcodebuild %s exited with %d", action, code)
	}
}

// xcodebuildPath picks the Xcode for a step: the step's version, else the
// repository's, else the configured default, else the selected Xcode.
func (x Xcode) xcodebuildPath(ctx context.Context, env *Env, step Step) (string, error) {
	version := step.XcodeVersion
	if version == "" || strings.EqualFold(version, "default") {
		version = env.Local.XcodeVersion
	}
	if strings.EqualFold(version, "default") {
		version = ""
	}

	var app string
	switch {
	case version != "":
		path, ok := env.Xcode.Versions[version]
		if !ok {
			return "", errors.WithHint(
				errors.Wrapf(ErrUnknownXcode, "Xcode version %s is not configured", version),
				"run 'buildlens config set xcode.versions."+version+" /Applications/Xcode-"+version+".app'",
			)
		}
		app = path
	case env.Xcode.Default != "":
		// The default may name a configured version or be a path.
		app = env.Xcode.Default
		if path, ok := env.Xcode.Versions[app]; ok {
			app = path
		}
	default:
		app = selectedXcode(ctx, env)
	}

	if _, err := os.Stat(app); err != nil {
		return "", errors.Wrapf(ErrUnknownXcode, "%s does not point to an existing Xcode", app)
	}
	tool := filepath.Join(app, "Contents", "Developer", "usr", "bin", "xcodebuild")
	if _, err := os.Stat(tool); err != nil {
		return "", errors.Wrapf(ErrUnknownXcode, "cannot find xcodebuild at %s", tool)
	}
	return tool, nil
}

// selectedXcode asks xcode-select for the active developer directory.
func selectedXcode(ctx context.Context, env *Env) string {
	var dir string
	code, err := env.run(ctx, buildlog.Command{Name: "xcode-select", Args: []string{"-p"}}, func(s buildlog.Stream, line string) error {
		if s == buildlog.Stdout && dir == "" {
			dir = strings.TrimSpace(line)
		}
		return nil
	})
	if err != nil || code != 0 || dir == "" {
		return DefaultXcodePath
	}
	return strings.TrimSuffix(dir, "/Contents/Developer")
}

func requireWarnings(ctx context.Context, env *Env, step Step) error {
	if step.Project == "" {
		return errors.Wrapf(ErrInvalidStep, "require_warnings needs a project")
	}
	if len(step.Warnings) == 0 {
		return errors.Wrapf(ErrInvalidStep, "require_warnings of %s lists no warnings", step.Project)
	}
	catalog := env.Catalog
	if catalog == nil {
		var err error
		if catalog, err = warnings.DefaultCatalog(); err != nil {
			return err
		}
	}
	project, err := xcodeproj.Load(env.Path(step.Project))
	if err != nil {
		return err
	}
	resolver := warnings.NewResolver(catalog, project, env.Store, env.logger())
	return resolver.Require(ctx, warnings.Requirement{Wants: step.Warnings, Schemes: step.Schemes})
}
