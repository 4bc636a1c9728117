package warnings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/issue"
	"github.com/dshills/buildlens/internal/xcodeproj"
)

// Sink receives remediation issues.
type Sink interface {
	Add(is issue.Issue) bool
}

// Requirement is the warning policy for a project. When Schemes is set only
// the configurations those schemes build with are checked.
type Requirement struct {
	Wants   []Want
	Schemes []string
}

// Resolver checks one project against warning requirements.
type Resolver struct {
	catalog *Catalog
	project *xcodeproj.Project
	sink    Sink
	log     *slog.Logger
}

// NewResolver returns a resolver for project. A nil logger discards output.
func NewResolver(catalog *Catalog, project *xcodeproj.Project, sink Sink, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{catalog: catalog, project: project, sink: sink, log: log}
}

// Require compares every target configuration in scope with the requirement
// and adds one error issue per mismatching warning. Configuration problems
// are returned as errors.
func (r *Resolver) Require(ctx context.Context, req Requirement) error {
	flags, err := r.catalog.WantedFlags(req.Wants)
	if err != nil {
		return err
	}
	wanted := Resolve(flags, r.catalog.Groups)

	used, err := r.configurationsInScope(req.Schemes)
	if err != nil {
		return err
	}

	for _, target := range r.project.Targets {
		for _, config := range target.Configurations {
			if !used[config.Name] {
				continue
			}
			effective, err := r.EffectiveFlags(target, config.Name)
			if err != nil {
				return err
			}
			resolved := Resolve(effective, r.catalog.Groups)
			if resolved.Inhibited {
				r.sink.Add(issue.Issue{
					Type:        issue.TypeError,
					Tool:        issue.ToolWarningPolicy,
					Description: fmt.Sprintf("The target %s should not have all its warnings inhibited on configuration %s.", target.Name, config.Name),
				})
				continue
			}

			for _, warning := range wanted.Order {
				want := wanted.States[warning]
				got := resolved.State(warning)
				if satisfies(got, want) {
					continue
				}
				r.log.DebugContext(ctx, "warning mismatch",
					"target", target.Name, "configuration", config.Name,
					"warning", warning, "want", want.String(), "got", got.String())
				r.sink.Add(issue.Issue{
					Type:        issue.TypeError,
					Tool:        issue.ToolWarningPolicy,
					Description: r.remediation(warning, want, target.Name, config.Name),
				})
			}
		}
	}
	return nil
}

func satisfies(got, want State) bool {
	switch want {
	case Disabled:
		return got == Disabled
	case AsError:
		return got == AsError
	default:
		return got != Disabled
	}
}

func (r *Resolver) configurationsInScope(schemes []string) (map[string]bool, error) {
	used := map[string]bool{}
	if len(schemes) == 0 {
		for _, c := range r.project.Configurations {
			used[c.Name] = true
		}
		return used, nil
	}
	for _, scheme := range schemes {
		names, err := xcodeproj.SchemeConfigurations(r.project.Path, scheme)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			used[n] = true
		}
	}
	return used, nil
}

// EffectiveFlags returns the compiler flags a target configuration builds
// with: the flags of every catalog setting followed by the free-form flags.
func (r *Resolver) EffectiveFlags(target xcodeproj.Target, configName string) ([]string, error) {
	projectConfig, ok := r.project.Configuration(configName)
	if !ok {
		return nil, errors.Wrapf(xcodeproj.ErrMissingConfiguration, "configuration %s at project level", configName)
	}
	targetConfig, ok := target.Configuration(configName)
	if !ok {
		return nil, errors.Wrapf(xcodeproj.ErrMissingConfiguration, "configuration %s in target %s", configName, target.Name)
	}

	var parts []string
	for _, name := range r.catalog.names {
		s := r.catalog.Settings[name]
		if s.Flags == nil {
			continue
		}
		value, err := r.catalog.Read(name, projectConfig.Settings, targetConfig.Settings)
		if err != nil {
			return nil, err
		}
		f, ok := s.Flags[Value(value)]
		if !ok {
			return nil, errors.WithHint(
				errors.Wrapf(ErrInvalidValue, "%s = %q in target %s configuration %s", name, value, target.Name, configName),
				"use one of the values Xcode offers for this setting",
			)
		}
		parts = append(parts, f)
	}
	for _, name := range []string{WarningCFlags, OtherCFlags} {
		value, err := r.catalog.Read(name, projectConfig.Settings, targetConfig.Settings)
		if err != nil {
			return nil, err
		}
		parts = append(parts, value)
	}
	return Tokenize(parts...), nil
}

func (r *Resolver) remediation(warning string, want State, target, config string) string {
	var flag string
	switch want {
	case Disabled:
		flag = "-Wno-" + warning
	case AsError:
		flag = "-Werror=" + warning
	default:
		flag = "-W" + warning
	}

	prefix := fmt.Sprintf("On build configuration %q of target %q, please", config, target)
	if place, ok := r.catalog.FindFlag(flag); ok {
		return fmt.Sprintf("%s change the setting %s (%q) to %s.", prefix, place.Setting, place.Description, place.Value)
	}
	if want == AsError {
		if place, ok := r.catalog.FindFlag("-W" + warning); ok {
			return fmt.Sprintf("%s change the setting %s (%q) and GCC_TREAT_WARNINGS_AS_ERRORS (\"Treat Warnings as Errors\") to YES, or add %q to WARNING_CFLAGS (\"Other Warning Flags\").",
				prefix, place.Setting, place.Description, flag)
		}
	}
	return fmt.Sprintf("%s add %q to WARNING_CFLAGS (\"Other Warning Flags\").", prefix, flag)
}
