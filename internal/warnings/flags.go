package warnings

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// State is the resolved state of one warning.
type State int

const (
	Disabled State = iota
	Enabled
	AsError
	stateDefault
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Enabled:
		return "enabled"
	case AsError:
		return "error"
	default:
		return "default"
	}
}

// Resolution is the per-warning outcome of a flag list, in the order each
// warning was first mentioned.
type Resolution struct {
	Order  []string
	States map[string]State
	// Inhibited is set when -w disabled every warning.
	Inhibited bool
}

// State returns the resolved state of a warning; unmentioned warnings are
// disabled.
func (r Resolution) State(warning string) State {
	return r.States[warning]
}

// Tokenize splits flag strings on whitespace.
func Tokenize(parts ...string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, strings.Fields(p)...)
	}
	return out
}

// Resolve computes warning states from flags. -Werror escalates every warning
// that is only enabled, -Werror=x and -Wno-x apply to x and the members of
// its group, -Wno-error=x demotes x to a plain warning, and -w turns every
// warning off.
func Resolve(flags []string, groups map[string][]string) Resolution {
	r := Resolution{States: map[string]State{}}
	asErrors := false

	set := func(name string, apply func(prev State, seen bool) (State, bool)) {
		for _, key := range append([]string{name}, groups[name]...) {
			prev, seen := r.States[key]
			next, ok := apply(prev, seen)
			if !ok {
				continue
			}
			if !seen {
				r.Order = append(r.Order, key)
			}
			r.States[key] = next
		}
	}
	always := func(s State) func(State, bool) (State, bool) {
		return func(State, bool) (State, bool) { return s, true }
	}

	for _, flag := range flags {
		switch {
		case flag == "-w":
			return Resolution{States: map[string]State{}, Inhibited: true}
		case flag == "-Werror":
			asErrors = true
		case (strings.HasPrefix(flag, "-Werror=") || strings.HasPrefix(flag, "-Werror-")) && len(flag) > len("-Werror="):
			set(flag[len("-Werror="):], always(AsError))
		case (strings.HasPrefix(flag, "-Wno-error=") || strings.HasPrefix(flag, "-Wno-error-")) && len(flag) > len("-Wno-error="):
			set(flag[len("-Wno-error="):], func(prev State, seen bool) (State, bool) {
				if !seen || prev == Disabled {
					return prev, false
				}
				return Enabled, true
			})
		case strings.HasPrefix(flag, "-Wno-") && len(flag) > len("-Wno-"):
			set(flag[len("-Wno-"):], always(Disabled))
		case strings.HasPrefix(flag, "-W") && len(flag) > len("-W"):
			set(flag[len("-W"):], always(stateDefault))
		}
	}

	for key, s := range r.States {
		if s == stateDefault {
			if asErrors {
				r.States[key] = AsError
			} else {
				r.States[key] = Enabled
			}
		}
	}
	return r
}

// Want is an entry of a warning requirement: a setting name, a literal -W
// flag, a lower-case clang warning name or a setting description, with an
// optional value.
type Want struct {
	Name  string
	Value string
}

var warningNameRe = regexp.MustCompile(`^[a-z#][a-z0-9\-=#]+$`)

// normalizeValue maps user spellings to a symbolic value. An empty value
// means enabled.
func normalizeValue(v string) (Value, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "yes", "true":
		return ValueYes, nil
	case "no", "false":
		return ValueNo, nil
	case "error", "yes_error":
		return ValueYesError, nil
	case "aggressive", "yes_aggressive":
		return ValueYesAggressive, nil
	}
	return "", errors.Wrapf(ErrInvalidValue, "%q", v)
}

// WantedFlags turns requirement entries into the flags that express them.
func (c *Catalog) WantedFlags(wants []Want) ([]string, error) {
	var flags []string
	for _, w := range wants {
		value, err := normalizeValue(w.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "warning %s", w.Name)
		}

		name := strings.TrimSpace(w.Name)
		switch {
		case c.hasFlags(name):
			f, err := c.settingFlags(name, value)
			if err != nil {
				return nil, err
			}
			flags = append(flags, f)
		case strings.HasPrefix(name, "-W"):
			if value != ValueYes {
				return nil, errors.Wrapf(ErrInvalidValue, "flag %s takes no value, got %q", name, w.Value)
			}
			flags = append(flags, name)
		case warningNameRe.MatchString(name):
			switch value {
			case ValueYes:
				flags = append(flags, "-W"+name)
			case ValueYesError:
				flags = append(flags, "-Werror="+name)
			case ValueNo:
				flags = append(flags, "-Wno-"+name)
			default:
				return nil, errors.Wrapf(ErrInvalidValue, "warning %s cannot be %s", name, value)
			}
		default:
			setting, ok := c.settingByDescription(name)
			if !ok || !c.hasFlags(setting) {
				return nil, errors.WithHint(
					errors.Wrapf(ErrUnknownWarning, "%q", name),
					"use a build setting name, a -W flag, a clang warning name or an Xcode setting title",
				)
			}
			f, err := c.settingFlags(setting, value)
			if err != nil {
				return nil, err
			}
			flags = append(flags, f)
		}
	}
	return Tokenize(flags...), nil
}

func (c *Catalog) hasFlags(name string) bool {
	s, ok := c.Settings[name]
	return ok && s.Flags != nil
}

func (c *Catalog) settingFlags(name string, value Value) (string, error) {
	f, ok := c.Settings[name].Flags[value]
	if !ok {
		return "", errors.Wrapf(ErrInvalidValue, "%s has no value %s", name, value)
	}
	return f, nil
}
