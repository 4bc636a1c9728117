package warnings

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog error: %v", err)
	}
	if len(c.Names()) < 50 {
		t.Errorf("len(Names) = %d, want at least 50", len(c.Names()))
	}
	if _, ok := c.Settings[WarningCFlags]; !ok {
		t.Error("WARNING_CFLAGS missing")
	}
	if got := len(c.Groups["conversion"]); got != 12 {
		t.Errorf("conversion group has %d members, want 12", got)
	}
}

func TestParseCatalog_BrokenDefaults(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "cycle",
			yaml: `
settings:
  A:
    default_from: B
    flags: {"YES": "-Wa", "NO": ""}
  B:
    default_from: A
    flags: {"YES": "-Wb", "NO": ""}
`,
		},
		{
			name: "self reference",
			yaml: `
settings:
  A:
    default_from: A
    flags: {"YES": "-Wa", "NO": ""}
`,
		},
		{
			name: "dangling reference",
			yaml: `
settings:
  A:
    default_from: Z
    flags: {"YES": "-Wa", "NO": ""}
`,
		},
		{
			name: "no default",
			yaml: `
settings:
  A:
    flags: {"YES": "-Wa", "NO": ""}
`,
		},
		{
			name: "default without flags",
			yaml: `
settings:
  A:
    default: "MAYBE"
    flags: {"YES": "-Wa", "NO": ""}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			if !errors.Is(err, ErrBrokenDefault) {
				t.Errorf("error = %v, want ErrBrokenDefault", err)
			}
		})
	}
}

func TestParseCatalog_AddsFreeFormSettings(t *testing.T) {
	c, err := ParseCatalog([]byte(`
settings:
  A:
    default: "NO"
    flags: {"YES": "-Wa", "NO": "-Wno-a "}
`))
	if err != nil {
		t.Fatalf("ParseCatalog error: %v", err)
	}
	if c.Settings[OtherCFlags].Description != "Other C Flags" {
		t.Errorf("OTHER_CFLAGS description = %q", c.Settings[OtherCFlags].Description)
	}
	if got := c.Settings["A"].Flags[ValueNo]; got != "-Wno-a" {
		t.Errorf("flags not trimmed: %q", got)
	}
}

func TestCatalogFindFlag(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog error: %v", err)
	}
	tests := []struct {
		flag string
		want Place
		ok   bool
	}{
		{"-Wshadow", Place{Setting: "GCC_WARN_SHADOW", Description: "Hidden Local Variables", Value: ValueYes}, true},
		{"-Werror=return-type", Place{Setting: "GCC_WARN_ABOUT_RETURN_TYPE", Description: "Mismatched Return Type", Value: ValueYesError}, true},
		{"-Wno-invalid-offsetof", Place{Setting: "GCC_WARN_ABOUT_INVALID_OFFSETOF_MACRO", Description: "Undefined Use of offsetof Macro", Value: ValueNo}, true},
		{"-Wnullability", Place{}, false},
		{"", Place{}, false},
	}
	for _, tt := range tests {
		got, ok := c.FindFlag(tt.flag)
		if ok != tt.ok || got != tt.want {
			t.Errorf("FindFlag(%q) = %+v, %v, want %+v, %v", tt.flag, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCatalogRead(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog error: %v", err)
	}
	tests := []struct {
		name    string
		setting string
		project map[string]string
		target  map[string]string
		want    string
	}{
		{"default", "GCC_WARN_SHADOW", nil, nil, "NO"},
		{"project", "GCC_WARN_SHADOW", map[string]string{"GCC_WARN_SHADOW": "YES"}, nil, "YES"},
		{"target wins", "GCC_WARN_SHADOW", map[string]string{"GCC_WARN_SHADOW": "YES"}, map[string]string{"GCC_WARN_SHADOW": "NO"}, "NO"},
		{"inherited default", "CLANG_WARN_BOOL_CONVERSION", map[string]string{"CLANG_WARN_SUSPICIOUS_IMPLICIT_CONVERSION": "YES"}, nil, "YES"},
		{"inherited default overridden", "CLANG_WARN_BOOL_CONVERSION", map[string]string{"CLANG_WARN_SUSPICIOUS_IMPLICIT_CONVERSION": "YES"}, map[string]string{"CLANG_WARN_BOOL_CONVERSION": "NO"}, "NO"},
		{"free form", WarningCFlags, nil, map[string]string{WarningCFlags: "-Wextra"}, "-Wextra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Read(tt.setting, tt.project, tt.target)
			if err != nil {
				t.Fatalf("Read error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Read = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := c.Read("NOT_A_SETTING", nil, nil); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("error = %v, want ErrUnknownSetting", err)
	}
}
