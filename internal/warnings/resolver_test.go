package warnings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/issue"
	"github.com/dshills/buildlens/internal/xcodeproj"
)

func singleConfigProject(project, target map[string]string) *xcodeproj.Project {
	return &xcodeproj.Project{
		Configurations: []xcodeproj.Configuration{{Name: "Debug", Settings: project}},
		Targets: []xcodeproj.Target{{
			Name:           "App",
			Configurations: []xcodeproj.Configuration{{Name: "Debug", Settings: target}},
		}},
	}
}

func TestResolverRequire(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog error: %v", err)
	}

	tests := []struct {
		name   string
		target map[string]string
		wants  []Want
		want   []string
	}{
		{
			name:  "setting to enable",
			wants: []Want{{Name: "shadow"}},
			want: []string{
				`On build configuration "Debug" of target "App", please change the setting GCC_WARN_SHADOW ("Hidden Local Variables") to YES.`,
			},
		},
		{
			name:  "already satisfied",
			wants: []Want{{Name: "GCC_WARN_64_TO_32_BIT_CONVERSION"}, {Name: "format"}},
		},
		{
			name:  "setting to disable",
			wants: []Want{{Name: "GCC_WARN_UNUSED_VALUE", Value: "no"}},
			want: []string{
				`On build configuration "Debug" of target "App", please change the setting GCC_WARN_UNUSED_VALUE ("Unused Values") to NO.`,
			},
		},
		{
			name:  "setting with an error value",
			wants: []Want{{Name: "return-type", Value: "error"}},
			want: []string{
				`On build configuration "Debug" of target "App", please change the setting GCC_WARN_ABOUT_RETURN_TYPE ("Mismatched Return Type") to YES_ERROR.`,
			},
		},
		{
			name:   "escalation",
			target: map[string]string{"GCC_WARN_UNUSED_VARIABLE": "YES"},
			wants:  []Want{{Name: "unused-variable", Value: "error"}},
			want: []string{
				`On build configuration "Debug" of target "App", please change the setting GCC_WARN_UNUSED_VARIABLE ("Unused Variables") and GCC_TREAT_WARNINGS_AS_ERRORS ("Treat Warnings as Errors") to YES, or add "-Werror=unused-variable" to WARNING_CFLAGS ("Other Warning Flags").`,
			},
		},
		{
			name:   "escalated by treat warnings as errors",
			target: map[string]string{"GCC_WARN_UNUSED_VARIABLE": "YES", "GCC_TREAT_WARNINGS_AS_ERRORS": "YES"},
			wants:  []Want{{Name: "unused-variable", Value: "error"}},
		},
		{
			name:  "flag without a setting",
			wants: []Want{{Name: "nullability-completeness"}},
			want: []string{
				`On build configuration "Debug" of target "App", please add "-Wnullability-completeness" to WARNING_CFLAGS ("Other Warning Flags").`,
			},
		},
		{
			name:   "flag set in WARNING_CFLAGS",
			target: map[string]string{"WARNING_CFLAGS": "-Wnullability-completeness -Wno-unused-parameter"},
			wants:  []Want{{Name: "-Wnullability-completeness"}},
		},
		{
			name:   "inhibited",
			target: map[string]string{"GCC_WARN_INHIBIT_ALL_WARNINGS": "YES"},
			wants:  []Want{{Name: "shadow"}, {Name: "format"}},
			want: []string{
				"The target App should not have all its warnings inhibited on configuration Debug.",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := issue.NewStore("")
			r := NewResolver(catalog, singleConfigProject(nil, tt.target), store, nil)
			if err := r.Require(context.Background(), Requirement{Wants: tt.wants}); err != nil {
				t.Fatalf("Require error: %v", err)
			}
			got := store.Snapshot()
			if len(got) != len(tt.want) {
				t.Fatalf("got %d issues (%v), want %d", len(got), got, len(tt.want))
			}
			for i, is := range got {
				if is.Type != issue.TypeError || is.Tool != issue.ToolWarningPolicy {
					t.Errorf("issue %d = %s/%s, want error/warning_policy", i, is.Type, is.Tool)
				}
				if is.Description != tt.want[i] {
					t.Errorf("issue %d description = %q, want %q", i, is.Description, tt.want[i])
				}
			}
		})
	}
}

func TestResolverRequire_ProjectSettingInherited(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog error: %v", err)
	}
	store := issue.NewStore("")
	project := singleConfigProject(map[string]string{"GCC_WARN_SHADOW": "YES"}, nil)
	r := NewResolver(catalog, project, store, nil)
	if err := r.Require(context.Background(), Requirement{Wants: []Want{{Name: "shadow"}}}); err != nil {
		t.Fatalf("Require error: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("got %d issues, want 0", store.Len())
	}
}

func TestResolverRequire_Errors(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog error: %v", err)
	}
	tests := []struct {
		name    string
		project *xcodeproj.Project
		wants   []Want
		wantErr error
	}{
		{
			name:    "unknown warning",
			project: singleConfigProject(nil, nil),
			wants:   []Want{{Name: "Not A Warning"}},
			wantErr: ErrUnknownWarning,
		},
		{
			name:    "invalid setting value",
			project: singleConfigProject(nil, map[string]string{"GCC_WARN_SHADOW": "MAYBE"}),
			wants:   []Want{{Name: "shadow"}},
			wantErr: ErrInvalidValue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(catalog, tt.project, issue.NewStore(""), nil)
			err := r.Require(context.Background(), Requirement{Wants: tt.wants})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

const releaseScheme = `<?xml version="1.0" encoding="UTF-8"?>
<Scheme LastUpgradeVersion = "0940" version = "1.3">
   <BuildAction parallelizeBuildables = "YES"></BuildAction>
   <LaunchAction buildConfiguration = "Release"></LaunchAction>
</Scheme>
`

func TestResolverRequire_Schemes(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog error: %v", err)
	}
	dir := t.TempDir()
	schemes := filepath.Join(dir, "xcshareddata", "xcschemes")
	if err := os.MkdirAll(schemes, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(schemes, "Ship.xcscheme"), []byte(releaseScheme), 0o644); err != nil {
		t.Fatal(err)
	}

	project := &xcodeproj.Project{
		Path: dir,
		Configurations: []xcodeproj.Configuration{
			{Name: "Debug"},
			{Name: "Release"},
		},
		Targets: []xcodeproj.Target{{
			Name: "App",
			Configurations: []xcodeproj.Configuration{
				{Name: "Debug"},
				{Name: "Release", Settings: map[string]string{"GCC_WARN_SHADOW": "YES"}},
			},
		}},
	}

	store := issue.NewStore("")
	r := NewResolver(catalog, project, store, nil)
	req := Requirement{Wants: []Want{{Name: "shadow"}}, Schemes: []string{"Ship"}}
	if err := r.Require(context.Background(), req); err != nil {
		t.Fatalf("Require error: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("got %d issues for the Release-only scheme, want 0", store.Len())
	}

	store = issue.NewStore("")
	r = NewResolver(catalog, project, store, nil)
	if err := r.Require(context.Background(), Requirement{Wants: []Want{{Name: "shadow"}}}); err != nil {
		t.Fatalf("Require error: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("got %d issues without schemes, want 1 (Debug)", store.Len())
	}

	err = r.Require(context.Background(), Requirement{Wants: []Want{{Name: "shadow"}}, Schemes: []string{"Missing"}})
	if !errors.Is(err, xcodeproj.ErrMissingScheme) {
		t.Errorf("error = %v, want ErrMissingScheme", err)
	}
}
