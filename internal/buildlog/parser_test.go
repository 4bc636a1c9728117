package buildlog

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/issue"
)

func feed(t *testing.T, p *Parser, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if err := p.ProcessLine(Stdout, l); err != nil {
			t.Fatalf("ProcessLine(%q) error: %v", l, err)
		}
	}
}

func TestParser_LinkerError(t *testing.T) {
	store := issue.NewStore("")
	p := NewParser(store, nil)
	feed(t, p,
		"Undefined symbols for architecture x86_64:",
		`  "_OBJC_CLASS_$_Foo", referenced from:`,
		"      _objc_class_name_Foo in Bar.o",
	)
	p.Flush()

	got := store.Snapshot()
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: %+v", len(got), got)
	}
	is := got[0]
	if is.Type != issue.TypeError || is.Tool != issue.ToolLinker {
		t.Errorf("issue = %+v, want linker error", is)
	}
	if !strings.Contains(is.Description, "Foo") || !strings.Contains(is.Description, "Bar.o") {
		t.Errorf("Description = %q, want it to mention Foo and Bar.o", is.Description)
	}
	if !p.NewFatalFound() {
		t.Error("NewFatalFound = false, want true")
	}
}

func TestParser_LinkerGroups(t *testing.T) {
	store := issue.NewStore("")
	p := NewParser(store, nil)
	feed(t, p,
		"Undefined symbols for architecture arm64:",
		`  "_OBJC_CLASS_$_Foo", referenced from:`,
		"      objc-class-ref in A.o",
		"      objc-class-ref in B.o",
		`     (maybe you meant: _OBJC_CLASS_$_Foobar)`,
		`  "_OBJC_CLASS_$_Baz", referenced from:`,
		"      objc-class-ref in C.o",
		"ld: symbol(s) not found for architecture arm64",
	)

	got := store.Snapshot()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if want := "Cannot find symbol Foo referenced in A.o, B.o"; got[0].Description != want {
		t.Errorf("Description = %q, want %q", got[0].Description, want)
	}
	if want := "Cannot find symbol Baz referenced in C.o"; got[1].Description != want {
		t.Errorf("Description = %q, want %q", got[1].Description, want)
	}
}

func TestParser_SymbolWithoutReferences(t *testing.T) {
	store := issue.NewStore("")
	p := NewParser(store, nil)
	feed(t, p,
		"Undefined symbols for architecture x86_64:",
		`  "_OBJC_CLASS_$_Foo", referenced from:`,
	)
	p.Flush()
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
	if p.NewFatalFound() {
		t.Error("NewFatalFound = true, want false")
	}
}

func TestParser_OrphanReference(t *testing.T) {
	p := NewParser(issue.NewStore(""), nil)
	feed(t, p, "Undefined symbols for architecture x86_64:")
	err := p.ProcessLine(Stdout, "      objc-class-ref in A.o")
	if !errors.Is(err, ErrOrphanReference) {
		t.Errorf("error = %v, want ErrOrphanReference", err)
	}
}

func TestParser_ReferenceOutsideBlockIgnored(t *testing.T) {
	store := issue.NewStore("")
	p := NewParser(store, nil)
	feed(t, p, "      objc-class-ref in A.o")
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
}

func TestParser_DiagnosticEndsLinkerBlock(t *testing.T) {
	store := issue.NewStore("")
	p := NewParser(store, nil)
	feed(t, p,
		"Undefined symbols for architecture x86_64:",
		`  "_OBJC_CLASS_$_Foo", referenced from:`,
		"      objc-class-ref in A.o",
		"App/A.m:3:1: warning: something odd",
		"      objc-class-ref in B.o",
	)

	got := store.Snapshot()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Type != issue.TypeWarning || got[0].FilePath != "App/A.m" {
		t.Errorf("first = %+v, want the warning", got[0])
	}
	if got[1].Tool != issue.ToolLinker {
		t.Errorf("second = %+v, want the linker error", got[1])
	}
}

func TestParser_LineEndsBlockAndReopens(t *testing.T) {
	store := issue.NewStore("")
	p := NewParser(store, nil)
	feed(t, p,
		"Undefined symbols for architecture x86_64:",
		`  "_A", referenced from:`,
		"      _main in main.o",
		"Undefined symbols for architecture arm64:",
		`  "_B", referenced from:`,
		"      _main in main.o",
	)
	p.Flush()
	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2: %+v", store.Len(), store.Snapshot())
	}
}

func TestParser_Diagnostics(t *testing.T) {
	store := issue.NewStore("/src")
	p := NewParser(store, nil)
	feed(t, p,
		"/src/App/A.m:10:5: warning: unused variable 'x'   ",
		"/src/App/A.m:10:5: warning: unused variable 'x'",
		"CompileC something",
	)
	if p.NewFatalFound() {
		t.Error("warnings should not be fatal")
	}
	got := store.Snapshot()
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: %+v", len(got), got)
	}
	want := issue.Issue{Type: issue.TypeWarning, Tool: issue.ToolGeneric, Description: "unused variable 'x'", FilePath: "App/A.m", Line: 10, Column: 5}
	if got[0] != want {
		t.Errorf("issue = %+v, want %+v", got[0], want)
	}

	feed(t, p, "App/B.m:1: error: expected ';'")
	if !p.NewFatalFound() {
		t.Error("error diagnostic should be fatal")
	}
}

func TestParser_StderrNotParsed(t *testing.T) {
	store := issue.NewStore("")
	p := NewParser(store, nil)
	if err := p.ProcessLine(Stderr, "a.m:1:1: error: boom"); err != nil {
		t.Fatalf("ProcessLine error: %v", err)
	}
	if store.Len() != 0 || p.NewFatalFound() {
		t.Error("stderr lines should not produce issues")
	}
}

func TestParser_Consume(t *testing.T) {
	log := strings.Join([]string{
		"Build settings from command line:",
		"a.m:1:1: warning: w",
		"Undefined symbols for architecture x86_64:",
		`  "_OBJC_CLASS_$_Foo", referenced from:`,
		"      objc-class-ref in A.o",
	}, "\n")
	store := issue.NewStore("")
	p := NewParser(store, nil)
	if err := p.Consume(strings.NewReader(log)); err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2", store.Len())
	}
}
