package tools

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/buildlog"
	"github.com/dshills/buildlens/internal/issue"
)

const lintXML = `<?xml version="1.0" encoding="UTF-8"?>
<issues format="4" by="lint 3.1.0">
    <issue id="HardcodedText" severity="Warning" message="Hardcoded string &quot;Login&quot;, should use @string resource" category="Internationalization" priority="5">
        <location file="/src/app/src/main/res/layout/login.xml" line="12" column="9"/>
    </issue>
    <issue id="MissingPermission" severity="Error" message="Missing permissions required by LocationManager.requestLocationUpdates">
        <location file="/src/app/src/main/java/com/example/Tracker.java" line="40"/>
        <location file="/src/app/src/main/java/com/example/Other.java" line="2"/>
    </issue>
    <issue id="NewApi" severity="Fatal" message="Call requires API level 21">
        <location file="/src/app/src/main/java/com/example/Api.java"/>
    </issue>
</issues>
`

func TestParseLintReport(t *testing.T) {
	issues, err := ParseLintReport(strings.NewReader(lintXML))
	if err != nil {
		t.Fatalf("ParseLintReport error: %v", err)
	}
	want := []issue.Issue{
		{Type: issue.TypeWarning, Tool: issue.ToolLint, Description: `Hardcoded string "Login", should use @string resource`, FilePath: "/src/app/src/main/res/layout/login.xml", Line: 12},
		{Type: issue.TypeError, Tool: issue.ToolLint, Description: "Missing permissions required by LocationManager.requestLocationUpdates", FilePath: "/src/app/src/main/java/com/example/Tracker.java", Line: 40},
		{Type: issue.TypeError, Tool: issue.ToolLint, Description: "Call requires API level 21", FilePath: "/src/app/src/main/java/com/example/Api.java"},
	}
	if !reflect.DeepEqual(issues, want) {
		t.Errorf("issues =\n%+v\nwant\n%+v", issues, want)
	}
}

const findBugsXML = `<?xml version="1.0" encoding="UTF-8"?>
<BugCollection version="3.0.1" sequence="0" timestamp="1500000000000">
  <BugInstance type="NP_NULL_ON_SOME_PATH" priority="1" rank="3" abbrev="NP" category="CORRECTNESS">
    <ShortMessage>Possible null pointer dereference</ShortMessage>
    <LongMessage>Possible null pointer dereference of user in com.example.Login.submit()</LongMessage>
    <Class classname="com.example.Login">
      <SourceLine classname="com.example.Login" start="10" end="80" sourcepath="com/example/Login.java"/>
    </Class>
    <SourceLine classname="com.example.Login" start="42" end="42" sourcepath="com/example/Login.java"/>
  </BugInstance>
  <BugInstance type="DM_DEFAULT_ENCODING" priority="2" rank="19" abbrev="Dm" category="I18N">
    <LongMessage>Found reliance on default encoding</LongMessage>
    <SourceLine classname="com.example.Io" start="7" end="7" sourcepath="com/example/Io.java"/>
  </BugInstance>
</BugCollection>
`

func TestParseFindBugsReport(t *testing.T) {
	issues, err := ParseFindBugsReport(strings.NewReader(findBugsXML), "app")
	if err != nil {
		t.Fatalf("ParseFindBugsReport error: %v", err)
	}
	want := []issue.Issue{
		{Type: issue.TypeError, Tool: issue.ToolFindBugs, Description: "Possible null pointer dereference of user in com.example.Login.submit()", FilePath: "app/src/main/java/com/example/Login.java", Line: 42},
		{Type: issue.TypeWarning, Tool: issue.ToolFindBugs, Description: "Found reliance on default encoding", FilePath: "app/src/main/java/com/example/Io.java", Line: 7},
	}
	if !reflect.DeepEqual(issues, want) {
		t.Errorf("issues =\n%+v\nwant\n%+v", issues, want)
	}
}

const inferJSON = `[
  {"bug_type": "NULL_DEREFERENCE", "qualifier": "object returned by getUser() could be null", "file": "app/src/main/java/com/example/Login.java", "line": 51},
  {"bug_type": "RESOURCE_LEAK", "qualifier": "resource acquired is not released", "file": "app/src/main/java/com/example/Io.java", "line": "9"}
]`

func TestParseInferReport(t *testing.T) {
	issues, err := ParseInferReport(strings.NewReader(inferJSON))
	if err != nil {
		t.Fatalf("ParseInferReport error: %v", err)
	}
	want := []issue.Issue{
		{Type: issue.TypeStaticAnalysis, Tool: issue.ToolInfer, Description: "object returned by getUser() could be null", FilePath: "app/src/main/java/com/example/Login.java", Line: 51},
		{Type: issue.TypeStaticAnalysis, Tool: issue.ToolInfer, Description: "resource acquired is not released", FilePath: "app/src/main/java/com/example/Io.java", Line: 9},
	}
	if !reflect.DeepEqual(issues, want) {
		t.Errorf("issues =\n%+v\nwant\n%+v", issues, want)
	}

	if _, err := ParseInferReport(strings.NewReader("{")); err == nil {
		t.Error("expected error for malformed report")
	}
}

func writeReport(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAndroidRun(t *testing.T) {
	tests := []struct {
		action  string
		report  string
		content string
		command string
		issues  int
	}{
		{"lint", "app/" + LintReportFile, lintXML, "./gradlew --stacktrace lint", 3},
		{"findbugs", "app/" + FindBugsReportFile, findBugsXML, "./gradlew --stacktrace findbugs", 2},
		{"infer", InferReportFile, inferJSON, "infer -- ./gradlew build", 2},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			runner := &fakeRunner{}
			env := newEnv(t, runner)
			env.AndroidHome = "/opt/android"
			writeReport(t, env.SourceDir, tt.report, tt.content)

			step := Step{Tool: "android", Action: tt.action, Project: "app"}
			if err := (Android{}).Run(context.Background(), env, step); err != nil {
				t.Fatalf("Run error: %v", err)
			}
			if len(runner.calls) != 1 || runner.calls[0].String() != tt.command {
				t.Fatalf("calls = %v, want [%s]", runner.calls, tt.command)
			}
			if got := runner.calls[0].Env; !reflect.DeepEqual(got, []string{"ANDROID_HOME=/opt/android"}) {
				t.Errorf("env = %v", got)
			}
			if env.Store.Len() != tt.issues {
				t.Errorf("got %d issues, want %d", env.Store.Len(), tt.issues)
			}
			if !env.ActionExecuted() {
				t.Error("action not marked as executed")
			}
		})
	}
}

func TestAndroidRun_Failures(t *testing.T) {
	runner := &fakeRunner{script: func(int, buildlog.Command) fakeResult { return fakeResult{code: 1} }}
	env := newEnv(t, runner)
	err := (Android{}).Run(context.Background(), env, Step{Tool: "android", Action: "lint", Project: "app"})
	if !errors.Is(err, buildlog.ErrToolFailed) {
		t.Errorf("error = %v, want ErrToolFailed", err)
	}

	env = newEnv(t, &fakeRunner{})
	if err := (Android{}).Run(context.Background(), env, Step{Tool: "android", Action: "findbugs", Project: "app"}); err == nil {
		t.Error("expected error for a missing report")
	}
}
