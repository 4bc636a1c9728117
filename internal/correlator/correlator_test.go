package correlator_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dshills/buildlens/internal/buildlog"
	"github.com/dshills/buildlens/internal/config"
	"github.com/dshills/buildlens/internal/correlator"
	"github.com/dshills/buildlens/internal/diffindex"
	"github.com/dshills/buildlens/internal/issue"
	"github.com/dshills/buildlens/internal/tools"
)

type stepFunc func(ctx context.Context, env *tools.Env, step tools.Step) error

type fakeTool struct {
	run stepFunc
}

func (fakeTool) Name() string { return "fake" }

func (f fakeTool) Run(ctx context.Context, env *tools.Env, step tools.Step) error {
	return f.run(ctx, env, step)
}

// buildLog is fake tool output replayed through the log parser.
func buildLog(log string) stepFunc {
	return func(_ context.Context, env *tools.Env, _ tools.Step) error {
		env.MarkExecuted()
		return buildlog.NewParser(env.Store, env.Log).Consume(strings.NewReader(log))
	}
}

const changeDiff = `diff --git a/App/Foo.m b/App/Foo.m
--- a/App/Foo.m
+++ b/App/Foo.m
@@ -10,2 +10,3 @@
 - (void)viewDidLoad {
+    int x = 0;
 }
`

var _ = Describe("Run", func() {
	var (
		ctx      context.Context
		src      string
		registry *tools.Registry
		steps    map[string]stepFunc
		diff     *diffindex.Index
	)

	manifest := func(actions ...string) *correlator.Manifest {
		m := &correlator.Manifest{}
		for _, a := range actions {
			m.Steps = append(m.Steps, tools.Step{Tool: "fake", Action: a})
		}
		return m
	}

	BeforeEach(func() {
		ctx = context.Background()
		src = GinkgoT().TempDir()
		steps = map[string]stepFunc{}
		registry = tools.NewRegistry()
		registry.Register("fake", func() tools.Capability {
			return fakeTool{run: func(ctx context.Context, env *tools.Env, step tools.Step) error {
				fn, ok := steps[step.Action]
				Expect(ok).To(BeTrue(), "unexpected action %s", step.Action)
				return fn(ctx, env, step)
			}}
		})

		var err error
		diff, err = diffindex.FromUnified([]byte(changeDiff))
		Expect(err).NotTo(HaveOccurred())
	})

	Context("with a diff", func() {
		It("keeps only the issues relevant to the change", func() {
			steps["build"] = buildLog(strings.Join([]string{
				src + "/App/Foo.m:11:9: warning: unused variable 'x'",
				src + "/App/Foo.m:200:1: warning: far from the change",
				src + "/App/Bar.m:3:1: error: unknown type name 'Baz'",
				src + "/App/Bar.m:4:1: warning: in an unchanged file",
				"Undefined symbols for architecture arm64:",
				`  "_OBJC_CLASS_$_Foo", referenced from:`,
				"      objc-class-ref in Bar.o",
				"ld: symbol(s) not found for architecture arm64",
			}, "\n"))

			report, err := correlator.Run(ctx, correlator.Options{
				SourceDir:  src,
				Manifest:   manifest("build"),
				Diff:       diff,
				HeadCommit: "abc123",
				Registry:   registry,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(report.RunID).NotTo(BeZero())
			Expect(report.HeadCommit).To(Equal("abc123"))
			Expect(report.Filtered).To(BeTrue())
			Expect(report.Collected).To(Equal(5))
			Expect(report.Tolerance).To(Equal(config.DefaultLinesAroundRelated))

			var descriptions []string
			for _, is := range report.Issues {
				descriptions = append(descriptions, is.Description)
			}
			Expect(descriptions).To(Equal([]string{
				"unused variable 'x'",
				"unknown type name 'Baz'",
				"Cannot find symbol Foo referenced in Bar.o",
			}))
			Expect(report.Issues[0].FilePath).To(Equal("App/Foo.m"))
			Expect(report.Fatal).To(BeTrue())
			Expect(report.Failed()).To(BeTrue())
		})

		It("is idempotent", func() {
			steps["build"] = buildLog(src + "/App/Foo.m:12:1: warning: near the change\n" + src + "/App/Foo.m:90:1: warning: far")
			report, err := correlator.Run(ctx, correlator.Options{SourceDir: src, Manifest: manifest("build"), Diff: diff, Registry: registry})
			Expect(err).NotTo(HaveOccurred())

			again := issue.FilterDiffRelevant(report.Issues, diff, report.Tolerance)
			Expect(again).To(Equal(report.Issues))
		})
	})

	Context("without a diff", func() {
		It("reports every collected issue", func() {
			steps["build"] = buildLog(src + "/App/Foo.m:200:1: warning: far from the change")
			report, err := correlator.Run(ctx, correlator.Options{SourceDir: src, Manifest: manifest("build"), Registry: registry})

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Filtered).To(BeFalse())
			Expect(report.Issues).To(HaveLen(1))
			Expect(report.Failed()).To(BeFalse())
		})
	})

	Describe("tolerance", func() {
		BeforeEach(func() {
			steps["build"] = buildLog(src + "/App/Foo.m:15:1: warning: three lines below the change")
		})

		run := func(opts correlator.Options) int {
			opts.SourceDir = src
			opts.Diff = diff
			opts.Registry = registry
			if opts.Manifest == nil {
				opts.Manifest = manifest("build")
			}
			report, err := correlator.Run(ctx, opts)
			Expect(err).NotTo(HaveOccurred())
			return len(report.Issues)
		}
		intPtr := func(n int) *int { return &n }

		It("uses the configured value", func() {
			Expect(run(correlator.Options{Tolerance: 2})).To(Equal(0))
			Expect(run(correlator.Options{Tolerance: 3})).To(Equal(1))
		})

		It("lets the repository, the manifest and the flag override it in turn", func() {
			Expect(os.WriteFile(filepath.Join(src, config.LocalFileName), []byte("lines_around_related: 1\n"), 0o644)).To(Succeed())
			Expect(run(correlator.Options{Tolerance: 20})).To(Equal(0))

			m := manifest("build")
			m.LinesAroundRelated = intPtr(5)
			Expect(run(correlator.Options{Tolerance: 20, Manifest: m})).To(Equal(1))

			Expect(run(correlator.Options{Tolerance: 20, Manifest: m, ToleranceOverride: intPtr(0)})).To(Equal(0))
		})
	})

	Describe("steps", func() {
		It("runs steps in order and times each one", func() {
			var order []string
			for _, a := range []string{"first", "second"} {
				steps[a] = func(_ context.Context, env *tools.Env, step tools.Step) error {
					order = append(order, step.Action)
					env.MarkExecuted()
					return nil
				}
			}
			report, err := correlator.Run(ctx, correlator.Options{SourceDir: src, Manifest: manifest("first", "second"), Registry: registry})

			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal([]string{"first", "second"}))
			Expect(report.Timings).To(HaveLen(2))
			Expect(report.Timings[0].Label).To(Equal("fake first"))
		})

		It("skips unless_error steps once an error was found", func() {
			steps["build"] = buildLog(src + "/App/Foo.m:11:1: error: expected ';'")
			steps["test"] = func(context.Context, *tools.Env, tools.Step) error {
				Fail("test step should have been skipped")
				return nil
			}
			m := manifest("build", "test")
			m.Steps[1].UnlessError = true

			report, err := correlator.Run(ctx, correlator.Options{SourceDir: src, Manifest: m, Registry: registry})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Fatal).To(BeTrue())
		})

		It("stops at a failing step and still reports what was collected", func() {
			steps["build"] = buildLog(src + "/App/Foo.m:11:1: warning: collected before the failure")
			steps["test"] = func(context.Context, *tools.Env, tools.Step) error {
				return errors.Wrap(buildlog.ErrToolFailed, "xcodebuild test exited with 1")
			}
			steps["never"] = func(context.Context, *tools.Env, tools.Step) error {
				Fail("steps after a failure must not run")
				return nil
			}

			report, err := correlator.Run(ctx, correlator.Options{SourceDir: src, Manifest: manifest("build", "test", "never"), Diff: diff, Registry: registry})
			Expect(errors.Is(err, buildlog.ErrToolFailed)).To(BeTrue())
			Expect(report).NotTo(BeNil())
			Expect(report.Issues).To(HaveLen(1))
		})

		It("fails on an unknown tool", func() {
			m := &correlator.Manifest{Steps: []tools.Step{{Tool: "gradle", Action: "build"}}}
			_, err := correlator.Run(ctx, correlator.Options{SourceDir: src, Manifest: m, Registry: registry})
			Expect(errors.Is(err, tools.ErrUnknownTool)).To(BeTrue())
		})
	})

	Describe("no action", func() {
		It("is an error when nothing ran and nothing failed", func() {
			steps["noop"] = func(context.Context, *tools.Env, tools.Step) error { return nil }
			report, err := correlator.Run(ctx, correlator.Options{SourceDir: src, Manifest: manifest("noop"), Registry: registry})
			Expect(errors.Is(err, correlator.ErrNoAction)).To(BeTrue())
			Expect(report).NotTo(BeNil())
		})

		It("is not an error when an error issue was found", func() {
			steps["noop"] = func(_ context.Context, env *tools.Env, _ tools.Step) error {
				env.Store.Add(issue.Issue{Type: issue.TypeError, Description: "pod install failed"})
				return nil
			}
			_, err := correlator.Run(ctx, correlator.Options{SourceDir: src, Manifest: manifest("noop"), Registry: registry})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	It("requires a manifest", func() {
		_, err := correlator.Run(ctx, correlator.Options{SourceDir: src})
		Expect(errors.Is(err, correlator.ErrNoManifest)).To(BeTrue())
	})
})

var _ = Describe("Report", func() {
	It("fails only on errors", func() {
		r := &correlator.Report{Issues: []issue.Issue{
			{Type: issue.TypeWarning, Description: "w"},
			{Type: issue.TypeStaticAnalysis, Description: "s"},
		}}
		Expect(r.Failed()).To(BeFalse())
		Expect(r.Counts()).To(Equal(map[issue.Type]int{issue.TypeWarning: 1, issue.TypeStaticAnalysis: 1}))

		r.Issues = append(r.Issues, issue.Issue{Type: issue.TypeError, Description: "e"})
		Expect(r.Failed()).To(BeTrue())
	})
})
