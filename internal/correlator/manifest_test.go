package correlator_test

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dshills/buildlens/internal/correlator"
	"github.com/dshills/buildlens/internal/warnings"
)

const iosManifest = `lines_around_related: 5
steps:
  - tool: cocoapods
    action: install
  - tool: xcode
    action: require_warnings
    project: App.xcodeproj
    schemes: [App]
    warnings:
      shadow: "YES"
      unused-variable: "YES"
  - tool: xcode
    action: test
    project: App.xcworkspace
    scheme: App
    destinations: ["platform=iOS Simulator,name=iPhone 16"]
    unless_error: true
`

var _ = Describe("Manifest", func() {
	Describe("ParseManifest", func() {
		It("decodes steps in order", func() {
			m, err := correlator.ParseManifest([]byte(iosManifest))
			Expect(err).NotTo(HaveOccurred())

			Expect(*m.LinesAroundRelated).To(Equal(5))
			Expect(m.Steps).To(HaveLen(3))
			Expect(m.Steps[0].String()).To(Equal("cocoapods install"))
			Expect(m.Steps[1].Warnings).To(BeEquivalentTo([]warnings.Want{
				{Name: "shadow", Value: "YES"},
				{Name: "unused-variable", Value: "YES"},
			}))
			Expect(m.Steps[2].UnlessError).To(BeTrue())
			Expect(m.Steps[2].Destinations).To(ConsistOf("platform=iOS Simulator,name=iPhone 16"))
		})

		It("leaves the tolerance unset when absent", func() {
			m, err := correlator.ParseManifest([]byte("steps:\n  - {tool: xcode, action: build}\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(m.LinesAroundRelated).To(BeNil())
		})

		DescribeTable("rejects invalid manifests",
			func(data string) {
				_, err := correlator.ParseManifest([]byte(data))
				Expect(errors.Is(err, correlator.ErrInvalidManifest)).To(BeTrue(), "%v", err)
			},
			Entry("no steps", "lines_around_related: 3\n"),
			Entry("step without an action", "steps:\n  - tool: xcode\n"),
			Entry("step without a tool", "steps:\n  - action: build\n"),
			Entry("negative tolerance", "lines_around_related: -1\nsteps:\n  - {tool: xcode, action: build}\n"),
		)

		It("reports malformed YAML", func() {
			_, err := correlator.ParseManifest([]byte("steps: [\n"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("FindManifest", func() {
		var dir string

		write := func(rel string) string {
			path := filepath.Join(dir, rel)
			Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
			Expect(os.WriteFile(path, []byte("steps:\n  - {tool: xcode, action: build}\n"), 0o644)).To(Succeed())
			return path
		}

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("prefers the repository manifest over the host and global fallbacks", func() {
			write("fallback.yml")
			write("github.com/fallback.yml")
			want := write("github.com/acme/app.yml")

			m, err := correlator.FindManifest(dir, "github.com", "acme", "app")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Path).To(Equal(want))
		})

		It("falls back to the host manifest", func() {
			write("fallback.yml")
			want := write("github.com/fallback.yml")

			m, err := correlator.FindManifest(dir, "github.com", "acme", "app")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Path).To(Equal(want))
		})

		It("falls back to the global manifest", func() {
			want := write("fallback.yml")

			m, err := correlator.FindManifest(dir, "gitlab.com", "acme", "app")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Path).To(Equal(want))
		})

		It("fails when no manifest exists", func() {
			_, err := correlator.FindManifest(dir, "github.com", "acme", "app")
			Expect(errors.Is(err, correlator.ErrNoManifest)).To(BeTrue())
		})
	})

	It("reports a missing file as no manifest", func() {
		_, err := correlator.LoadManifest(filepath.Join(GinkgoT().TempDir(), "missing.yml"))
		Expect(errors.Is(err, correlator.ErrNoManifest)).To(BeTrue())
	})
})
