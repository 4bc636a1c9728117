package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/buildlens/internal/gitctx"
)

const (
	hookName        = "pre-push"
	hookMarkerStart = "# >>> buildlens pre-push hook >>>"
	hookMarkerEnd   = "# <<< buildlens pre-push hook <<<"
)

// hookTemplate is filled with the base ref, the format and the tolerance.
const hookTemplate = `buildlens check --base %s --format %s --tolerance %d
BUILDLENS_EXIT=$?
if [ $BUILDLENS_EXIT -eq 1 ]; then
  echo "buildlens: the change breaks the build, push blocked"
  exit 1
elif [ $BUILDLENS_EXIT -ge 2 ]; then
  echo "buildlens: check failed with exit code $BUILDLENS_EXIT, allowing push"
fi
`

var (
	hookBase      string
	hookFormat    string
	hookTolerance int
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git pre-push hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install buildlens as a git pre-push hook",
	Long:  "Add a section to the pre-push hook that builds the checkout and blocks the push when the change breaks the build.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := gitctx.HookPath(".", hookName)
		if err != nil {
			fail(err)
			return nil
		}
		if err := installHook(path, generateHookScript(hookBase, hookFormat, hookTolerance)); err != nil {
			fail(err)
			return nil
		}
		fmt.Fprintf(os.Stdout, "Installed buildlens pre-push hook at %s\n", path)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the buildlens section of the pre-push hook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := gitctx.HookPath(".", hookName)
		if err != nil {
			fail(err)
			return nil
		}
		removed, err := uninstallHook(path)
		switch {
		case err != nil:
			fail(err)
		case removed:
			fmt.Fprintf(os.Stdout, "Removed buildlens pre-push hook from %s\n", path)
		default:
			fmt.Fprintln(os.Stdout, "No buildlens pre-push hook found.")
		}
		return nil
	},
}

// installHook writes section into the hook at path, replacing an earlier
// buildlens section and keeping everything else.
func installHook(path, section string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "reading %s", path)
	}
	content := "#!/bin/sh\n" + section
	if len(existing) > 0 {
		content = replaceSection(string(existing), section)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating hooks directory")
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	// WriteFile keeps the mode of an existing file.
	return errors.Wrapf(os.Chmod(path, 0o755), "making %s executable", path)
}

// uninstallHook removes the buildlens section from the hook at path and
// deletes the hook when nothing but the interpreter line is left.
func uninstallHook(path string) (bool, error) {
	existing, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "reading %s", path)
	}
	content := removeSection(string(existing))
	if content == string(existing) {
		return false, nil
	}
	if rest := strings.TrimSpace(content); rest == "" || (strings.HasPrefix(rest, "#!") && !strings.Contains(rest, "\n")) {
		return true, errors.Wrapf(os.Remove(path), "removing %s", path)
	}
	return true, errors.Wrapf(os.WriteFile(path, []byte(content), 0o755), "writing %s", path)
}

func generateHookScript(base, format string, tolerance int) string {
	return hookMarkerStart + "\n" + fmt.Sprintf(hookTemplate, base, format, tolerance) + hookMarkerEnd + "\n"
}

// sectionBounds returns the text around the buildlens section.
func sectionBounds(existing string) (before, after string, ok bool) {
	start := strings.Index(existing, hookMarkerStart)
	end := strings.Index(existing, hookMarkerEnd)
	if start < 0 || end < start {
		return existing, "", false
	}
	return existing[:start], strings.TrimPrefix(existing[end+len(hookMarkerEnd):], "\n"), true
}

func replaceSection(existing, section string) string {
	before, after, ok := sectionBounds(existing)
	if !ok {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}
	return before + section + after
}

func removeSection(existing string) string {
	before, after, ok := sectionBounds(existing)
	if !ok {
		return existing
	}
	return before + after
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookInstallCmd.Flags().StringVar(&hookBase, "base", "origin/main", "Ref the pushed change is compared against")
	hookInstallCmd.Flags().StringVar(&hookFormat, "format", "text", "Output format (text, json, markdown, sarif)")
	hookInstallCmd.Flags().IntVar(&hookTolerance, "tolerance", 20, "Lines around a changed line that count as related")
}
