package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/samber/lo"

	"github.com/hgpipe/hgpipe/pkg/cmdserver"
	"github.com/hgpipe/hgpipe/pkg/hgcmd"
	"github.com/hgpipe/hgpipe/pkg/utils"
)

// smokeContext carries the state the smoke steps build up: a throwaway
// repository and a session bound to it.
type smokeContext struct {
	app     *App
	workDir string
	session *cmdserver.Session
	client  *hgcmd.Client
}

type smokeStep struct {
	name string
	run  func(ctx *smokeContext) error
}

// Smoke runs an end-to-end self-check against the real hg: init a throwaway
// repository, add, commit, status, log, diff, each step validated against
// what hg must print. Returns an error when any step fails.
func (app *App) Smoke(w io.Writer) error {
	workDir, err := os.MkdirTemp("", "hgpipe-smoke-")
	if err != nil {
		return cmdserver.WrapError(err)
	}

	ctx := &smokeContext{app: app, workDir: workDir}
	defer func() {
		if ctx.session != nil {
			_ = ctx.session.Close()
		}
		if app.Config.UserConfig.Smoke.KeepWorkDir {
			fmt.Fprintf(w, "work dir kept at %s\n", workDir)
			return
		}
		_ = os.RemoveAll(workDir)
	}()

	steps := []smokeStep{
		{"init", stepInit},
		{"add/status", stepAddStatus},
		{"commit/log", stepCommitLog},
		{"diff", stepDiff},
	}

	failed := false
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			failed = true
			fmt.Fprintf(w, "%s %s\n", utils.ColoredString("✗", color.FgRed), step.name)
			fmt.Fprintf(w, "  %v\n", err)
			break
		}
		fmt.Fprintf(w, "%s %s\n", utils.ColoredString("✓", color.FgGreen), step.name)
	}

	if failed {
		return cmdserver.WrapError(fmt.Errorf("smoke test failed"))
	}

	fmt.Fprintln(w, utils.ColoredString("all smoke steps passed", color.FgGreen))
	return nil
}

// stepInit creates the repository through the app's repo-less session, then
// binds a fresh session to it.
func stepInit(ctx *smokeContext) error {
	if err := ctx.app.Client.Init(ctx.workDir); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(ctx.workDir, ".hg")); err != nil {
		return cmdserver.WrapError(err)
	}

	opts := mergeServerConfig(&cmdserver.OpenOptions{RepoPath: ctx.workDir}, ctx.app.Config.UserConfig.Server)
	session, err := cmdserver.Open(ctx.app.Log, opts)
	if err != nil {
		return err
	}
	ctx.session = session
	ctx.client = hgcmd.NewClient(ctx.app.Log, session)

	root, err := session.Root()
	if err != nil {
		return err
	}
	return expectEqual("repository root", ctx.workDir, root)
}

func stepAddStatus(ctx *smokeContext) error {
	for _, name := range []string{"foo", "bar"} {
		if err := os.WriteFile(filepath.Join(ctx.workDir, name), nil, 0o644); err != nil {
			return cmdserver.WrapError(err)
		}
	}

	if _, err := ctx.client.Add("foo", "bar"); err != nil {
		return err
	}

	statuses, err := ctx.client.Status(hgcmd.StatusOptions{})
	if err != nil {
		return err
	}

	added := hgcmd.PathsWithStatus(statuses, hgcmd.StatusAdded)
	if !lo.Contains(added, "foo") || !lo.Contains(added, "bar") {
		return fmt.Errorf("expected foo and bar to be added, status reported %v", statuses)
	}
	return nil
}

func stepCommitLog(ctx *smokeContext) error {
	user := ctx.app.Config.UserConfig.Smoke.CommitUser

	changeset, err := ctx.client.Commit(hgcmd.CommitOptions{Message: "smoke commit", User: user})
	if err != nil {
		return err
	}

	tip, err := ctx.client.Tip()
	if err != nil {
		return err
	}

	if tip.Rev != changeset.Rev || !strings.HasPrefix(tip.Node, changeset.Node) {
		return fmt.Errorf("tip %d:%s does not match committed %d:%s", tip.Rev, tip.Node, changeset.Rev, changeset.Node)
	}
	return expectEqual("commit message", "smoke commit", tip.Message)
}

func stepDiff(ctx *smokeContext) error {
	user := ctx.app.Config.UserConfig.Smoke.CommitUser
	foo := filepath.Join(ctx.workDir, "foo")

	if err := os.WriteFile(foo, []byte("1\n"), 0o644); err != nil {
		return cmdserver.WrapError(err)
	}
	if _, err := ctx.client.Commit(hgcmd.CommitOptions{Message: "set foo to 1", User: user}); err != nil {
		return err
	}
	if err := os.WriteFile(foo, []byte("2\n"), 0o644); err != nil {
		return cmdserver.WrapError(err)
	}

	patch, err := ctx.client.Diff(hgcmd.DiffOptions{Files: []string{"foo"}})
	if err != nil {
		return err
	}

	lines := utils.SplitLines(utils.NormalizeLinefeeds(patch))
	if len(lines) != 6 {
		return fmt.Errorf("expected a 6-line diff, got %d lines:\n%s", len(lines), patch)
	}
	if err := expectEqual("hunk header", "@@ -1,1 +1,1 @@", lines[3]); err != nil {
		return err
	}
	if err := expectEqual("removed line", "-1", lines[4]); err != nil {
		return err
	}
	return expectEqual("added line", "+2", lines[5])
}

// expectEqual reports a mismatch as a unified diff so multi-line values stay
// readable.
func expectEqual(what, expected, actual string) error {
	if expected == actual {
		return nil
	}

	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected " + what,
		ToFile:   "actual " + what,
		Context:  1,
	})
	return fmt.Errorf("%s mismatch:\n%s", what, diff)
}
