package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/hgpipe/hgpipe/pkg/cmdserver"
	"github.com/hgpipe/hgpipe/pkg/config"
	"github.com/hgpipe/hgpipe/pkg/hgcmd"
	"github.com/hgpipe/hgpipe/pkg/log"
	"github.com/hgpipe/hgpipe/pkg/utils"
)

// App struct
type App struct {
	Config  *config.AppConfig
	Log     *logrus.Entry
	Session *cmdserver.Session
	Client  *hgcmd.Client
}

// NewApp bootstraps the probe: logger, command server session, subcommand
// client. Flag values already live in the open options; the user config
// fills anything the flags left empty.
func NewApp(appConfig *config.AppConfig, opts *cmdserver.OpenOptions) (*App, error) {
	app := &App{
		Config: appConfig,
		Log:    log.NewLogger(appConfig),
	}

	session, err := cmdserver.Open(app.Log, mergeServerConfig(opts, appConfig.UserConfig.Server))
	if err != nil {
		return app, err
	}

	app.Session = session
	app.Client = hgcmd.NewClient(app.Log, session)

	return app, nil
}

// mergeServerConfig fills flag-less fields of the open options from the user
// config.
func mergeServerConfig(opts *cmdserver.OpenOptions, server config.ServerConfig) *cmdserver.OpenOptions {
	merged := cmdserver.OpenOptions{}
	if opts != nil {
		merged = *opts
	}

	if merged.HgBinary == "" {
		merged.HgBinary = server.HgBinary
	}
	if merged.Encoding == "" {
		merged.Encoding = server.Encoding
	}
	if len(merged.ConfigOverrides) == 0 {
		merged.ConfigOverrides = server.ConfigOverrides
	}
	if merged.GraceTimeout == 0 && server.GraceTimeoutSeconds > 0 {
		merged.GraceTimeout = time.Duration(server.GraceTimeoutSeconds) * time.Second
	}

	return &merged
}

func (app *App) Close() error {
	if app.Session == nil {
		return nil
	}
	return app.Session.Close()
}

// Report prints what the session negotiated: encoding, capabilities, hg
// version and, when inside a repository, its root.
func (app *App) Report(w io.Writer) error {
	version, err := app.Session.Version()
	if err != nil {
		return err
	}

	label := func(name string) string {
		return utils.WithPadding(utils.ColoredString(name, color.FgGreen), 13)
	}

	fmt.Fprintf(w, "%s %s\n", label("mercurial:"), version)
	fmt.Fprintf(w, "%s %s\n", label("encoding:"), app.Session.Encoding())
	fmt.Fprintf(w, "%s %s\n", label("capabilities:"), strings.Join(app.Session.Capabilities(), " "))

	root, err := app.Session.Root()
	if err != nil {
		// being outside a repository is not a reporting failure
		app.Log.WithError(err).Debug("no repository root")
		fmt.Fprintf(w, "%s %s\n", label("root:"), utils.ColoredString("(no repository)", color.FgYellow))
		return nil
	}
	fmt.Fprintf(w, "%s %s\n", label("root:"), root)

	if app.Config.Debug {
		fields, err := app.Session.Configuration()
		if err != nil {
			return err
		}
		spew.Fdump(w, fields)
	}

	return nil
}

// RunLine runs one shell-style hg command line over the session and prints
// what it captured. The returned code is the command's exit code.
func (app *App) RunLine(w io.Writer, cmdline string) (int32, error) {
	result, err := app.Session.RunString(cmdline)
	if err != nil {
		return 0, err
	}

	if result.Stdout != "" {
		fmt.Fprint(w, result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprint(w, utils.ColoredString(result.Stderr, color.FgRed))
	}

	return result.ExitCode, nil
}

// KnownError takes an error and tells us whether it's an error that we know about where we can print a nicely formatted version of it rather than panicking with a stack trace
func (app *App) KnownError(err error) (string, bool) {
	errorMessage := err.Error()

	mappings := []errorMapping{
		{
			originalError: "executable file not found",
			newError:      "Could not find the hg executable. Is Mercurial installed and on your PATH? Point --hg at the binary otherwise.",
		},
		{
			originalError: "no repository found",
			newError:      "There is no Mercurial repository here. Run inside a repository or pass -R <path>.",
		},
		{
			originalError: "unsupported capability: runcommand",
			newError:      "This hg is too old to speak the command server protocol (runcommand capability missing).",
		},
	}

	for _, mapping := range mappings {
		if strings.Contains(errorMessage, mapping.originalError) {
			return mapping.newError, true
		}
	}

	return "", false
}

type errorMapping struct {
	originalError string
	newError      string
}
