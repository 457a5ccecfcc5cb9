package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/go-errors/errors"
	"github.com/integrii/flaggy"
	"github.com/jesseduffield/yaml"

	"github.com/hgpipe/hgpipe/pkg/app"
	"github.com/hgpipe/hgpipe/pkg/cmdserver"
	"github.com/hgpipe/hgpipe/pkg/config"
)

var (
	commit      string
	version     = "unversioned"
	date        string
	buildSource = "unknown"

	dumpConfigFlag  = false
	debuggingFlag   = false
	smokeFlag       = false
	hgBinaryFlag    = ""
	repoFlag        = ""
	encodingFlag    = ""
	configOverrides []string
	runLine         = ""
)

func main() {
	info := fmt.Sprintf(
		"%s\nDate: %s\nBuildSource: %s\nCommit: %s\nOS: %s\nArch: %s",
		version,
		date,
		buildSource,
		commit,
		runtime.GOOS,
		runtime.GOARCH,
	)

	flaggy.SetName("hgpipe")
	flaggy.SetDescription("A probe for the Mercurial command server client library")

	flaggy.Bool(&dumpConfigFlag, "c", "dump-config", "Print the current default config")
	flaggy.Bool(&debuggingFlag, "d", "debug", "Log verbosely to the development log")
	flaggy.Bool(&smokeFlag, "s", "smoke", "Run the end-to-end self-check against the real hg")
	flaggy.String(&hgBinaryFlag, "b", "hg", "Path to the hg binary to launch")
	flaggy.String(&repoFlag, "R", "repo", "Repository the command server should operate on")
	flaggy.String(&encodingFlag, "e", "encoding", "Text encoding to force on the child (HGENCODING)")
	flaggy.StringSlice(&configOverrides, "o", "config", "k=v config override for the child, repeatable")
	flaggy.String(&runLine, "r", "run", "Run one hg command line over the session and exit with its code")
	flaggy.SetVersion(info)

	flaggy.Parse()

	if dumpConfigFlag {
		var buf bytes.Buffer
		encoder := yaml.NewEncoder(&buf)
		err := encoder.Encode(config.GetDefaultConfig())
		if err != nil {
			log.Fatal(err.Error())
		}
		fmt.Printf("%v\n", buf.String())
		os.Exit(0)
	}

	appConfig, err := config.NewAppConfig("hgpipe", version, commit, date, buildSource, debuggingFlag)
	if err != nil {
		log.Fatal(err.Error())
	}

	probe, err := app.NewApp(appConfig, &cmdserver.OpenOptions{
		RepoPath:        repoFlag,
		HgBinary:        hgBinaryFlag,
		Encoding:        encodingFlag,
		ConfigOverrides: configOverrides,
	})
	if err == nil {
		defer probe.Close()
		err = run(probe)
	}

	if err != nil {
		if errMessage, known := probe.KnownError(err); known {
			log.Println(errMessage)
			os.Exit(1)
		}

		newErr := errors.Wrap(err, 0)
		stackTrace := newErr.ErrorStack()
		probe.Log.Error(stackTrace)

		log.Fatal(fmt.Sprintf("An error occurred:\n\n%s", stackTrace))
	}
}

func run(probe *app.App) error {
	switch {
	case runLine != "":
		code, err := probe.RunLine(os.Stdout, runLine)
		if err != nil {
			return err
		}
		_ = probe.Close()
		os.Exit(int(code))
		return nil
	case smokeFlag:
		return probe.Smoke(os.Stdout)
	default:
		return probe.Report(os.Stdout)
	}
}
