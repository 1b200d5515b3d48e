// Command lydplay compiles a patch expression and plays it through the
// default audio device (in builds with the headless tag the player never
// pulls from the engine, so nothing is rendered or heard).
//
// Grounded on the teacher's former main.go entry-point shape (parse argv,
// construct the engine, start playback, block until done) adapted to
// spf13/pflag long-flag parsing in place of raw os.Args indexing, the
// one CLI dependency in the retrieval pack's toolbelt.
package main

import (
	"fmt"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/opcodetape/lyd"
)

func main() {
	var (
		bankPath   = pflag.String("patch-bank", "", "YAML patch bank file")
		patchName  = pflag.String("patch", "", "patch name to play, from --patch-bank")
		source     = pflag.String("source", "", "inline expression source, used when --patch-bank is not given")
		note       = pflag.Float64("note", 440, "frequency in Hz bound to the patch's \"freq\" variable, if present")
		duration   = pflag.Float64("duration", 1.0, "seconds to play before releasing")
		sampleRate = pflag.Float64("sample-rate", 44100, "render sample rate in Hz")
		verbose    = pflag.Bool("verbose", false, "enable debug logging")
	)
	pflag.Parse()

	logLevel := charmlog.InfoLevel
	if *verbose {
		logLevel = charmlog.DebugLevel
	}
	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{Level: logLevel, Prefix: "lydplay"})

	src := *source
	if *bankPath != "" {
		bank, err := lyd.LoadPatchBank(*bankPath)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		patch := bank.Find(*patchName)
		if patch == nil {
			logger.Fatalf("no patch named %q in %s", *patchName, *bankPath)
		}
		src = patch.Source
		if bank.SampleRate > 0 {
			*sampleRate = bank.SampleRate
		}
	}
	if src == "" {
		fmt.Fprintln(os.Stderr, "lydplay: one of --source or --patch-bank/--patch is required")
		pflag.Usage()
		os.Exit(2)
	}

	engine := lyd.New(
		lyd.WithSampleRate(*sampleRate),
		lyd.WithFormat(lyd.FormatF32),
	)

	prog, err := engine.Compile(src)
	if err != nil {
		logger.Fatalf("compile error: %v", err)
	}

	voice := engine.Play(prog)
	if prog.VarCount() > 0 {
		for _, name := range prog.VarNames() {
			if name == "freq" {
				voice.SetParam("freq", *note, lyd.InterpStep)
			}
		}
	}
	voice.SetDuration(int64(*duration * *sampleRate))

	player, err := lyd.NewOtoPlayer(int(*sampleRate))
	if err != nil {
		logger.Fatalf("audio backend: %v", err)
	}
	player.SetupPlayer(engine)
	player.Start()
	defer player.Close()

	time.Sleep(time.Duration(*duration*1000) * time.Millisecond)
	time.Sleep(300 * time.Millisecond) // let the release tail ring out
}
