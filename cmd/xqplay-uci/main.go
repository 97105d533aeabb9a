package main

import (
	"flag"
	"log"
	"os"
	"runtime/pprof"

	"github.com/rs/zerolog"

	"github.com/hailam/xqplay/internal/uci"
)

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")

func main() {
	flag.Parse()

	// CPU profiling via flag or environment variable.
	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	// Stdout is reserved for the protocol; engine logs go to stderr
	// until a Debug Log File is configured.
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().
		Level(zerolog.WarnLevel)

	protocol := uci.New(logger)
	protocol.Run()
}
