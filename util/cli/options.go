package cli

import (
	"flag"
	"time"
)

// Options are the flags shared by queue workers.
type Options struct {
	ChannelBufferSize int
	ItemTimeout       time.Duration
	MaxAttempts       int
	NumWorkers        int
	PrintHelp         bool
	RequeueTimeout    time.Duration
}

var opts = Options{}
var defaultAttempts = 3
var defaultBufSize = 20
var defaultTimeout = 1 * time.Minute
var defaultItemTimeout = 10 * time.Minute

var EnvMessage = `This requires the following environment vars:

LENDING_CONFIG_DIR - Path to the directory containing the .env settings file.

LENDING_ENV - Name of the configuration to load. For example:
    test - Loads .env.test from LENDING_CONFIG_DIR
    demo - Loads .env.demo from LENDING_CONFIG_DIR
`

// Init registers the worker flags. A -workers value of zero means
// the app should use VERIFICATION_WORKERS from the config.
func Init() {
	flag.IntVar(&opts.ChannelBufferSize, "bufsize", defaultBufSize, "Channel buffer size for go workers")
	flag.DurationVar(&opts.ItemTimeout, "item-timeout", defaultItemTimeout, "Maximum time to spend polling one request before requeueing it")
	flag.IntVar(&opts.MaxAttempts, "max-attempts", defaultAttempts, "Maximum number of times a worker should attempt to process an item")
	flag.IntVar(&opts.NumWorkers, "workers", 0, "Number of go routines polling verification requests (0 uses VERIFICATION_WORKERS)")
	flag.BoolVar(&opts.PrintHelp, "help", false, "Print help message")
	flag.DurationVar(&opts.RequeueTimeout, "requeue-timeout", defaultTimeout, "Requeue timeout for reprocessing items with non-fatal errors. Format examples: 500ms, 12s, 10m, 3m30s, 3h")
}

func ParseOpts() Options {
	flag.Parse()
	return opts
}

func PrintDefaults() {
	flag.PrintDefaults()
}
