package main

import (
	ctx "context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ipcollateral/lending-services/models/common"
	"github.com/ipcollateral/lending-services/services"
	"github.com/ipcollateral/lending-services/util/cli"
	"github.com/ipcollateral/lending-services/workflow"
)

// exitTempFail tells callers the registration may succeed if retried.
const exitTempFail = 75

type options struct {
	wallet      string
	asset       string
	name        string
	description string
	value       string
	file        string
	async       bool
	verbose     bool
	help        bool
}

func main() {
	opts := parseOpts()
	if opts.help {
		printHelp()
		os.Exit(0)
	}
	if opts.file == "" || opts.wallet == "" || opts.asset == "" {
		fmt.Fprintln(os.Stderr, "-wallet, -asset and -file are required")
		printHelp()
		os.Exit(2)
	}
	media, err := os.ReadFile(opts.file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	context := newContext(opts.verbose)
	defer context.Close()

	// Ctrl-C stops polling. The asset stays PENDING and the verification
	// worker can finish it.
	runCtx, stop := signal.NotifyContext(ctx.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	input := &workflow.RegistrationInput{
		WalletAddress: opts.wallet,
		AssetAddress:  opts.asset,
		Name:          opts.name,
		Description:   opts.description,
		AssessedValue: opts.value,
		Filename:      filepath.Base(opts.file),
		Media:         media,
	}
	var result interface{}
	if opts.async {
		result, err = context.Registration.Register(runCtx, input)
	} else {
		result, err = context.Registration.RegisterAndVerify(runCtx, input)
	}
	if err != nil {
		context.Logger.Errorf("Registration of %s failed: %s", opts.asset, common.Detail(err))
		fmt.Fprintln(os.Stderr, err)
		var workflowErr *common.Error
		if errors.As(err, &workflowErr) && !workflowErr.IsFatal {
			os.Exit(exitTempFail)
		}
		os.Exit(1)
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

func parseOpts() options {
	opts := options{}
	flag.StringVar(&opts.wallet, "wallet", "", "Address of the borrower's wallet")
	flag.StringVar(&opts.asset, "asset", "", "Address of the IP asset")
	flag.StringVar(&opts.name, "name", "", "Name of the asset")
	flag.StringVar(&opts.description, "description", "", "Description of the asset")
	flag.StringVar(&opts.value, "value", "", "Assessed value in ether, e.g. 1.5")
	flag.StringVar(&opts.file, "file", "", "Path to the image, video or audio file")
	flag.BoolVar(&opts.async, "async", false, "Queue the request for verification_worker instead of polling here")
	flag.BoolVar(&opts.verbose, "verbose", false, "Also print log messages to stderr")
	flag.BoolVar(&opts.help, "help", false, "Print help message")
	flag.Parse()
	return opts
}

func printHelp() {
	message := `
register_asset registers an IP asset as loan collateral. It uploads the
media file, submits it to the verification service, starts on-chain
verification tracking, and stores the asset as PENDING.

Without -async, it then polls for the verdict and prints the final
asset. With -async, it prints the verification request and leaves
polling to verification_worker.

Exits with status 75 when the verification service was unavailable and
the same command may succeed later, and 1 for any other failure.

Example:

    register_asset -wallet 0xfB69... -asset 0x5aAe... -name Sunrise \
        -description "Oil on canvas" -value 1.5 -file sunrise.png
`
	fmt.Println(message)
	flag.PrintDefaults()
	fmt.Println(cli.EnvMessage)
}

func newContext(verbose bool) *services.Context {
	if verbose {
		return services.NewConsoleContext()
	}
	return services.NewContext()
}
