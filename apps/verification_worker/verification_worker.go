package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ipcollateral/lending-services/services"
	"github.com/ipcollateral/lending-services/util"
	"github.com/ipcollateral/lending-services/util/cli"
	"github.com/ipcollateral/lending-services/workers"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		os.Exit(0)
	}

	// If anything goes wrong, this panics.
	context := services.NewContext()
	defer context.Close()

	err := util.AcquirePidFile(context.Config.PidFile)
	if err != nil {
		context.Logger.Errorf("Exiting: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer util.DeletePidFile(context.Config.PidFile)

	numWorkers := opts.NumWorkers
	if numWorkers < 1 {
		numWorkers = context.Config.VerificationWorkers
	}
	settings := workers.NewVerificationSettings(
		opts.ChannelBufferSize,
		numWorkers,
		opts.MaxAttempts,
		opts.RequeueTimeout,
		opts.ItemTimeout,
	)
	context.Logger.Infof("Starting verification worker with settings %s", settings.ToJSON())

	worker := workers.NewVerificationWorker(context.Registration, settings, context.Logger)
	signal.Notify(worker.KillChannel, syscall.SIGINT, syscall.SIGTERM)
	worker.Start()

	// The worker starts handling messages as soon as it registers.
	err = worker.RegisterAsNsqConsumer(worker, context.Config.NsqLookupd)
	if err != nil {
		panic(fmt.Sprintf("Cannot register NSQ consumer: %v", err))
	}
	<-worker.NSQConsumer.StopChan
	context.Logger.Info("NSQ consumer stopped. Exiting.")
}

func printHelp() {
	message := `
verification_worker consumes verification requests from the NSQ topic
verification_requested. For each request it polls the verification
service until it reports a verdict or the poll budget runs out, records
the verdict on the wallet's asset and on the lending contract, and
publishes it to verification_completed.

Only one verification_worker may run per PID_FILE.
`
	fmt.Println(message)
	cli.PrintDefaults()
	fmt.Println(cli.EnvMessage)
}
