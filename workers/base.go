package workers

import (
	"context"
	"os"
	"sync"
	"syscall"

	"github.com/nsqio/go-nsq"
	"github.com/op/go-logging"
)

// SigTermState contains info about whether the current worker
// received SIGTERM (or SIGINT), and if so, what action it took
// in response to the signal.
type SigTermState struct {
	// Received indicates whether this worker received SIGTERM
	// or SIGINT.
	Received bool
	// Completed indicates whether this worker completed all of
	// its SIGTERM cleanup tasks.
	Completed bool
	// ItemsInProcess is the number of requests this worker was
	// polling when SIGTERM was received. Their polls are cancelled
	// and their messages requeued.
	ItemsInProcess int
}

// Base contains the structures common to queue workers.
type Base struct {
	Logger *logging.Logger

	// InFlight holds the ids of requests this worker is polling.
	// NSQ does not dedupe messages, so the worker must.
	InFlight *RequestRing

	// ProcessChannel is where the work actually happens.
	ProcessChannel chan *Task

	// KillChannel handles SIGTERM and SIGINT.
	KillChannel chan os.Signal

	Settings *Settings

	// NSQConsumer receives messages from NSQ.
	NSQConsumer *nsq.Consumer

	// ctx is the parent of every task's context. Cancelling it
	// stops all polls in progress.
	ctx    context.Context
	cancel context.CancelFunc

	sigTermState SigTermState
	stateMutex   sync.Mutex
}

// NewBase returns a Base with channels sized by settings.
func NewBase(settings *Settings, logger *logging.Logger) *Base {
	ctx, cancel := context.WithCancel(context.Background())
	return &Base{
		Logger:         logger,
		InFlight:       NewRequestRing(settings.ChannelBufferSize + settings.NumberOfWorkers),
		ProcessChannel: make(chan *Task, settings.ChannelBufferSize),
		KillChannel:    make(chan os.Signal, 1),
		Settings:       settings,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// RegisterAsNsqConsumer registers handler as an NSQ consumer on
// Settings.NSQTopic and Settings.NSQChannel. Note that as soon as you
// call this, the worker will start handling messages if any are
// available.
func (b *Base) RegisterAsNsqConsumer(handler nsq.Handler, nsqLookupd string) error {
	config := nsq.NewConfig()
	config.Set("heartbeat_interval", "10s")
	config.Set("max_in_flight", b.Settings.ChannelBufferSize)
	config.Set("max_attempts", b.Settings.MaxAttempts)
	consumer, err := nsq.NewConsumer(b.Settings.NSQTopic, b.Settings.NSQChannel, config)
	if err != nil {
		return err
	}
	consumer.SetLogger(NewNSQLogger(b.Logger), nsq.LogLevelInfo)
	b.NSQConsumer = consumer
	b.NSQConsumer.AddHandler(handler)
	err = b.NSQConsumer.ConnectToNSQLookupd(nsqLookupd)
	if err != nil {
		return err
	}
	b.Logger.Infof("Registered as NSQ consumer on %s/%s", b.Settings.NSQTopic, b.Settings.NSQChannel)
	return nil
}

// Context returns the worker's parent context. It is cancelled on
// SIGTERM or SIGINT.
func (b *Base) Context() context.Context {
	return b.ctx
}

// HandleSignals runs SIGTERM cleanup for each signal arriving on the
// KillChannel. It returns when the channel is closed.
func (b *Base) HandleSignals() {
	for signal := range b.KillChannel {
		b.doSigTermCleanup(signal)
	}
}

// ImAlreadyProcessingThis returns true and logs a message if this
// request is already being processed by this worker. Otherwise it
// marks the request as in process.
func (b *Base) ImAlreadyProcessingThis(requestID string) bool {
	if !b.InFlight.Claim(requestID) {
		b.Logger.Infof("Skipping %s because this worker is already polling it", requestID)
		return true
	}
	return false
}

// RemoveFromInProcessList releases requestID so a redelivered message
// for it can be processed.
func (b *Base) RemoveFromInProcessList(requestID string) {
	b.InFlight.Release(requestID)
}

// doSigTermCleanup disconnects from NSQ so nsqd stops sending us
// messages, then cancels every poll in progress. Cancelled tasks
// requeue their own messages for other workers.
func (b *Base) doSigTermCleanup(signal os.Signal) {
	if signal != syscall.SIGINT && signal != syscall.SIGTERM {
		return
	}
	b.stateMutex.Lock()
	b.sigTermState.Received = true
	b.stateMutex.Unlock()
	b.Logger.Warning("Worker received SIGTERM. Starting graceful shutdown.")

	if b.NSQConsumer != nil {
		b.Logger.Warning("SIGTERM step 1: Disconnect from NSQ")
		b.NSQConsumer.ChangeMaxInFlight(0)
		b.NSQConsumer.Stop()
	} else {
		b.Logger.Warning("SIGTERM step 1: No need to stop NSQ consumer because there isn't one.")
	}

	itemsInProcess := b.InFlight.IDs()
	b.Logger.Warningf("SIGTERM step 2: Cancel %d polls in progress", len(itemsInProcess))
	b.cancel()

	b.stateMutex.Lock()
	b.sigTermState.ItemsInProcess = len(itemsInProcess)
	b.sigTermState.Completed = true
	b.stateMutex.Unlock()
	b.Logger.Warning("SIGTERM: Graceful shutdown steps complete.")
}

// GetSigTermState returns this worker's SigTermState object, which
// contains info about whether this worker received SIGTERM or SIGINT
// and what action it took.
func (b *Base) GetSigTermState() SigTermState {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	return b.sigTermState
}
