package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipcollateral/lending-services/models/common"
	"github.com/ipcollateral/lending-services/models/lending"
	"github.com/ipcollateral/lending-services/workflow"
	"github.com/nsqio/go-nsq"
	"github.com/op/go-logging"
)

// Finalizer completes a registered verification request.
// *workflow.Registration implements it.
type Finalizer interface {
	Finalize(ctx context.Context, req *lending.VerificationRequest) (*lending.Asset, error)
}

// VerificationWorker consumes verification requests from NSQ, polls
// each to a verdict, and records the verdict.
type VerificationWorker struct {
	*Base
	Finalizer Finalizer
}

// NewVerificationWorker returns a worker that is not yet consuming.
// Call Start, then RegisterAsNsqConsumer.
func NewVerificationWorker(finalizer Finalizer, settings *Settings, logger *logging.Logger) *VerificationWorker {
	return &VerificationWorker{
		Base:      NewBase(settings, logger),
		Finalizer: finalizer,
	}
}

// Start launches the processing goroutines and the signal handler.
func (w *VerificationWorker) Start() {
	for i := 0; i < w.Settings.NumberOfWorkers; i++ {
		go w.ProcessItems()
	}
	go w.HandleSignals()
}

// HandleMessage decodes the request and queues it for processing.
// Malformed messages and requests already in process are dropped by
// returning nil, which tells NSQ the message is done.
func (w *VerificationWorker) HandleMessage(message *nsq.Message) error {
	event, err := workflow.VerificationEventFromJSON(message.Body)
	if err != nil {
		w.Logger.Errorf("Dropping unreadable message %s: %v", message.ID, err)
		return nil
	}
	if w.Context().Err() != nil {
		return fmt.Errorf("worker is shutting down, not accepting %s", event.Request.ID)
	}
	if w.ImAlreadyProcessingThis(event.Request.ID) {
		return nil
	}
	task := NewTask(message, event)
	task.NSQStart(w.Settings.TouchInterval)
	w.Logger.Infof("Queued %s (event %s, attempt %d)", task.RequestID(), event.EventID, message.Attempts)
	w.ProcessChannel <- task
	return nil
}

// ProcessItems finalizes tasks from the ProcessChannel until the
// channel is closed.
func (w *VerificationWorker) ProcessItems() {
	for task := range w.ProcessChannel {
		w.processItem(task)
	}
}

func (w *VerificationWorker) processItem(task *Task) {
	defer w.RemoveFromInProcessList(task.RequestID())

	ctx, cancel := w.taskContext()
	defer cancel()
	asset, err := w.Finalizer.Finalize(ctx, task.Event.Request)

	switch {
	case err == nil:
		w.Logger.Infof("Finished %s: asset %s is %s (risk %d)", task.RequestID(),
			asset.Address, asset.VerificationStatus, asset.RiskScore)
		task.NSQFinish()
	case w.Context().Err() != nil:
		w.Logger.Warningf("Requeueing %s because the worker is shutting down", task.RequestID())
		task.NSQRequeue(w.Settings.RequeueTimeout)
	case IsFatal(err):
		w.Logger.Errorf("Giving up on %s: %s", task.RequestID(), common.Detail(err))
		task.NSQFinish()
	case int(task.NSQMessage.Attempts) >= w.Settings.MaxAttempts:
		w.Logger.Errorf("Giving up on %s after %d attempts: %s", task.RequestID(),
			task.NSQMessage.Attempts, common.Detail(err))
		task.NSQFinish()
	default:
		w.Logger.Warningf("Requeueing %s after attempt %d: %v", task.RequestID(),
			task.NSQMessage.Attempts, err)
		task.NSQRequeue(w.Settings.RequeueTimeout)
	}
}

func (w *VerificationWorker) taskContext() (context.Context, context.CancelFunc) {
	if w.Settings.ItemTimeout > 0 {
		return context.WithTimeout(w.Context(), w.Settings.ItemTimeout)
	}
	return context.WithCancel(w.Context())
}

// IsFatal returns true for errors that retrying cannot fix: the asset
// is gone, its verdict was already recorded, or a service refused the
// request outright.
func IsFatal(err error) bool {
	return errors.Is(err, lending.ErrAssetNotFound) ||
		errors.Is(err, lending.ErrInvalidTransition) ||
		common.IsPermanent(err)
}
