package workers

import (
	"sync/atomic"
	"time"

	"github.com/ipcollateral/lending-services/workflow"
	"github.com/nsqio/go-nsq"
)

const defaultTouchInterval = 30 * time.Second

// Task is a queued verification request on its way through the
// worker.
type Task struct {
	// Event is the decoded message body.
	Event *workflow.VerificationEvent

	// NSQMessage is the NSQ message the worker is processing.
	NSQMessage *nsq.Message

	nsqStopChannel chan bool

	// For testing
	nsqStartCalled bool

	// For testing
	tickerStopped atomic.Bool
}

// NewTask returns a Task for an NSQ message.
func NewTask(message *nsq.Message, event *workflow.VerificationEvent) *Task {
	return &Task{
		Event:      event,
		NSQMessage: message,
	}
}

// RequestID returns the id of the verification request.
func (task *Task) RequestID() string {
	return task.Event.Request.ID
}

// NSQStart disables NSQ autoresponse and touches the message every
// interval while the task is in process. Polling may outlast nsqd's
// message timeout.
func (task *Task) NSQStart(interval time.Duration) {
	task.NSQMessage.DisableAutoResponse()
	if interval <= 0 {
		interval = defaultTouchInterval
	}
	ticker := time.NewTicker(interval)
	stopChannel := make(chan bool)
	go func() {
		for {
			select {
			case <-ticker.C:
				task.NSQMessage.Touch()
			case <-stopChannel:
				ticker.Stop()
				task.tickerStopped.Store(true)
				return
			}
		}
	}()
	task.nsqStartCalled = true
	task.nsqStopChannel = stopChannel
}

// NSQRequeue requeues the message with the specified delay
// and stops sending touches.
func (task *Task) NSQRequeue(delay time.Duration) {
	task.stopTouching()
	task.NSQMessage.Requeue(delay)
}

// NSQFinish finishes the message and stops sending touches.
func (task *Task) NSQFinish() {
	task.stopTouching()
	task.NSQMessage.Finish()
}

func (task *Task) stopTouching() {
	if task.nsqStopChannel != nil {
		task.nsqStopChannel <- true
		task.nsqStopChannel = nil
	}
}

// StartCalled returns true if NSQStart() has been called on this object.
func (task *Task) StartCalled() bool {
	return task.nsqStartCalled
}

// TickerStopped returns true if either NSQFinish() or NSQRequeue()
// has stopped the touch ticker.
func (task *Task) TickerStopped() bool {
	return task.tickerStopped.Load()
}
