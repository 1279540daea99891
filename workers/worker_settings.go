package workers

import (
	"encoding/json"
	"time"

	"github.com/ipcollateral/lending-services/constants"
)

// Settings contains settings for a queue worker.
type Settings struct {
	// ChannelBufferSize is the size of the buffer for the
	// ProcessChannel. It is also NSQ's max_in_flight.
	ChannelBufferSize int

	// ItemTimeout bounds the time spent on one message, including
	// the whole polling budget. Zero means no limit.
	ItemTimeout time.Duration

	// MaxAttempts is the maximum number of times NSQ should deliver
	// a message before the worker gives up on it. This applies only
	// to failures from transient errors. Messages that fail with
	// fatal errors are never retried.
	MaxAttempts int

	// NSQChannel is the NSQ channel the worker should subscribe
	// to to receive messages.
	NSQChannel string

	// NSQTopic is the NSQ topic the worker should subscribe
	// to to receive messages.
	NSQTopic string

	// NumberOfWorkers is the number of go routines processing
	// messages. Each one holds at most one poll open at a time.
	NumberOfWorkers int

	// RequeueTimeout describes how long of a timeout to set
	// on the NSQ requeue after an item fails with non-fatal
	// errors.
	RequeueTimeout time.Duration

	// TouchInterval is how often the worker touches an in-flight
	// message so nsqd doesn't time it out.
	TouchInterval time.Duration
}

// NewVerificationSettings returns settings for a worker consuming
// verification requests.
func NewVerificationSettings(bufSize, numWorkers, maxAttempts int, requeueTimeout, itemTimeout time.Duration) *Settings {
	return &Settings{
		ChannelBufferSize: bufSize,
		ItemTimeout:       itemTimeout,
		MaxAttempts:       maxAttempts,
		NSQChannel:        constants.ChannelVerificationWorker,
		NSQTopic:          constants.TopicVerificationRequested,
		NumberOfWorkers:   numWorkers,
		RequeueTimeout:    requeueTimeout,
		TouchInterval:     defaultTouchInterval,
	}
}

func (settings *Settings) ToJSON() string {
	data, _ := json.Marshal(settings)
	return string(data)
}
