package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/ipcollateral/lending-services/models/common"
	"github.com/ipcollateral/lending-services/models/lending"
	"github.com/ipcollateral/lending-services/util/testutil"
	"github.com/ipcollateral/lending-services/workers"
	"github.com/ipcollateral/lending-services/workflow"
	"github.com/nsqio/go-nsq"
	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDelegate stands in for the nsqd connection behind a
// message.
type recordingDelegate struct {
	mutex    sync.Mutex
	finished int
	requeued []time.Duration
	touched  int
}

func (d *recordingDelegate) OnFinish(m *nsq.Message) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.finished++
}

func (d *recordingDelegate) OnRequeue(m *nsq.Message, delay time.Duration, backoff bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.requeued = append(d.requeued, delay)
}

func (d *recordingDelegate) OnTouch(m *nsq.Message) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.touched++
}

func (d *recordingDelegate) Finished() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.finished
}

func (d *recordingDelegate) Requeued() []time.Duration {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]time.Duration(nil), d.requeued...)
}

type finalizeFunc func(ctx context.Context, req *lending.VerificationRequest) (*lending.Asset, error)

type fakeFinalizer struct {
	mutex    sync.Mutex
	requests []string
	finalize finalizeFunc
}

func (f *fakeFinalizer) Finalize(ctx context.Context, req *lending.VerificationRequest) (*lending.Asset, error) {
	f.mutex.Lock()
	f.requests = append(f.requests, req.ID)
	f.mutex.Unlock()
	return f.finalize(ctx, req)
}

func (f *fakeFinalizer) Requests() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string(nil), f.requests...)
}

func verified(ctx context.Context, req *lending.VerificationRequest) (*lending.Asset, error) {
	return testutil.GetVerifiedAsset(), nil
}

func newWorker(finalize finalizeFunc) (*workers.VerificationWorker, *fakeFinalizer) {
	finalizer := &fakeFinalizer{finalize: finalize}
	settings := workers.NewVerificationSettings(4, 2, 3, 5*time.Second, time.Minute)
	worker := workers.NewVerificationWorker(finalizer, settings, logging.MustGetLogger("workers_test"))
	return worker, finalizer
}

func newMessage(t *testing.T, requestID string, attempts uint16) (*nsq.Message, *recordingDelegate) {
	req := testutil.GetVerificationRequest()
	req.ID = requestID
	body, err := json.Marshal(workflow.NewVerificationEvent(req, nil, testutil.RegisteredAt))
	require.Nil(t, err)
	var id nsq.MessageID
	copy(id[:], requestID)
	message := nsq.NewMessage(id, body)
	message.Attempts = attempts
	delegate := &recordingDelegate{}
	message.Delegate = delegate
	return message, delegate
}

func TestHandleMessage_Finishes(t *testing.T) {
	worker, finalizer := newWorker(verified)
	worker.Start()

	message, delegate := newMessage(t, testutil.RequestID, 1)
	require.Nil(t, worker.HandleMessage(message))

	assert.Eventually(t, func() bool { return delegate.Finished() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{testutil.RequestID}, finalizer.Requests())
	assert.Empty(t, delegate.Requeued())
	assert.Eventually(t, func() bool { return !worker.InFlight.Holds(testutil.RequestID) },
		time.Second, 5*time.Millisecond)
}

func TestHandleMessage_DropsDuplicates(t *testing.T) {
	worker, finalizer := newWorker(verified)
	worker.InFlight.Claim(testutil.RequestID)

	message, _ := newMessage(t, testutil.RequestID, 1)
	assert.Nil(t, worker.HandleMessage(message))
	assert.Equal(t, 0, len(worker.ProcessChannel))
	assert.Empty(t, finalizer.Requests())
}

func TestHandleMessage_DropsUnreadable(t *testing.T) {
	worker, _ := newWorker(verified)
	message := nsq.NewMessage(nsq.MessageID{}, []byte(`{"request": null}`))
	assert.Nil(t, worker.HandleMessage(message))
	message = nsq.NewMessage(nsq.MessageID{}, []byte(`12345`))
	assert.Nil(t, worker.HandleMessage(message))
	assert.Equal(t, 0, len(worker.ProcessChannel))
}

func TestProcessItem_RequeuesTransientErrors(t *testing.T) {
	worker, _ := newWorker(func(ctx context.Context, req *lending.VerificationRequest) (*lending.Asset, error) {
		return nil, errors.New("redis: connection refused")
	})
	worker.Start()

	message, delegate := newMessage(t, testutil.RequestID, 1)
	require.Nil(t, worker.HandleMessage(message))
	assert.Eventually(t, func() bool { return len(delegate.Requeued()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 5*time.Second, delegate.Requeued()[0])
	assert.Equal(t, 0, delegate.Finished())
}

func TestProcessItem_GivesUpAfterMaxAttempts(t *testing.T) {
	worker, _ := newWorker(func(ctx context.Context, req *lending.VerificationRequest) (*lending.Asset, error) {
		return nil, errors.New("redis: connection refused")
	})
	worker.Start()

	message, delegate := newMessage(t, testutil.RequestID, 3)
	require.Nil(t, worker.HandleMessage(message))
	assert.Eventually(t, func() bool { return delegate.Finished() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, delegate.Requeued())
}

func TestProcessItem_FatalErrors(t *testing.T) {
	worker, _ := newWorker(func(ctx context.Context, req *lending.VerificationRequest) (*lending.Asset, error) {
		return nil, fmt.Errorf("%w: request %s", lending.ErrAssetNotFound, req.ID)
	})
	worker.Start()

	message, delegate := newMessage(t, testutil.RequestID, 1)
	require.Nil(t, worker.HandleMessage(message))
	assert.Eventually(t, func() bool { return delegate.Finished() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, delegate.Requeued())
}

func TestIsFatal(t *testing.T) {
	assert.True(t, workers.IsFatal(fmt.Errorf("wrapped: %w", lending.ErrInvalidTransition)))
	assert.True(t, workers.IsFatal(lending.ErrAssetNotFound))
	assert.False(t, workers.IsFatal(context.DeadlineExceeded))
	assert.False(t, workers.IsFatal(errors.New("timeout")))
	assert.True(t, workers.IsFatal(common.NewHttpError("bad key", nil, http.MethodPost, "http://verify/token", http.StatusUnauthorized)))
	assert.False(t, workers.IsFatal(common.NewHttpError("busy", nil, http.MethodPost, "http://verify/token", http.StatusBadGateway)))
}

func TestSigTerm_RequeuesPollsInProgress(t *testing.T) {
	started := make(chan struct{})
	worker, _ := newWorker(func(ctx context.Context, req *lending.VerificationRequest) (*lending.Asset, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	worker.Start()

	message, delegate := newMessage(t, testutil.RequestID, 1)
	require.Nil(t, worker.HandleMessage(message))
	<-started

	worker.KillChannel <- syscall.SIGTERM
	assert.Eventually(t, func() bool { return len(delegate.Requeued()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, delegate.Finished())

	assert.Eventually(t, func() bool { return worker.GetSigTermState().Completed }, time.Second, 5*time.Millisecond)
	state := worker.GetSigTermState()
	assert.True(t, state.Received)
	assert.True(t, state.Completed)
	assert.Equal(t, 1, state.ItemsInProcess)

	// Nothing new is accepted after shutdown.
	late, _ := newMessage(t, testutil.RequestID+":late", 1)
	assert.NotNil(t, worker.HandleMessage(late))
}

func TestTask_NSQStartTouchesUntilFinished(t *testing.T) {
	message, delegate := newMessage(t, testutil.RequestID, 1)
	event, err := workflow.VerificationEventFromJSON(message.Body)
	require.Nil(t, err)

	task := workers.NewTask(message, event)
	assert.Equal(t, testutil.RequestID, task.RequestID())
	task.NSQStart(10 * time.Millisecond)
	assert.True(t, task.StartCalled())

	assert.Eventually(t, func() bool {
		delegate.mutex.Lock()
		defer delegate.mutex.Unlock()
		return delegate.touched > 0
	}, time.Second, 5*time.Millisecond)

	task.NSQFinish()
	assert.Eventually(t, task.TickerStopped, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, delegate.Finished())
	assert.True(t, message.HasResponded())
}
