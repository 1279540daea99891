package workflow_test

import (
	"encoding/json"
	"testing"

	"github.com/ipcollateral/lending-services/util/testutil"
	"github.com/ipcollateral/lending-services/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationEvent(t *testing.T) {
	req := testutil.GetVerificationRequest()
	first := workflow.NewVerificationEvent(req, nil, testutil.RegisteredAt)
	second := workflow.NewVerificationEvent(req, nil, testutil.RegisteredAt)
	assert.Equal(t, 36, len(first.EventID))
	assert.NotEqual(t, first.EventID, second.EventID)

	data, err := json.Marshal(first)
	require.Nil(t, err)
	decoded, err := workflow.VerificationEventFromJSON(data)
	require.Nil(t, err)
	assert.Equal(t, first.EventID, decoded.EventID)
	assert.Equal(t, req.ID, decoded.Request.ID)
	assert.Equal(t, req.WalletAddress, decoded.Request.WalletAddress)
	assert.Nil(t, decoded.Result)
}

func TestVerificationEventFromJSON_Invalid(t *testing.T) {
	_, err := workflow.VerificationEventFromJSON([]byte(`{"event_id": "x"}`))
	assert.Equal(t, workflow.ErrMissingRequest, err)

	_, err = workflow.VerificationEventFromJSON([]byte(`{"request": {"id": ""}}`))
	assert.Equal(t, workflow.ErrMissingRequest, err)

	_, err = workflow.VerificationEventFromJSON([]byte(`not json`))
	assert.NotNil(t, err)
}
