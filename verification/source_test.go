package verification_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ipcollateral/lending-services/models/lending"
	"github.com/ipcollateral/lending-services/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoSourceIsDeterministic(t *testing.T) {
	src := verification.NewDemoSource(nil)
	ctx := context.Background()
	clean, flagged := 0, 0
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed:%d", i)
		first, err := src.FetchStatus(ctx, id)
		require.Nil(t, err)
		second, err := src.FetchStatus(ctx, id)
		require.Nil(t, err)
		assert.Equal(t, id, first.ID)
		assert.Equal(t, "completed", first.Infringements.Status)
		assert.True(t, first.IsTerminal())
		assert.Equal(t, first.Infringements.External, second.Infringements.External)

		result := verification.InfringementAnalyzer{}.Analyze(first, observedAt)
		assert.True(t, result.Verified)
		if len(first.Infringements.External) == 0 {
			clean++
		} else {
			assert.Equal(t, 20, result.RiskScore)
			flagged++
		}
	}
	assert.True(t, clean > 0)
	assert.True(t, flagged > 0)
}

func TestDemoSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := verification.NewDemoSource(nil).FetchStatus(ctx, "r1")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDemoSourceRegister(t *testing.T) {
	token := &lending.TokenRequest{
		ID:        "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed:1",
		CreatorID: "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359",
	}
	resp, err := verification.NewDemoSource(nil).Register(context.Background(), token)
	require.Nil(t, err)
	assert.Equal(t, token.ID, resp.ID)
	assert.Equal(t, token.CreatorID, resp.CreatorID)
	assert.Equal(t, "pending", resp.Infringements.Status)
	assert.False(t, resp.IsTerminal())
}

func TestSequenceSource(t *testing.T) {
	boom := errors.New("boom")
	src := verification.NewSequenceSource(
		verification.SequenceStep{Err: boom},
		verification.SequenceStep{Response: verification.StatusWithRemote("pending")},
	)
	ctx := context.Background()
	_, err := src.FetchStatus(ctx, "r1")
	assert.Equal(t, boom, err)
	resp, err := src.FetchStatus(ctx, "r1")
	require.Nil(t, err)
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, "pending", resp.Infringements.Status)

	// Last step repeats.
	resp, err = src.FetchStatus(ctx, "r1")
	require.Nil(t, err)
	assert.Equal(t, "pending", resp.Infringements.Status)
	assert.Equal(t, 3, src.Calls())

	_, err = verification.NewSequenceSource().FetchStatus(ctx, "r1")
	assert.NotNil(t, err)
}
