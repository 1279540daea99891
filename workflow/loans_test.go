package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipcollateral/lending-services/models/lending"
	"github.com/ipcollateral/lending-services/network"
	"github.com/ipcollateral/lending-services/util/testutil"
	"github.com/ipcollateral/lending-services/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoanService(t *testing.T) (*workflow.LoanService, *network.RedisClient, *fakeLedger) {
	store := newAssetStore(t)
	ledger := newFakeLedger()
	service := &workflow.LoanService{
		Assets:          store,
		Ledger:          ledger,
		Locks:           &workflow.WalletLocks{},
		LoanToken:       common.HexToAddress(testutil.LoanToken),
		BorrowerChainID: big.NewInt(1315),
	}
	return service, store, ledger
}

func loanRequest() *workflow.LoanRequest {
	return &workflow.LoanRequest{
		WalletAddress: testutil.WalletAddress,
		AssetAddress:  testutil.AssetAddress,
		Amount:        big.NewInt(500),
		Duration:      big.NewInt(86400),
	}
}

func TestCreateLoan(t *testing.T) {
	service, store, ledger := newLoanService(t)
	saveAssets(t, store, testutil.GetVerifiedAsset())

	loanID, err := service.CreateLoan(context.Background(), loanRequest())
	require.Nil(t, err)
	assert.Equal(t, int64(1), loanID.Int64())
	assert.Equal(t, []string{
		fmt.Sprintf("createLoan(%s,500,86400,%s,1315)",
			checksum(testutil.AssetAddress), checksum(testutil.LoanToken)),
	}, ledger.Calls())
}

func TestCreateLoan_NotEligible(t *testing.T) {
	service, store, ledger := newLoanService(t)

	pending := testutil.GetPendingAsset()
	saveAssets(t, store, pending)
	_, err := service.CreateLoan(context.Background(), loanRequest())
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, workflow.ErrNotEligible))

	// Verified on paper but flagged ineligible on-chain.
	verified := testutil.GetVerifiedAsset()
	verified.IsEligible = false
	saveAssets(t, store, verified)
	_, err = service.CreateLoan(context.Background(), loanRequest())
	assert.True(t, errors.Is(err, workflow.ErrNotEligible))

	assert.Empty(t, ledger.Calls())
}

func TestCreateLoan_BadRequests(t *testing.T) {
	service, store, _ := newLoanService(t)
	saveAssets(t, store, testutil.GetVerifiedAsset())

	req := loanRequest()
	req.Amount = big.NewInt(0)
	_, err := service.CreateLoan(context.Background(), req)
	assert.NotNil(t, err)

	req = loanRequest()
	req.Duration = nil
	_, err = service.CreateLoan(context.Background(), req)
	assert.NotNil(t, err)

	req = loanRequest()
	req.AssetAddress = testutil.OtherAsset
	_, err = service.CreateLoan(context.Background(), req)
	assert.True(t, errors.Is(err, lending.ErrAssetNotFound))

	service.Ledger = nil
	_, err = service.CreateLoan(context.Background(), loanRequest())
	assert.Equal(t, workflow.ErrLedgerNotConfigured, err)
}

func TestCreateLoan_LedgerFailure(t *testing.T) {
	service, store, ledger := newLoanService(t)
	saveAssets(t, store, testutil.GetVerifiedAsset())
	ledger.err = errChainDown

	_, err := service.CreateLoan(context.Background(), loanRequest())
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, errChainDown))
}

func activeLoan(id int64) *lending.Loan {
	return &lending.Loan{
		ID:         big.NewInt(id),
		Borrower:   testutil.WalletAddress,
		IPAsset:    testutil.AssetAddress,
		LoanAmount: big.NewInt(500),
		LoanToken:  testutil.LoanToken,
		StartTime:  big.NewInt(testutil.RegisteredAt.Unix()),
		Duration:   big.NewInt(86400),
		IsActive:   true,
	}
}

func TestRepayLoan(t *testing.T) {
	service, _, ledger := newLoanService(t)
	ledger.loans[7] = activeLoan(7)
	ledger.owed[7] = big.NewInt(525)

	repaid, err := service.RepayLoan(context.Background(), big.NewInt(7))
	require.Nil(t, err)
	assert.Equal(t, int64(525), repaid.Int64())
	assert.Equal(t, []string{
		fmt.Sprintf("approve(%s,525)", checksum(testutil.LoanToken)),
		"repayLoan(7)",
	}, ledger.Calls())
}

func TestRepayLoan_Failures(t *testing.T) {
	service, _, ledger := newLoanService(t)

	// Nothing owed on record.
	_, err := service.RepayLoan(context.Background(), big.NewInt(3))
	assert.True(t, errors.Is(err, errChainDown))

	repaid := activeLoan(4)
	repaid.IsActive = false
	repaid.IsRepaid = true
	ledger.loans[4] = repaid
	ledger.owed[4] = big.NewInt(0)
	_, err = service.RepayLoan(context.Background(), big.NewInt(4))
	assert.NotNil(t, err)

	ledger.loans[5] = activeLoan(5)
	ledger.owed[5] = big.NewInt(10)
	ledger.err = errChainDown
	_, err = service.RepayLoan(context.Background(), big.NewInt(5))
	assert.True(t, errors.Is(err, errChainDown))
	assert.Equal(t, []string{fmt.Sprintf("approve(%s,10)", checksum(testutil.LoanToken))}, ledger.Calls())
}

func TestListLoans(t *testing.T) {
	service, _, ledger := newLoanService(t)
	for _, id := range []int64{9, 2, 5} {
		ledger.loans[id] = activeLoan(id)
	}
	ledger.userLoans = []*big.Int{big.NewInt(9), big.NewInt(2), big.NewInt(5)}

	loans, err := service.ListLoans(context.Background(), testutil.WalletAddress)
	require.Nil(t, err)
	require.Equal(t, 3, len(loans))
	assert.Equal(t, int64(2), loans[0].ID.Int64())
	assert.Equal(t, int64(5), loans[1].ID.Int64())
	assert.Equal(t, int64(9), loans[2].ID.Int64())

	ledger.failLoans[5] = true
	_, err = service.ListLoans(context.Background(), testutil.WalletAddress)
	assert.True(t, errors.Is(err, errChainDown))
}

func TestListLoans_Empty(t *testing.T) {
	service, _, _ := newLoanService(t)
	loans, err := service.ListLoans(context.Background(), testutil.WalletAddress)
	require.Nil(t, err)
	assert.Empty(t, loans)
}

func TestRefreshAssets(t *testing.T) {
	service, store, ledger := newLoanService(t)
	verified := testutil.GetVerifiedAsset()
	other := lending.NewPendingAsset(testutil.OtherAsset, "other:1", testutil.AssessedValue, testutil.RegisteredAt)
	third := lending.NewPendingAsset("0x0000000000000000000000000000000000000042", "third:1", testutil.AssessedValue, testutil.RegisteredAt)
	saveAssets(t, store, verified, other, third)

	// On-chain record downgrades the first asset.
	ledger.collateral[common.HexToAddress(testutil.AssetAddress)] = &lending.Collateral{
		IPAsset:               checksum(testutil.AssetAddress),
		RiskScore:             big.NewInt(65),
		IsEligible:            false,
		LastValidated:         big.NewInt(1750090000),
		ExternalID:            testutil.RequestID,
		Status:                lending.StatusRejected.ChainValue(),
		VerificationTimestamp: big.NewInt(1750089000),
	}
	// Second asset's read fails, third has no record.
	ledger.failAssets[common.HexToAddress(testutil.OtherAsset)] = true

	assets, err := service.RefreshAssets(context.Background(), testutil.WalletAddress)
	require.Nil(t, err)
	require.Equal(t, 3, len(assets))

	assert.Equal(t, lending.StatusRejected, assets[0].VerificationStatus)
	assert.False(t, assets[0].IsEligible)
	assert.Equal(t, 65, assets[0].RiskScore)
	assert.Equal(t, int64(1750090000), assets[0].LastValidated)
	assert.Equal(t, int64(1750089000), assets[0].VerificationTimestamp)

	assert.Equal(t, other, assets[1])
	assert.Equal(t, third, assets[2])

	assert.Equal(t, assets, loadAssets(t, store))
}
