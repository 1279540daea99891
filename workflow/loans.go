package workflow

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipcollateral/lending-services/constants"
	"github.com/ipcollateral/lending-services/models/lending"
	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentReads caps the number of ledger view calls ListLoans
// and RefreshAssets run at once.
const maxConcurrentReads = 8

// LoanService creates and repays loans against verified collateral and
// keeps stored assets in line with the lending contract.
type LoanService struct {
	Assets          AssetStore
	Ledger          Ledger
	Locks           *WalletLocks
	Logger          *logging.Logger
	LoanToken       common.Address
	BorrowerChainID *big.Int
}

// LoanRequest describes a new loan. Amount is in wei of the loan token
// and Duration in seconds.
type LoanRequest struct {
	WalletAddress string
	AssetAddress  string
	Amount        *big.Int
	Duration      *big.Int
}

// CreateLoan borrows against a stored asset. The asset must be
// VERIFIED and eligible. It returns the new loan's id.
func (s *LoanService) CreateLoan(ctx context.Context, loanReq *LoanRequest) (*big.Int, error) {
	if s.Ledger == nil {
		return nil, ErrLedgerNotConfigured
	}
	if loanReq.Amount == nil || loanReq.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("Loan amount must be greater than zero")
	}
	if loanReq.Duration == nil || loanReq.Duration.Sign() <= 0 {
		return nil, fmt.Errorf("Loan duration must be greater than zero")
	}
	wallet, err := NormalizeAddress("Wallet address", loanReq.WalletAddress)
	if err != nil {
		return nil, err
	}
	assets, err := s.Assets.AssetsGet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("Could not load assets for %s: %w", wallet, err)
	}
	asset, err := lending.FindAsset(assets, loanReq.AssetAddress)
	if err != nil {
		return nil, err
	}
	if asset.VerificationStatus != lending.StatusVerified || !asset.IsEligible {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotEligible, asset.Address, asset.VerificationStatus)
	}
	chainID := s.BorrowerChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	loanID, receipt, err := s.Ledger.CreateLoan(ctx, common.HexToAddress(asset.Address),
		loanReq.Amount, loanReq.Duration, s.LoanToken, chainID)
	if err != nil {
		return nil, fmt.Errorf("createLoan for %s failed: %w", asset.Address, err)
	}
	if loanID == nil {
		return nil, fmt.Errorf("createLoan for %s emitted no LoanCreated event (tx %s)",
			asset.Address, receipt.TxHash.Hex())
	}
	s.logger().Infof("Created loan %s against %s in tx %s", loanID, asset.Address, receipt.TxHash.Hex())
	return loanID, nil
}

// RepayLoan approves the amount owed in the loan token, then repays.
// It returns the amount repaid.
func (s *LoanService) RepayLoan(ctx context.Context, loanID *big.Int) (*big.Int, error) {
	if s.Ledger == nil {
		return nil, ErrLedgerNotConfigured
	}
	owed, err := s.Ledger.CalculateTotalOwed(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("Could not get amount owed on loan %s: %w", loanID, err)
	}
	loan, err := s.Ledger.GetLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("Could not read loan %s: %w", loanID, err)
	}
	if !loan.IsActive || loan.IsRepaid {
		return nil, fmt.Errorf("Loan %s is not active", loanID)
	}
	token := common.HexToAddress(loan.LoanToken)
	if _, err = s.Ledger.ApproveLoanToken(ctx, token, owed); err != nil {
		return nil, fmt.Errorf("Could not approve repayment of loan %s: %w", loanID, err)
	}
	receipt, err := s.Ledger.RepayLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("repayLoan %s failed: %w", loanID, err)
	}
	s.logger().Infof("Repaid %s on loan %s in tx %s", owed, loanID, receipt.TxHash.Hex())
	return owed, nil
}

// ListLoans returns the wallet's loans ordered by id.
func (s *LoanService) ListLoans(ctx context.Context, walletAddress string) ([]*lending.Loan, error) {
	if s.Ledger == nil {
		return nil, ErrLedgerNotConfigured
	}
	wallet, err := NormalizeAddress("Wallet address", walletAddress)
	if err != nil {
		return nil, err
	}
	ids, err := s.Ledger.GetUserLoans(ctx, common.HexToAddress(wallet))
	if err != nil {
		return nil, fmt.Errorf("Could not list loans for %s: %w", wallet, err)
	}
	sorted := make([]*big.Int, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })

	loans := make([]*lending.Loan, len(sorted))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentReads)
	for i, id := range sorted {
		i, id := i, id
		group.Go(func() error {
			loan, err := s.Ledger.GetLoan(groupCtx, id)
			if err != nil {
				return fmt.Errorf("Could not read loan %s: %w", id, err)
			}
			loans[i] = loan
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		return nil, err
	}
	return loans, nil
}

// RefreshAssets overwrites each stored asset's verification fields
// with the lending contract's record. Assets whose record cannot be
// read keep their stored values.
func (s *LoanService) RefreshAssets(ctx context.Context, walletAddress string) ([]*lending.Asset, error) {
	if s.Ledger == nil {
		return nil, ErrLedgerNotConfigured
	}
	wallet, err := NormalizeAddress("Wallet address", walletAddress)
	if err != nil {
		return nil, err
	}
	unlock := s.Locks.Lock(wallet)
	defer unlock()
	assets, err := s.Assets.AssetsGet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("Could not load assets for %s: %w", wallet, err)
	}

	records := make([]*lending.Collateral, len(assets))
	group := new(errgroup.Group)
	group.SetLimit(maxConcurrentReads)
	for i, asset := range assets {
		i, asset := i, asset
		group.Go(func() error {
			collateral, err := s.Ledger.GetIPCollateral(ctx, common.HexToAddress(asset.Address))
			if err != nil {
				s.logger().Warningf("Could not read collateral record for %s, keeping stored values: %v",
					asset.Address, err)
				return nil
			}
			records[i] = collateral
			return nil
		})
	}
	group.Wait()

	for i, collateral := range records {
		if collateral == nil {
			continue
		}
		if lending.SameAddress(collateral.IPAsset, constants.EmptyAddress) {
			s.logger().Infof("No collateral record on-chain for %s", assets[i].Address)
			continue
		}
		if err := assets[i].ApplyCollateral(collateral); err != nil {
			s.logger().Warningf("Ignoring collateral record for %s: %v", assets[i].Address, err)
		}
	}
	if err = s.Assets.AssetsSave(ctx, wallet, assets); err != nil {
		return nil, fmt.Errorf("Could not save assets for %s: %w", wallet, err)
	}
	return assets, nil
}

func (s *LoanService) logger() *logging.Logger {
	if s.Logger == nil {
		return defaultLogger
	}
	return s.Logger
}
