package workflow

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ipcollateral/lending-services/models/lending"
	"github.com/ipcollateral/lending-services/network"
)

// AssetStore persists each wallet's asset list. Lists are read and
// written whole.
type AssetStore interface {
	AssetsGet(ctx context.Context, walletAddress string) ([]*lending.Asset, error)
	AssetsSave(ctx context.Context, walletAddress string, assets []*lending.Asset) error
}

// MediaStore keeps asset media where the verification service can
// fetch it.
type MediaStore interface {
	Upload(ctx context.Context, filename, contentType string, data []byte, uploadedAt time.Time) (*network.MediaObject, error)
}

// Registrar submits tokens to the verification service.
type Registrar interface {
	Register(ctx context.Context, token *lending.TokenRequest) (*lending.StatusResponse, error)
}

// Poller waits for a verification verdict. It never fails.
type Poller interface {
	Poll(ctx context.Context, requestID string) *lending.VerificationResult
}

// Publisher announces workflow events on the queue.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, v interface{}) error
}

// Ledger is the lending contract and the IP asset registry it lends
// against.
type Ledger interface {
	IsRegistered(ctx context.Context, asset common.Address) (bool, error)
	InitiateVerification(ctx context.Context, asset common.Address, externalID string, assessedValue *big.Int) (*types.Receipt, error)
	RecordVerificationResult(ctx context.Context, externalID string, verified bool, riskScore *big.Int) (*types.Receipt, error)
	HandleVerificationTimeout(ctx context.Context, externalID string) (*types.Receipt, error)
	CreateLoan(ctx context.Context, asset common.Address, amount, duration *big.Int, loanToken common.Address, borrowerChainID *big.Int) (*big.Int, *types.Receipt, error)
	RepayLoan(ctx context.Context, loanID *big.Int) (*types.Receipt, error)
	ApproveLoanToken(ctx context.Context, token common.Address, amount *big.Int) (*types.Receipt, error)
	CalculateTotalOwed(ctx context.Context, loanID *big.Int) (*big.Int, error)
	GetUserLoans(ctx context.Context, user common.Address) ([]*big.Int, error)
	GetLoan(ctx context.Context, loanID *big.Int) (*lending.Loan, error)
	GetIPCollateral(ctx context.Context, asset common.Address) (*lending.Collateral, error)
}
