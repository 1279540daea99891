package network

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ipcollateral/lending-services/models/lending"
	"github.com/op/go-logging"
)

// ErrTransactionReverted means a transaction was mined but failed.
var ErrTransactionReverted = errors.New("transaction reverted")

// LedgerBackend is what the ledger client needs from a chain
// connection. *ethclient.Client satisfies it.
type LedgerBackend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// LedgerClient sends transactions to and reads from the lending
// contract. Each transaction waits until it is mined. A client is safe
// for concurrent use: nonces are assigned one transaction at a time.
type LedgerClient struct {
	backend        LedgerBackend
	lending        *bind.BoundContract
	registry       *bind.BoundContract
	lendingABI     abi.ABI
	erc20ABI       abi.ABI
	lendingAddress common.Address
	auth           *bind.TransactOpts
	logger         *logging.Logger

	// nonceMutex is held from the nonce read until the transaction
	// has been handed to the node. nextNonce is the nonce after the
	// last one this client sent.
	nonceMutex sync.Mutex
	nextNonce  uint64
}

// collateralTuple mirrors the getIPCollateral return tuple.
type collateralTuple struct {
	IpAsset               common.Address
	AssessedValue         *big.Int
	RiskScore             *big.Int
	IsEligible            bool
	LastValidated         *big.Int
	VerificationHash      [32]byte
	ExternalId            string
	Status                uint8
	VerificationTimestamp *big.Int
}

// loanTuple mirrors the getLoan return tuple.
type loanTuple struct {
	Borrower        common.Address
	IpAsset         common.Address
	CollateralValue *big.Int
	LoanAmount      *big.Int
	InterestRate    *big.Int
	StartTime       *big.Int
	Duration        *big.Int
	LoanToken       common.Address
	IsActive        bool
	IsRepaid        bool
	Status          uint8
	SourceChainId   *big.Int
}

// DialLedger connects to the RPC endpoint at rpcURL and signs
// transactions with the hex-encoded privateKey.
func DialLedger(ctx context.Context, rpcURL, privateKey string, chainID int64, lendingAddress, registryAddress string, logger *logging.Logger) (*LedgerClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("Cannot connect to ledger at %s: %w", rpcURL, err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("Invalid ledger private key: %w", err)
	}
	if chainID == 0 {
		id, err := client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("Cannot read chain id from %s: %w", rpcURL, err)
		}
		chainID = id.Int64()
	}
	auth, err := NewTransactor(key, chainID)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(lendingAddress) {
		return nil, fmt.Errorf("Invalid lending contract address '%s'", lendingAddress)
	}
	if !common.IsHexAddress(registryAddress) {
		return nil, fmt.Errorf("Invalid IP asset registry address '%s'", registryAddress)
	}
	return NewLedgerClient(client, auth, common.HexToAddress(lendingAddress),
		common.HexToAddress(registryAddress), logger)
}

// NewTransactor returns transaction options that sign with key.
func NewTransactor(key *ecdsa.PrivateKey, chainID int64) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(chainID))
	if err != nil {
		return nil, fmt.Errorf("Cannot create transactor: %w", err)
	}
	return auth, nil
}

// NewLedgerClient returns a client for the lending contract at
// lendingAddress and the IP asset registry at registryAddress.
func NewLedgerClient(backend LedgerBackend, auth *bind.TransactOpts, lendingAddress, registryAddress common.Address, logger *logging.Logger) (*LedgerClient, error) {
	lendingABI, err := abi.JSON(strings.NewReader(LendingABI))
	if err != nil {
		return nil, fmt.Errorf("Cannot parse lending ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("Cannot parse ERC-20 ABI: %w", err)
	}
	registryABI, err := abi.JSON(strings.NewReader(IPAssetRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("Cannot parse IP asset registry ABI: %w", err)
	}
	return &LedgerClient{
		backend:        backend,
		lending:        bind.NewBoundContract(lendingAddress, lendingABI, backend, backend, backend),
		registry:       bind.NewBoundContract(registryAddress, registryABI, backend, backend, backend),
		lendingABI:     lendingABI,
		erc20ABI:       erc20ABI,
		lendingAddress: lendingAddress,
		auth:           auth,
		logger:         logger,
	}, nil
}

// From returns the address that signs this client's transactions.
func (c *LedgerClient) From() common.Address {
	return c.auth.From
}

// LendingAddress returns the lending contract's address.
func (c *LedgerClient) LendingAddress() common.Address {
	return c.lendingAddress
}

// InitiateVerification tells the lending contract that verification
// of asset has started under externalID.
func (c *LedgerClient) InitiateVerification(ctx context.Context, asset common.Address, externalID string, assessedValue *big.Int) (*types.Receipt, error) {
	return c.transact(ctx, c.lending, "initiateVerification", asset, externalID, assessedValue)
}

// RecordVerificationResult records a verdict for externalID.
func (c *LedgerClient) RecordVerificationResult(ctx context.Context, externalID string, verified bool, riskScore *big.Int) (*types.Receipt, error) {
	return c.transact(ctx, c.lending, "recordVerificationResult", externalID, verified, riskScore)
}

// HandleVerificationTimeout records that verification of externalID
// never completed.
func (c *LedgerClient) HandleVerificationTimeout(ctx context.Context, externalID string) (*types.Receipt, error) {
	return c.transact(ctx, c.lending, "handleVerificationTimeout", externalID)
}

// CreateLoan borrows amount against asset for duration seconds and
// returns the new loan's id, if the contract logged one.
func (c *LedgerClient) CreateLoan(ctx context.Context, asset common.Address, amount, duration *big.Int, loanToken common.Address, borrowerChainID *big.Int) (*big.Int, *types.Receipt, error) {
	receipt, err := c.transact(ctx, c.lending, "createLoan", asset, amount, duration, loanToken, borrowerChainID)
	if err != nil {
		return nil, receipt, err
	}
	return c.loanIDFromReceipt(receipt), receipt, nil
}

// RepayLoan repays loanID in full. The loan token must already be
// approved for the amount owed.
func (c *LedgerClient) RepayLoan(ctx context.Context, loanID *big.Int) (*types.Receipt, error) {
	return c.transact(ctx, c.lending, "repayLoan", loanID)
}

// ApproveLoanToken lets the lending contract pull amount of token
// from this client's account.
func (c *LedgerClient) ApproveLoanToken(ctx context.Context, token common.Address, amount *big.Int) (*types.Receipt, error) {
	erc20 := bind.NewBoundContract(token, c.erc20ABI, c.backend, c.backend, c.backend)
	return c.transact(ctx, erc20, "approve", c.lendingAddress, amount)
}

// IsRegistered returns true if the IP asset registry knows asset.
func (c *LedgerClient) IsRegistered(ctx context.Context, asset common.Address) (bool, error) {
	var out []interface{}
	err := c.registry.Call(c.callOpts(ctx), &out, "isRegistered", asset)
	if err != nil {
		return false, fmt.Errorf("isRegistered(%s): %w", asset.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// CalculateTotalOwed returns principal plus interest for loanID.
func (c *LedgerClient) CalculateTotalOwed(ctx context.Context, loanID *big.Int) (*big.Int, error) {
	var out []interface{}
	err := c.lending.Call(c.callOpts(ctx), &out, "calculateTotalOwed", loanID)
	if err != nil {
		return nil, fmt.Errorf("calculateTotalOwed(%s): %w", loanID, err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// GetUserLoans returns the ids of all loans taken by user.
func (c *LedgerClient) GetUserLoans(ctx context.Context, user common.Address) ([]*big.Int, error) {
	var out []interface{}
	err := c.lending.Call(c.callOpts(ctx), &out, "getUserLoans", user)
	if err != nil {
		return nil, fmt.Errorf("getUserLoans(%s): %w", user.Hex(), err)
	}
	return *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

// GetLoan returns the loan with the given id.
func (c *LedgerClient) GetLoan(ctx context.Context, loanID *big.Int) (*lending.Loan, error) {
	var out []interface{}
	err := c.lending.Call(c.callOpts(ctx), &out, "getLoan", loanID)
	if err != nil {
		return nil, fmt.Errorf("getLoan(%s): %w", loanID, err)
	}
	t := *abi.ConvertType(out[0], new(loanTuple)).(*loanTuple)
	return &lending.Loan{
		ID:              new(big.Int).Set(loanID),
		Borrower:        t.Borrower.Hex(),
		IPAsset:         t.IpAsset.Hex(),
		CollateralValue: t.CollateralValue,
		LoanAmount:      t.LoanAmount,
		InterestRate:    t.InterestRate,
		StartTime:       t.StartTime,
		Duration:        t.Duration,
		LoanToken:       t.LoanToken.Hex(),
		IsActive:        t.IsActive,
		IsRepaid:        t.IsRepaid,
		Status:          t.Status,
		SourceChainID:   t.SourceChainId,
	}, nil
}

// GetIPCollateral returns the contract's record of asset.
func (c *LedgerClient) GetIPCollateral(ctx context.Context, asset common.Address) (*lending.Collateral, error) {
	var out []interface{}
	err := c.lending.Call(c.callOpts(ctx), &out, "getIPCollateral", asset)
	if err != nil {
		return nil, fmt.Errorf("getIPCollateral(%s): %w", asset.Hex(), err)
	}
	t := *abi.ConvertType(out[0], new(collateralTuple)).(*collateralTuple)
	return &lending.Collateral{
		IPAsset:               t.IpAsset.Hex(),
		AssessedValue:         t.AssessedValue,
		RiskScore:             t.RiskScore,
		IsEligible:            t.IsEligible,
		LastValidated:         t.LastValidated,
		VerificationHash:      t.VerificationHash,
		ExternalID:            t.ExternalId,
		Status:                t.Status,
		VerificationTimestamp: t.VerificationTimestamp,
	}, nil
}

func (c *LedgerClient) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx, From: c.auth.From}
}

// transact sends a transaction, waits for it to be mined, and checks
// that it succeeded.
func (c *LedgerClient) transact(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) (*types.Receipt, error) {
	tx, err := c.send(ctx, contract, method, params...)
	if err != nil {
		return nil, err
	}
	c.logger.Infof("Sent %s in tx %s, waiting for it to be mined", method, tx.Hash().Hex())
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: waiting for tx %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%s: tx %s: %w", method, tx.Hash().Hex(), ErrTransactionReverted)
	}
	c.logger.Infof("%s mined in block %s", method, receipt.BlockNumber)
	return receipt, nil
}

// send signs and submits one transaction. The nonce is the node's
// pending nonce or the one after this client's last transaction,
// whichever is higher, so a node that hasn't seen our last transaction
// yet can't hand out its nonce again.
func (c *LedgerClient) send(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) (*types.Transaction, error) {
	c.nonceMutex.Lock()
	defer c.nonceMutex.Unlock()
	nonce, err := c.backend.PendingNonceAt(ctx, c.auth.From)
	if err != nil {
		return nil, fmt.Errorf("%s: reading nonce: %w", method, err)
	}
	if c.nextNonce > nonce {
		nonce = c.nextNonce
	}
	opts := *c.auth
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	tx, err := contract.Transact(&opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	c.nextNonce = nonce + 1
	return tx, nil
}

func (c *LedgerClient) loanIDFromReceipt(receipt *types.Receipt) *big.Int {
	event, ok := c.lendingABI.Events["LoanCreated"]
	if !ok {
		return nil
	}
	for _, log := range receipt.Logs {
		if log.Address == c.lendingAddress && len(log.Topics) > 1 && log.Topics[0] == event.ID {
			return new(big.Int).SetBytes(log.Topics[1].Bytes())
		}
	}
	return nil
}
