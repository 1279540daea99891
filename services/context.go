package services

import (
	ctx "context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lendcommon "github.com/ipcollateral/lending-services/models/common"
	"github.com/ipcollateral/lending-services/network"
	"github.com/ipcollateral/lending-services/util/logger"
	"github.com/ipcollateral/lending-services/verification"
	"github.com/ipcollateral/lending-services/workflow"
	"github.com/op/go-logging"
)

const ledgerDialTimeout = 15 * time.Second

// Context wires the clients and workflow services every app needs.
// Ledger is nil when the config has no LEDGER_RPC_URL.
// VerificationClient is nil in demo mode.
type Context struct {
	Config             *lendcommon.Config
	Logger             *logging.Logger
	NSQClient          *network.NSQClient
	RedisClient        *network.RedisClient
	MediaStore         *network.MediaStore
	VerificationClient *network.VerificationClient
	Ledger             *network.LedgerClient
	Poller             *verification.Poller
	Registration       *workflow.Registration
	Loans              *workflow.LoanService
}

// NewContext loads the config named by LENDING_CONFIG_DIR and
// LENDING_ENV and connects everything. It panics on failure, since
// no app can do anything useful without it.
func NewContext() *Context {
	return newContext(false)
}

// NewConsoleContext is NewContext with log messages echoed to stderr.
func NewConsoleContext() *Context {
	return newContext(true)
}

func newContext(console bool) *Context {
	config := lendcommon.NewConfig()
	var _logger *logging.Logger
	if console {
		_logger, _ = logger.InitConsoleLogger(config.LogDir, config.LogLevel, os.Stderr)
	} else {
		_logger, _ = logger.InitLogger(config.LogDir, config.LogLevel)
	}
	context, err := NewContextFromConfig(config, _logger)
	if err != nil {
		panic(fmt.Sprintf("Could not initialize context: %v", err))
	}
	return context
}

// NewContextFromConfig builds a Context from an already loaded config.
func NewContextFromConfig(config *lendcommon.Config, _logger *logging.Logger) (*Context, error) {
	context := &Context{
		Config:      config,
		Logger:      _logger,
		NSQClient:   network.NewNSQClient(config.NsqURL),
		RedisClient: network.NewRedisClient(config.RedisURL, config.RedisPassword, config.RedisDefaultDB),
	}
	mediaStore, err := network.NewMediaStore(config.S3Host, config.S3KeyID,
		config.S3SecretKey, config.S3UseSSL, config.MediaBucket, _logger)
	if err != nil {
		return nil, err
	}
	if config.LogLevel == logging.DEBUG {
		mediaStore.TraceOn()
	}
	context.MediaStore = mediaStore

	var source verification.StatusSource
	var registrar workflow.Registrar
	if config.DemoMode {
		_logger.Warning("Demo mode: verification results are simulated")
		demo := verification.NewDemoSource(nil)
		source, registrar = demo, demo
	} else {
		client, err := network.NewVerificationClient(config.VerificationURL,
			config.VerificationNetwork, config.VerificationAPIKey,
			config.VerificationTimeout, config.VerificationRateInterval, _logger)
		if err != nil {
			return nil, err
		}
		context.VerificationClient = client
		source, registrar = client, client
	}
	context.Poller = verification.NewPoller(verification.PollerConfig{
		MaxAttempts: config.PollMaxAttempts,
		Interval:    config.PollInterval,
		Source:      source,
		Logger:      _logger,
	})

	if config.LedgerConfigured() {
		dialCtx, cancel := ctx.WithTimeout(ctx.Background(), ledgerDialTimeout)
		defer cancel()
		ledger, err := network.DialLedger(dialCtx, config.LedgerRPCURL,
			config.LedgerPrivateKey, config.LedgerChainID,
			config.LendingContractAddress, config.IPAssetRegistryAddress, _logger)
		if err != nil {
			return nil, err
		}
		context.Ledger = ledger
	} else {
		_logger.Warning("No LEDGER_RPC_URL configured, on-chain calls are disabled")
	}

	locks := &workflow.WalletLocks{}
	context.Registration = &workflow.Registration{
		Assets:      context.RedisClient,
		Media:       context.MediaStore,
		Registrar:   registrar,
		Poller:      context.Poller,
		Publisher:   context.NSQClient,
		Locks:       locks,
		Logger:      _logger,
		ChainID:     config.LedgerChainID,
		DemoMode:    config.DemoMode,
		MaxFileSize: config.MaxFileSize,
	}
	context.Loans = &workflow.LoanService{
		Assets:          context.RedisClient,
		Locks:           locks,
		Logger:          _logger,
		LoanToken:       common.HexToAddress(config.LoanTokenAddress),
		BorrowerChainID: big.NewInt(config.BorrowerChainID),
	}
	// Assign only a non-nil client. A nil *LedgerClient stored in
	// the interface would not compare equal to nil.
	if context.Ledger != nil {
		context.Registration.Ledger = context.Ledger
		context.Loans.Ledger = context.Ledger
	}
	return context, nil
}

// Close releases the Redis connection pool.
func (context *Context) Close() error {
	return context.RedisClient.Close()
}
