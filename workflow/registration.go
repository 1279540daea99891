package workflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipcollateral/lending-services/constants"
	lendcommon "github.com/ipcollateral/lending-services/models/common"
	"github.com/ipcollateral/lending-services/models/lending"
	"github.com/op/go-logging"
)

var (
	ErrUnsupportedMedia       = errors.New("media type is not accepted as collateral")
	ErrVerificationInProgress = errors.New("asset already has a verification in progress")
	ErrMissingRequest         = errors.New("message has no verification request")
	ErrNotEligible            = errors.New("asset is not eligible as collateral")
	ErrLedgerNotConfigured    = errors.New("ledger is not configured")
	ErrAssetNotRegistered     = errors.New("asset is not registered in the IP asset registry")
)

const trustedPlatform = "ip-collateral-lending"

var defaultLogger = logging.MustGetLogger("workflow")

// RegistrationInput is what a borrower supplies to register an asset.
// AssessedValue is a decimal ether amount.
type RegistrationInput struct {
	WalletAddress string
	AssetAddress  string
	Name          string
	Description   string
	AssessedValue string
	Filename      string
	Media         []byte
}

// Registration runs the asset registration workflow. Ledger may be nil,
// in which case on-chain calls are skipped with a warning.
type Registration struct {
	Assets    AssetStore
	Media     MediaStore
	Registrar Registrar
	Ledger    Ledger
	Poller    Poller
	Publisher Publisher
	Locks     *WalletLocks
	Logger    *logging.Logger
	Now       func() time.Time

	// ChainID is reported to the verification service as the chain
	// the asset was registered on.
	ChainID int64

	// DemoMode lets registration continue when the verification
	// service rejects the token.
	DemoMode bool

	// MaxFileSize is the largest media file accepted, in bytes.
	// Zero means no limit.
	MaxFileSize int64
}

// Register validates the input, confirms the asset is in the IP asset
// registry, uploads the media, submits it for verification, and stores
// the asset as PENDING. It returns the
// request that Finalize needs to complete the workflow.
func (r *Registration) Register(ctx context.Context, input *RegistrationInput) (*lending.VerificationRequest, error) {
	wallet, err := NormalizeAddress("Wallet address", input.WalletAddress)
	if err != nil {
		return nil, err
	}
	assetAddress, err := NormalizeAddress("Asset address", input.AssetAddress)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("Asset name is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, fmt.Errorf("Asset description is required")
	}
	value, err := ParseEther(input.AssessedValue)
	if err != nil {
		return nil, err
	}
	if r.MaxFileSize > 0 && int64(len(input.Media)) > r.MaxFileSize {
		return nil, fmt.Errorf("Media file is %d bytes, limit is %d", len(input.Media), r.MaxFileSize)
	}
	contentType, err := DetectMediaType(input.Media)
	if err != nil {
		return nil, err
	}
	if err = r.checkRegistered(ctx, assetAddress); err != nil {
		return nil, err
	}
	if err = r.checkNotPending(ctx, wallet, assetAddress); err != nil {
		return nil, err
	}

	now := r.now()
	obj, err := r.Media.Upload(ctx, input.Filename, contentType, input.Media, now)
	if err != nil {
		return nil, fmt.Errorf("Media upload failed: %w", err)
	}
	r.logger().Infof("Uploaded %s for asset %s to %s", input.Filename, assetAddress, obj.URL)

	req := &lending.VerificationRequest{
		ID:            fmt.Sprintf("%s:%d", strings.ToLower(assetAddress), now.UnixNano()),
		SubjectHash:   SubjectHash(input.Media),
		SubmittedAt:   now,
		WalletAddress: wallet,
		AssetAddress:  assetAddress,
		MediaURL:      obj.URL,
	}
	token := r.tokenRequest(req, input, contentType)
	status, err := r.Registrar.Register(ctx, token)
	if err != nil {
		if !r.DemoMode {
			message := fmt.Sprintf("Verification service rejected %s: %v", req.ID, err)
			return nil, lendcommon.NewError(message, err, lendcommon.IsPermanent(err))
		}
		r.logger().Warningf("Verification service rejected %s, continuing in demo mode: %v", req.ID, err)
	} else if status != nil {
		r.logger().Infof("Registered %s with verification service, status %q", req.ID, status.Infringements.Status)
	}

	if r.Ledger == nil {
		r.logger().Warningf("No ledger configured, skipping on-chain verification for %s", req.ID)
	} else {
		receipt, err := r.Ledger.InitiateVerification(ctx, common.HexToAddress(assetAddress), req.ID, value)
		if err != nil {
			r.logger().Warningf("On-chain verification for %s failed, continuing: %v", req.ID, err)
		} else {
			r.logger().Infof("On-chain verification for %s initiated in tx %s", req.ID, receipt.TxHash.Hex())
		}
	}

	asset := lending.NewPendingAsset(assetAddress, req.ID, value.String(), now)
	asset.MediaURL = obj.URL
	err = r.updateAssets(ctx, wallet, func(assets []*lending.Asset) ([]*lending.Asset, error) {
		existing, err := lending.FindAsset(assets, assetAddress)
		if err != nil {
			return append(assets, asset), nil
		}
		if existing.VerificationStatus == lending.StatusPending {
			return nil, fmt.Errorf("%w: %s", ErrVerificationInProgress, assetAddress)
		}
		*existing = *asset
		return assets, nil
	})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, constants.TopicVerificationRequested, NewVerificationEvent(req, nil, now))
	return req, nil
}

// Finalize polls for the request's verdict, applies it to the stored
// asset, and records it on the ledger. If ctx is cancelled, Finalize
// returns ctx.Err() and leaves the asset PENDING.
func (r *Registration) Finalize(ctx context.Context, req *lending.VerificationRequest) (*lending.Asset, error) {
	result := r.Poller.Poll(ctx, req.ID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if result.Indeterminate {
		r.logger().Warningf("Verification of %s timed out", req.ID)
	} else {
		r.logger().Infof("Verification of %s finished: %s", req.ID, result.Summary)
	}

	var updated *lending.Asset
	err := r.updateAssets(ctx, req.WalletAddress, func(assets []*lending.Asset) ([]*lending.Asset, error) {
		asset, err := lending.FindAssetByExternalID(assets, req.ID)
		if err != nil {
			return nil, err
		}
		if err = asset.ApplyResult(result, r.now()); err != nil {
			return nil, err
		}
		copied := *asset
		updated = &copied
		return assets, nil
	})
	if err != nil {
		return nil, err
	}

	r.recordResult(ctx, result)
	r.publish(ctx, constants.TopicVerificationCompleted, NewVerificationEvent(req, result, r.now()))
	return updated, nil
}

// RegisterAndVerify runs Register and Finalize back to back.
func (r *Registration) RegisterAndVerify(ctx context.Context, input *RegistrationInput) (*lending.Asset, error) {
	req, err := r.Register(ctx, input)
	if err != nil {
		return nil, err
	}
	return r.Finalize(ctx, req)
}

func (r *Registration) recordResult(ctx context.Context, result *lending.VerificationResult) {
	if r.Ledger == nil {
		r.logger().Warningf("No ledger configured, verdict for %s not recorded on-chain", result.RequestID)
		return
	}
	var err error
	if result.Indeterminate {
		_, err = r.Ledger.HandleVerificationTimeout(ctx, result.RequestID)
	} else {
		_, err = r.Ledger.RecordVerificationResult(ctx, result.RequestID, result.Verified, big.NewInt(int64(result.RiskScore)))
	}
	if err != nil {
		r.logger().Warningf("Could not record verdict for %s on-chain: %v", result.RequestID, err)
	}
}

// checkRegistered refuses assets the registry has never heard of.
// Without a ledger there is nothing to ask.
func (r *Registration) checkRegistered(ctx context.Context, assetAddress string) error {
	if r.Ledger == nil {
		return nil
	}
	registered, err := r.Ledger.IsRegistered(ctx, common.HexToAddress(assetAddress))
	if err != nil {
		return fmt.Errorf("Could not check registration of %s: %w", assetAddress, err)
	}
	if !registered {
		return lendcommon.NewError(fmt.Sprintf("Asset %s is not registered", assetAddress),
			fmt.Errorf("%w: %s", ErrAssetNotRegistered, assetAddress), true)
	}
	return nil
}

func (r *Registration) checkNotPending(ctx context.Context, wallet, assetAddress string) error {
	assets, err := r.Assets.AssetsGet(ctx, wallet)
	if err != nil {
		return fmt.Errorf("Could not load assets for %s: %w", wallet, err)
	}
	existing, err := lending.FindAsset(assets, assetAddress)
	if err == nil && existing.VerificationStatus == lending.StatusPending {
		return fmt.Errorf("%w: %s", ErrVerificationInProgress, assetAddress)
	}
	return nil
}

func (r *Registration) updateAssets(ctx context.Context, wallet string, update func([]*lending.Asset) ([]*lending.Asset, error)) error {
	unlock := r.Locks.Lock(wallet)
	defer unlock()
	assets, err := r.Assets.AssetsGet(ctx, wallet)
	if err != nil {
		return fmt.Errorf("Could not load assets for %s: %w", wallet, err)
	}
	assets, err = update(assets)
	if err != nil {
		return err
	}
	if err = r.Assets.AssetsSave(ctx, wallet, assets); err != nil {
		return fmt.Errorf("Could not save assets for %s: %w", wallet, err)
	}
	return nil
}

func (r *Registration) publish(ctx context.Context, topic string, event *VerificationEvent) {
	if r.Publisher == nil {
		return
	}
	if err := r.Publisher.PublishJSON(ctx, topic, event); err != nil {
		r.logger().Warningf("Could not publish %s to %s: %v", event.Request.ID, topic, err)
	}
}

func (r *Registration) tokenRequest(req *lending.VerificationRequest, input *RegistrationInput, contentType string) *lending.TokenRequest {
	return &lending.TokenRequest{
		ID: req.ID,
		RegistrationTx: lending.RegistrationTx{
			ChainID: r.ChainID,
		},
		CreatorID: strings.ToLower(req.WalletAddress),
		Metadata: lending.TokenMetadata{
			Name:        input.Name,
			Description: input.Description,
			Image:       req.MediaURL,
			Attributes: []lending.TokenAttribute{
				{TraitType: "Platform", Value: "IP Collateral Lending"},
				{TraitType: "Assessed Value", Value: input.AssessedValue + " ETH"},
				{TraitType: "Creator", Value: req.WalletAddress},
				{TraitType: "File Type", Value: contentType},
				{TraitType: "File Size", Value: strconv.Itoa(len(input.Media)) + " bytes"},
			},
		},
		Media: []lending.TokenMedia{
			{
				MediaID: fmt.Sprintf("media_%d", req.SubmittedAt.Unix()),
				URL:     req.MediaURL,
				Hash:    req.SubjectHash,
				TrustReason: &lending.TrustReason{
					Type:     "TrustedPlatform",
					Platform: trustedPlatform,
				},
			},
		},
	}
}

func (r *Registration) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now()
}

func (r *Registration) logger() *logging.Logger {
	if r.Logger == nil {
		return defaultLogger
	}
	return r.Logger
}
