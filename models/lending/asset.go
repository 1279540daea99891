package lending

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ipcollateral/lending-services/constants"
)

var (
	ErrInvalidTransition = errors.New("asset verification status can only change from PENDING")
	ErrAssetNotFound     = errors.New("asset not found")
)

// Asset is an IP asset a wallet has registered as collateral. Assets
// are persisted per wallet address and are never deleted by the
// workflow.
type Asset struct {
	Address               string             `json:"address"`
	ExternalID            string             `json:"external_id"`
	VerificationStatus    VerificationStatus `json:"verification_status"`
	IsEligible            bool               `json:"is_eligible"`
	AssessedValue         string             `json:"assessed_value"`
	RiskScore             int                `json:"risk_score"`
	Issues                []string           `json:"issues,omitempty"`
	Summary               string             `json:"summary,omitempty"`
	MediaURL              string             `json:"media_url,omitempty"`
	LastValidated         int64              `json:"last_validated"`
	VerificationTimestamp int64              `json:"verification_timestamp"`
}

// NewPendingAsset returns an Asset at the start of a registration
// attempt. Until verification completes, the asset carries the
// maximum risk score and is not eligible as collateral.
func NewPendingAsset(address, externalID, assessedValue string, now time.Time) *Asset {
	return &Asset{
		Address:               address,
		ExternalID:            externalID,
		VerificationStatus:    StatusPending,
		IsEligible:            false,
		AssessedValue:         assessedValue,
		RiskScore:             constants.MaxRiskScore,
		LastValidated:         now.Unix(),
		VerificationTimestamp: now.Unix(),
	}
}

// ApplyResult moves the asset out of PENDING based on a verification
// result. An indeterminate result moves it to ERROR. This returns
// ErrInvalidTransition if the asset has already left PENDING.
func (asset *Asset) ApplyResult(result *VerificationResult, now time.Time) error {
	if asset.VerificationStatus != StatusPending {
		return fmt.Errorf("%w: asset %s is %s", ErrInvalidTransition,
			asset.Address, asset.VerificationStatus)
	}
	if result.RequestID != asset.ExternalID {
		return fmt.Errorf("Result for request %s does not belong to asset %s (request %s)",
			result.RequestID, asset.Address, asset.ExternalID)
	}
	switch {
	case result.Indeterminate:
		asset.VerificationStatus = StatusError
	case result.Verified:
		asset.VerificationStatus = StatusVerified
	default:
		asset.VerificationStatus = StatusRejected
	}
	asset.IsEligible = asset.VerificationStatus == StatusVerified
	asset.RiskScore = result.RiskScore
	asset.Issues = append([]string(nil), result.Issues...)
	asset.Summary = result.Summary
	asset.LastValidated = now.Unix()
	return nil
}

// ApplyCollateral overwrites the asset's verification fields with
// what the lending contract has on record.
func (asset *Asset) ApplyCollateral(collateral *Collateral) error {
	status, err := StatusFromChain(collateral.Status)
	if err != nil {
		return err
	}
	asset.VerificationStatus = status
	asset.IsEligible = collateral.IsEligible
	if collateral.RiskScore != nil {
		asset.RiskScore = int(collateral.RiskScore.Int64())
	}
	if collateral.LastValidated != nil {
		asset.LastValidated = collateral.LastValidated.Int64()
	}
	if collateral.VerificationTimestamp != nil {
		asset.VerificationTimestamp = collateral.VerificationTimestamp.Int64()
	}
	return nil
}

// SameAddress compares addresses case-insensitively, since wallets
// and explorers disagree on checksum casing.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// FindAsset returns the asset with the given address.
func FindAsset(assets []*Asset, address string) (*Asset, error) {
	for _, asset := range assets {
		if SameAddress(asset.Address, address) {
			return asset, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, address)
}

// FindAssetByExternalID returns the asset registered under the given
// verification request id.
func FindAssetByExternalID(assets []*Asset, externalID string) (*Asset, error) {
	for _, asset := range assets {
		if asset.ExternalID == externalID {
			return asset, nil
		}
	}
	return nil, fmt.Errorf("%w: request %s", ErrAssetNotFound, externalID)
}

// AssetsFromJSON converts a JSON list to a slice of Assets.
func AssetsFromJSON(jsonData []byte) ([]*Asset, error) {
	assets := make([]*Asset, 0)
	err := json.Unmarshal(jsonData, &assets)
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// AssetsToJSON converts a slice of Assets to a JSON list.
func AssetsToJSON(assets []*Asset) ([]byte, error) {
	if assets == nil {
		assets = make([]*Asset, 0)
	}
	return json.Marshal(assets)
}
