package testutil

import (
	"time"

	"github.com/ipcollateral/lending-services/constants"
	"github.com/ipcollateral/lending-services/models/lending"
)

var RegisteredAt, _ = time.Parse(time.RFC3339, "2025-06-16T15:04:05Z")

const (
	WalletAddress   = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	AssetAddress    = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	OtherAsset      = "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"
	RequestID       = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed:1750086245000000000"
	AssessedValue   = "1000000000000000000"
	MediaURL        = "http://localhost:9899/lending-media/1750086245-artwork.png"
	SubjectHash     = "5c9f1f5f0b5e1c3d0e3b8a1a6f0d2e4c7b9a8d6e5f4c3b2a1908f7e6d5c4b3a2"
	LendingContract = "0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb"
	LoanToken       = "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"
	AssetRegistry   = "0x77319B4031e6eF1250907aa00018B8B1c67a244b"
)

// GetPendingAsset returns an asset that has been registered but not
// yet verified.
func GetPendingAsset() *lending.Asset {
	asset := lending.NewPendingAsset(AssetAddress, RequestID, AssessedValue, RegisteredAt)
	asset.MediaURL = MediaURL
	return asset
}

// GetVerifiedAsset returns an asset that is eligible as collateral.
func GetVerifiedAsset() *lending.Asset {
	asset := GetPendingAsset()
	asset.ApplyResult(&lending.VerificationResult{
		RequestID:  RequestID,
		Verified:   true,
		RiskScore:  20,
		Issues:     []string{"Medium confidence match with Acme Studios"},
		Summary:    "Content verified (Risk: 20/100)",
		ObservedAt: RegisteredAt.Add(time.Minute),
	}, RegisteredAt.Add(time.Minute))
	return asset
}

// GetVerificationRequest returns the request matching GetPendingAsset.
func GetVerificationRequest() *lending.VerificationRequest {
	return &lending.VerificationRequest{
		ID:            RequestID,
		SubjectHash:   SubjectHash,
		SubmittedAt:   RegisteredAt,
		WalletAddress: WalletAddress,
		AssetAddress:  AssetAddress,
		MediaURL:      MediaURL,
	}
}

// GetStatusResponse returns a status response for RequestID with the
// given remote status and brand matches.
func GetStatusResponse(status string, external ...lending.ExternalInfringement) *lending.StatusResponse {
	if external == nil {
		external = make([]lending.ExternalInfringement, 0)
	}
	return &lending.StatusResponse{
		ID:        RequestID,
		CreatorID: WalletAddress,
		Infringements: lending.Infringements{
			Status:      status,
			LastUpdated: RegisteredAt.Format(time.RFC3339),
			InNetwork:   make([]lending.InNetworkInfringement, 0),
			External:    external,
		},
	}
}

// GetCompletedResponse returns a completed, clean status response.
func GetCompletedResponse() *lending.StatusResponse {
	return GetStatusResponse(constants.RemoteStatusCompleted)
}
