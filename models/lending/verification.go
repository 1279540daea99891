package lending

import (
	"encoding/json"
	"time"

	"github.com/ipcollateral/lending-services/constants"
	"github.com/ipcollateral/lending-services/util"
)

// VerificationRequest describes one submission of an asset to the
// external verification service. It is created once per registration
// and never modified.
type VerificationRequest struct {
	ID            string    `json:"id"`
	SubjectHash   string    `json:"subject_hash"`
	SubmittedAt   time.Time `json:"submitted_at"`
	WalletAddress string    `json:"wallet_address"`
	AssetAddress  string    `json:"asset_address"`
	MediaURL      string    `json:"media_url"`
}

// VerificationRequestFromJSON converts JSON to a VerificationRequest.
func VerificationRequestFromJSON(jsonData []byte) (*VerificationRequest, error) {
	req := &VerificationRequest{}
	err := json.Unmarshal(jsonData, req)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ToJSON converts a VerificationRequest to JSON.
func (req *VerificationRequest) ToJSON() ([]byte, error) {
	return json.Marshal(req)
}

// VerificationResult is the normalized verdict for a request. The
// poller produces exactly one per request.
type VerificationResult struct {
	RequestID  string    `json:"request_id"`
	Verified   bool      `json:"verified"`
	RiskScore  int       `json:"risk_score"`
	Issues     []string  `json:"issues"`
	Summary    string    `json:"summary"`
	ObservedAt time.Time `json:"observed_at"`

	// Indeterminate is true when no terminal status was observed
	// within the retry budget. Verified and RiskScore then hold the
	// fallback verdict.
	Indeterminate bool `json:"indeterminate"`
}

// ToJSON converts a VerificationResult to JSON.
func (result *VerificationResult) ToJSON() ([]byte, error) {
	return json.Marshal(result)
}

// RegistrationTx identifies the transaction that registered the asset.
type RegistrationTx struct {
	Hash        string `json:"hash"`
	BlockNumber int64  `json:"block_number"`
	ChainID     int64  `json:"chain_id"`
}

// TokenAttribute is a name/value metadata pair.
type TokenAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// TokenMetadata describes the asset to the verification service.
type TokenMetadata struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Image       string           `json:"image,omitempty"`
	Attributes  []TokenAttribute `json:"attributes,omitempty"`
}

// TrustReason tells the verification service why media may be trusted.
type TrustReason struct {
	Type     string `json:"type"`
	Platform string `json:"platform,omitempty"`
}

// TokenMedia is one media file attached to a token.
type TokenMedia struct {
	MediaID     string       `json:"media_id"`
	URL         string       `json:"url"`
	Hash        string       `json:"hash,omitempty"`
	FetchStatus string       `json:"fetch_status,omitempty"`
	TrustReason *TrustReason `json:"trust_reason,omitempty"`
}

// TokenRequest is the registration payload POSTed to the verification
// service.
type TokenRequest struct {
	ID             string         `json:"id"`
	RegistrationTx RegistrationTx `json:"registration_tx"`
	CreatorID      string         `json:"creator_id"`
	Metadata       TokenMetadata  `json:"metadata"`
	Media          []TokenMedia   `json:"media"`
}

// InNetworkInfringement is a match against another registered token.
type InNetworkInfringement struct {
	MatchedTokenID  string  `json:"matched_token_id"`
	SimilarityScore float64 `json:"similarity_score"`
	Confidence      float64 `json:"confidence"`
}

// ExternalInfringement is a match against a known brand.
type ExternalInfringement struct {
	BrandID         string  `json:"brand_id"`
	BrandName       string  `json:"brand_name"`
	SimilarityScore float64 `json:"similarity_score"`
	Confidence      float64 `json:"confidence"`
	ContentType     string  `json:"content_type"`
}

// Infringements is the status block of a token.
type Infringements struct {
	Status      string                  `json:"status"`
	LastUpdated string                  `json:"last_updated"`
	InNetwork   []InNetworkInfringement `json:"in_network_infringements"`
	External    []ExternalInfringement  `json:"external_infringements"`
}

// StatusResponse is what the verification service returns for a token.
type StatusResponse struct {
	ID            string        `json:"id"`
	CreatorID     string        `json:"creator_id,omitempty"`
	Media         []TokenMedia  `json:"media,omitempty"`
	Infringements Infringements `json:"infringements"`
}

// StatusResponseFromJSON converts JSON to a StatusResponse.
func StatusResponseFromJSON(jsonData []byte) (*StatusResponse, error) {
	resp := &StatusResponse{}
	err := json.Unmarshal(jsonData, resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// IsTerminal returns true if the remote status will not change further.
func (resp *StatusResponse) IsTerminal() bool {
	return util.StringListContains(constants.TerminalRemoteStatuses, resp.Infringements.Status)
}

// IsRecognized returns true if the remote status is one we understand.
func (resp *StatusResponse) IsRecognized() bool {
	return resp.Infringements.Status == constants.RemoteStatusPending || resp.IsTerminal()
}
