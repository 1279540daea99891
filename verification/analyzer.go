package verification

import (
	"fmt"
	"time"

	"github.com/ipcollateral/lending-services/constants"
	"github.com/ipcollateral/lending-services/models/lending"
)

const (
	highConfidence        = 0.8
	mediumConfidence      = 0.6
	inNetworkConfidence   = 0.9
	highConfidenceRisk    = 40
	mediumConfidenceRisk  = 20
	inNetworkMatchRisk    = 30
	errorStatusIssue      = "Verification service reported an error"
	indeterminateTemplate = "Verification of %s did not complete"
)

// Analyzer turns a terminal StatusResponse into a VerificationResult.
type Analyzer interface {
	Analyze(resp *lending.StatusResponse, observedAt time.Time) *lending.VerificationResult
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(resp *lending.StatusResponse, observedAt time.Time) *lending.VerificationResult

// Analyze calls f.
func (f AnalyzerFunc) Analyze(resp *lending.StatusResponse, observedAt time.Time) *lending.VerificationResult {
	return f(resp, observedAt)
}

// InfringementAnalyzer scores content by the infringements the
// verification service found.
type InfringementAnalyzer struct{}

// Analyze scores the infringements in resp. Brand matches above 0.8
// confidence add 40 and those above 0.6 add 20. Matches against other
// registered tokens above 0.9 confidence add 30. The score is capped
// at 100, and content under 30 is verified.
//
// A remote status of "error" yields an unverified result with the
// maximum risk score.
func (a InfringementAnalyzer) Analyze(resp *lending.StatusResponse, observedAt time.Time) *lending.VerificationResult {
	result := &lending.VerificationResult{
		RequestID:  resp.ID,
		Issues:     make([]string, 0),
		ObservedAt: observedAt,
	}
	if resp.Infringements.Status == constants.RemoteStatusError {
		result.RiskScore = constants.MaxRiskScore
		result.Issues = append(result.Issues, errorStatusIssue)
		result.Summary = fmt.Sprintf("Content has high risk (%d/100)", result.RiskScore)
		return result
	}
	score := 0
	for _, match := range resp.Infringements.External {
		if match.Confidence > highConfidence {
			score += highConfidenceRisk
			result.Issues = append(result.Issues,
				fmt.Sprintf("High confidence match with %s", match.BrandName))
		} else if match.Confidence > mediumConfidence {
			score += mediumConfidenceRisk
			result.Issues = append(result.Issues,
				fmt.Sprintf("Medium confidence match with %s", match.BrandName))
		}
	}
	for _, match := range resp.Infringements.InNetwork {
		if match.Confidence > inNetworkConfidence {
			score += inNetworkMatchRisk
			result.Issues = append(result.Issues,
				fmt.Sprintf("Very high similarity with %s", match.MatchedTokenID))
		}
	}
	if score > constants.MaxRiskScore {
		score = constants.MaxRiskScore
	}
	result.RiskScore = score
	result.Verified = score < constants.RiskThreshold
	if result.Verified {
		result.Summary = fmt.Sprintf("Content verified (Risk: %d/100)", score)
	} else {
		result.Summary = fmt.Sprintf("Content has high risk (%d/100)", score)
	}
	return result
}

// Fallback is the verdict for a request that never reached a terminal
// status. It depends only on requestID, apart from observedAt.
func Fallback(requestID string, observedAt time.Time) *lending.VerificationResult {
	return &lending.VerificationResult{
		RequestID:     requestID,
		Verified:      false,
		RiskScore:     constants.MaxRiskScore,
		Issues:        []string{fmt.Sprintf(indeterminateTemplate, requestID)},
		Summary:       fmt.Sprintf("Verification timed out (%d/100)", constants.MaxRiskScore),
		ObservedAt:    observedAt,
		Indeterminate: true,
	}
}
