package lending

import (
	"math/big"
	"time"
)

// Loan is a loan record as read from the lending contract.
type Loan struct {
	ID              *big.Int `json:"id"`
	Borrower        string   `json:"borrower"`
	IPAsset         string   `json:"ip_asset"`
	CollateralValue *big.Int `json:"collateral_value"`
	LoanAmount      *big.Int `json:"loan_amount"`
	InterestRate    *big.Int `json:"interest_rate"`
	StartTime       *big.Int `json:"start_time"`
	Duration        *big.Int `json:"duration"`
	LoanToken       string   `json:"loan_token"`
	IsActive        bool     `json:"is_active"`
	IsRepaid        bool     `json:"is_repaid"`
	Status          uint8    `json:"status"`
	SourceChainID   *big.Int `json:"source_chain_id"`
}

// DueAt returns when the loan term ends.
func (loan *Loan) DueAt() time.Time {
	if loan.StartTime == nil || loan.Duration == nil {
		return time.Time{}
	}
	end := new(big.Int).Add(loan.StartTime, loan.Duration)
	return time.Unix(end.Int64(), 0).UTC()
}

// IsOverdue returns true if an active loan is past its term.
func (loan *Loan) IsOverdue(now time.Time) bool {
	due := loan.DueAt()
	return loan.IsActive && !loan.IsRepaid && !due.IsZero() && now.After(due)
}

// Collateral is the lending contract's record of an IP asset.
type Collateral struct {
	IPAsset               string   `json:"ip_asset"`
	AssessedValue         *big.Int `json:"assessed_value"`
	RiskScore             *big.Int `json:"risk_score"`
	IsEligible            bool     `json:"is_eligible"`
	LastValidated         *big.Int `json:"last_validated"`
	VerificationHash      [32]byte `json:"verification_hash"`
	ExternalID            string   `json:"external_id"`
	Status                uint8    `json:"status"`
	VerificationTimestamp *big.Int `json:"verification_timestamp"`
}
