package lending

import (
	"fmt"

	"github.com/ipcollateral/lending-services/constants"
	"github.com/ipcollateral/lending-services/util"
)

// VerificationStatus describes where an Asset stands in verification.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = constants.StatusPending
	StatusVerified VerificationStatus = constants.StatusVerified
	StatusRejected VerificationStatus = constants.StatusRejected
	StatusError    VerificationStatus = constants.StatusError
)

// StatusFromChain converts the lending contract's uint8 status to a
// VerificationStatus.
func StatusFromChain(value uint8) (VerificationStatus, error) {
	if int(value) >= len(constants.VerificationStatuses) {
		return StatusError, fmt.Errorf("Unknown on-chain verification status %d", value)
	}
	return VerificationStatus(constants.VerificationStatuses[value]), nil
}

// ChainValue returns the uint8 the lending contract uses for this status.
func (s VerificationStatus) ChainValue() uint8 {
	for i, name := range constants.VerificationStatuses {
		if name == string(s) {
			return uint8(i)
		}
	}
	return uint8(len(constants.VerificationStatuses) - 1)
}

// IsValid returns true if s is one of the known statuses.
func (s VerificationStatus) IsValid() bool {
	return util.StringListContains(constants.VerificationStatuses, string(s))
}

// IsFinal returns true once verification has reached a verdict.
func (s VerificationStatus) IsFinal() bool {
	return s.IsValid() && s != StatusPending
}
