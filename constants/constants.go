package constants

import "time"

// Verification statuses for an Asset. The order matches the uint8
// enum the lending contract stores on-chain.
const (
	StatusPending  = "PENDING"
	StatusVerified = "VERIFIED"
	StatusRejected = "REJECTED"
	StatusError    = "ERROR"
)

// Status values reported by the external verification service.
const (
	RemoteStatusPending   = "pending"
	RemoteStatusCompleted = "completed"
	RemoteStatusError     = "error"
)

// NSQ topics and channels.
const (
	TopicVerificationRequested = "verification_requested"
	TopicVerificationCompleted = "verification_completed"
	ChannelVerificationWorker  = "verification_worker"
)

const (
	DefaultPollAttempts = 10
	DefaultPollInterval = 2 * time.Second
	DefaultNetwork      = "story"
	EmptyAddress        = "0x0000000000000000000000000000000000000000"
	MaxRiskScore        = 100

	// DefaultIPAssetRegistry is the Story IP asset registry.
	DefaultIPAssetRegistry = "0x77319B4031e6eF1250907aa00018B8B1c67a244b"

	// RiskThreshold is the lowest score at which content is rejected.
	RiskThreshold = 30
)

// VerificationStatuses lists asset statuses in on-chain enum order.
var VerificationStatuses = []string{
	StatusPending,
	StatusVerified,
	StatusRejected,
	StatusError,
}

// TerminalRemoteStatuses are remote statuses that will not change further.
var TerminalRemoteStatuses = []string{
	RemoteStatusCompleted,
	RemoteStatusError,
}

// AcceptedMediaTypes are the top-level MIME types we accept as
// collateral media.
var AcceptedMediaTypes = []string{
	"image",
	"video",
	"audio",
}
