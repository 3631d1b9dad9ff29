package domain

// JobStatus is the lifecycle state of a generation job
type JobStatus string

// Job status constants
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Model is the image model variant a job runs against
type Model string

// Supported model variants
const (
	ModelPro Model = "pro"
	ModelV2  Model = "v2"
)

// ParseModel validates a raw model name
func ParseModel(raw string) (Model, bool) {
	switch Model(raw) {
	case ModelPro, ModelV2:
		return Model(raw), true
	default:
		return "", false
	}
}

// Submission defaults applied when the caller omits a field
const (
	DefaultAspectRatio = "1:1"
	DefaultImageSize   = "1K"
	DefaultModel       = ModelV2
)

var aspectRatios = map[string]struct{}{
	"1:1": {}, "2:3": {}, "3:2": {}, "3:4": {}, "4:3": {},
	"4:5": {}, "5:4": {}, "9:16": {}, "16:9": {}, "21:9": {},
}

var imageSizes = map[string]struct{}{
	"1K": {}, "2K": {}, "4K": {},
}

// ValidAspectRatio reports whether the ratio is one the provider accepts
func ValidAspectRatio(ratio string) bool {
	_, ok := aspectRatios[ratio]
	return ok
}

// ValidImageSize reports whether the size tier is known
func ValidImageSize(size string) bool {
	_, ok := imageSizes[size]
	return ok
}

// Ledger audit reasons
const (
	ReasonGenerationReserve = "generation_reserve"
	ReasonGenerationRefund  = "generation_refund"
	ReasonRecharge          = "recharge"
	ReasonExpiry            = "expiry"
	ReasonManualRefund      = "manual_refund"
)

// ExpiryPolicy decides what an elapsed credit expiry does to a balance
type ExpiryPolicy string

const (
	// ExpiryPolicyNone records expiry timestamps but never enforces them
	ExpiryPolicyNone ExpiryPolicy = "none"
	// ExpiryPolicyZero treats an expired balance as zero
	ExpiryPolicyZero ExpiryPolicy = "zero_on_expiry"
)
