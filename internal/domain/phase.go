package domain

// Phase is the verification phase of a connection form. The set of variants
// is closed: Idle, Verifying, Verified, Failed and the backend variants.
type Phase interface {
	phase()
	String() string
}

// Idle is the starting phase and the phase after any edit.
type Idle struct{}

// Verifying means a dry-run check is in flight.
type Verifying struct{}

// Verified means the last dry-run check of the current draft succeeded.
type Verified struct{}

// Failed carries the message of a failed dry-run check.
type Failed struct {
	Message string
}

// BackendPending means the connection was persisted and the backend has
// not reported progress yet.
type BackendPending struct {
	ConnectionID string
}

type BackendVerifying struct {
	ConnectionID string
}

type BackendVerified struct {
	ConnectionID string
}

type BackendFailed struct {
	ConnectionID string
	Message      string
}

func (Idle) phase()             {}
func (Verifying) phase()        {}
func (Verified) phase()         {}
func (Failed) phase()           {}
func (BackendPending) phase()   {}
func (BackendVerifying) phase() {}
func (BackendVerified) phase()  {}
func (BackendFailed) phase()    {}

func (Idle) String() string             { return "idle" }
func (Verifying) String() string        { return "verifying" }
func (Verified) String() string         { return "success" }
func (Failed) String() string           { return "error" }
func (BackendPending) String() string   { return "created" }
func (BackendVerifying) String() string { return "backend_verifying" }
func (BackendVerified) String() string  { return "backend_verified" }
func (BackendFailed) String() string    { return "backend_error" }

// LocksFields reports whether inputs must be read-only in the phase.
func LocksFields(p Phase) bool {
	switch p.(type) {
	case Verifying, BackendPending, BackendVerifying, BackendVerified:
		return true
	}
	return false
}

// VerifyState is the backend-side verification state of a persisted
// connection as reported by the status endpoint.
type VerifyState string

const (
	VerifyCreated   VerifyState = "CREATED"
	VerifyVerifying VerifyState = "VERIFYING"
	VerifyVerified  VerifyState = "VERIFIED"
	VerifyError     VerifyState = "ERROR"
)

func (s VerifyState) Terminal() bool {
	return s == VerifyVerified || s == VerifyError
}

// ConnectionStatus maps the backend state to the status shown in lists.
func (s VerifyState) ConnectionStatus() ConnectionStatus {
	switch s {
	case VerifyVerifying:
		return StatusVerifying
	case VerifyVerified:
		return StatusActive
	case VerifyError:
		return StatusError
	default:
		return StatusProvisioning
	}
}

// VerificationStatus is one poll response.
type VerificationStatus struct {
	State        VerifyState
	ErrorMessage string
}

// DryRunResult is the outcome of a dry-run check.
type DryRunResult struct {
	OK      bool
	Message string
}
