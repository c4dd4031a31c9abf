package ingest

import (
	"time"

	"github.com/google/uuid"
)

// State is the session-level position in the pipeline.
type State string

const (
	StateIdle            State = "idle"
	StateParsing         State = "parsing"
	StateValidating      State = "validating"
	StateReadyToCommit   State = "ready_to_commit"
	StateCommitting      State = "committing"
	StateCompleted       State = "completed"
	StatePartiallyFailed State = "partially_failed"
)

// Terminal reports whether no further stage will run for a session in this
// state. Sessions never start in StateIdle, so Idle here means a fatal
// parse or header failure already sent the session back.
func (s State) Terminal() bool {
	return s == StateIdle || s == StateCompleted || s == StatePartiallyFailed
}

// Session is a caller-visible snapshot of one import session. Fatal parse
// and header-level failures land the session back in StateIdle with Error
// set; there is no terminal failure state distinct from PartiallyFailed.
type Session struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	FileName  string    `json:"fileName"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"createdAt"`

	Validation *ValidationResult `json:"validation,omitempty"`
	Upload     *UploadResult     `json:"upload,omitempty"`
}
