package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/semmidev/phylaxctl/internal/domain"
	"github.com/semmidev/phylaxctl/internal/infrastructure/metrics"
)

type FlowMode string

const (
	ModeCreate FlowMode = "create"
	ModeEdit   FlowMode = "edit"
)

// AddDraftKey is the draft store key of the add-connection form.
const AddDraftKey = "add-database-form"

// DefaultSuccessDelay keeps a final success message visible before the
// flow closes.
const DefaultSuccessDelay = 1500 * time.Millisecond

const (
	msgVerified          = "Connection verified successfully"
	msgDryRunFailed      = "Verification failed. Please check credentials."
	msgVerifyFirst       = "Please verify the connection before saving"
	msgNoChanges         = "No changes to update"
	msgAdded             = "Database added. Verifying connection..."
	msgAddedVerified     = "Database added successfully"
	msgAddFailed         = "Failed to add database"
	msgUpdated           = "Database updated successfully"
	msgUpdatedVerifying  = "Database updated. Verifying connection..."
	msgUpdatedVerified   = "Database updated and verified successfully"
	msgUpdateFailed      = "Failed to update database"
	msgVerificationError = "Verification failed"
)

var ErrAlreadySubmitted = errors.New("connection was already created by this form")

type FlowConfig struct {
	Clock        clock.Clock
	PollInterval time.Duration
	SuccessDelay time.Duration
	StatusTTL    time.Duration
}

type FlowDeps struct {
	API      domain.ConnectionAPI
	Drafts   domain.DraftStore
	Notifier domain.Notifier
	Logger   Logger
	// Status is owned by the flow and disposed on Close. A bar on the flow
	// clock is created when nil.
	Status *StatusBar
	// OnSuccess refetches the owning connection list.
	OnSuccess func(ctx context.Context)
}

// FlowSnapshot is what a view renders.
type FlowSnapshot struct {
	Mode         FlowMode
	Phase        domain.Phase
	Locked       bool
	Submitting   bool
	Violations   []string
	Status       *StatusMessage
	Draft        domain.ConnectionDraft
	ConnectionID string
	// Finishing is set while a success message is shown before the flow
	// closes itself.
	Finishing bool
	Closed    bool
}

type pollSession struct {
	stop      chan struct{}
	cancel    context.CancelFunc
	cancelled bool
}

func (s *pollSession) end() {
	if s.cancelled {
		return
	}
	s.cancelled = true
	close(s.stop)
	s.cancel()
}

// ConnectionFlow drives one add or edit form through dry-run verification,
// submission and backend verification.
type ConnectionFlow struct {
	mu sync.Mutex

	base     context.Context
	api      domain.ConnectionAPI
	drafts   domain.DraftStore
	notifier domain.Notifier
	logger   Logger
	status   *StatusBar
	poller   *StatusPoller
	cfg      FlowConfig

	onSuccess func(ctx context.Context)

	mode         FlowMode
	original     domain.ConnectionDetails
	draft        domain.ConnectionDraft
	phase        domain.Phase
	violations   []string
	submitting   bool
	finishing    bool
	dryRunSeq    uint64
	connectionID string
	poll         *pollSession
	successTimer clock.Timer
	closed       bool
	done         chan struct{}
}

// NewCreateFlow opens an add-connection form, restoring a saved draft once.
func NewCreateFlow(ctx context.Context, deps FlowDeps, cfg FlowConfig) *ConnectionFlow {
	f := newFlow(ctx, ModeCreate, deps, cfg)
	if f.drafts != nil {
		saved, ok, err := f.drafts.Load(ctx, AddDraftKey)
		switch {
		case err != nil:
			f.logger.Warnf("Failed to load saved form draft: %v", err)
		case ok:
			f.draft = saved.ConnectionDraft()
		}
	}
	return f
}

// NewEditFlow opens an edit form seeded from the stored connection.
func NewEditFlow(ctx context.Context, deps FlowDeps, cfg FlowConfig, connectionID string) (*ConnectionFlow, error) {
	details, err := deps.API.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("load connection %s: %w", connectionID, err)
	}
	f := newFlow(ctx, ModeEdit, deps, cfg)
	f.original = details
	f.draft = domain.DraftFromDetails(details)
	f.connectionID = details.ID
	return f, nil
}

func newFlow(ctx context.Context, mode FlowMode, deps FlowDeps, cfg FlowConfig) *ConnectionFlow {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.SuccessDelay <= 0 {
		cfg.SuccessDelay = DefaultSuccessDelay
	}
	status := deps.Status
	if status == nil {
		status = NewStatusBar(cfg.Clock, cfg.StatusTTL)
	}
	return &ConnectionFlow{
		base:      context.WithoutCancel(ctx),
		api:       deps.API,
		drafts:    deps.Drafts,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		status:    status,
		poller:    NewStatusPoller(deps.API, cfg.Clock, cfg.PollInterval, deps.Logger),
		cfg:       cfg,
		onSuccess: deps.OnSuccess,
		mode:      mode,
		phase:     domain.Idle{},
		done:      make(chan struct{}),
	}
}

// Done is closed once the flow is closed.
func (f *ConnectionFlow) Done() <-chan struct{} {
	return f.done
}

func (f *ConnectionFlow) Status() *StatusBar {
	return f.status
}

func (f *ConnectionFlow) Snapshot() FlowSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := FlowSnapshot{
		Mode:         f.mode,
		Phase:        f.phase,
		Locked:       f.lockedLocked(),
		Submitting:   f.submitting,
		Violations:   append([]string(nil), f.violations...),
		Draft:        f.draft.Redacted(),
		ConnectionID: f.connectionID,
		Finishing:    f.finishing,
		Closed:       f.closed,
	}
	if msg, ok := f.status.Current(); ok {
		snap.Status = &msg
	}
	return snap
}

// Edit applies a change to the draft. Any edit invalidates an earlier
// verification result and clears shown violations.
func (f *ConnectionFlow) Edit(ctx context.Context, change func(*domain.ConnectionDraft)) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return domain.ErrClosed
	}
	if f.lockedLocked() {
		f.mu.Unlock()
		return domain.ErrFieldsLocked
	}

	change(&f.draft)
	f.violations = nil
	switch f.phase.(type) {
	case domain.Verified, domain.Failed, domain.BackendFailed:
		f.phase = domain.Idle{}
	}
	draft := f.draft
	persist := f.mode == ModeCreate && f.drafts != nil && f.connectionID == ""
	f.mu.Unlock()

	f.status.ClearErrors()

	if persist {
		f.persistDraft(ctx, draft)
	}
	return nil
}

// persistDraft stores the add-form draft, or drops it once the form is cleared.
func (f *ConnectionFlow) persistDraft(ctx context.Context, draft domain.ConnectionDraft) {
	if draft.IsEmpty() {
		if err := f.drafts.Delete(ctx, AddDraftKey); err != nil {
			f.logger.Warnf("Failed to delete form draft: %v", err)
		}
		return
	}
	if err := f.drafts.Save(ctx, AddDraftKey, domain.SavedDraftFrom(draft)); err != nil {
		f.logger.Warnf("Failed to save form draft: %v", err)
	}
}

// Verify runs the dry-run check for the current draft.
func (f *ConnectionFlow) Verify(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return domain.ErrClosed
	}
	if f.lockedLocked() {
		f.mu.Unlock()
		return domain.ErrBusy
	}
	if err := f.validateLocked(); err != nil {
		f.mu.Unlock()
		return err
	}

	f.phase = domain.Verifying{}
	f.dryRunSeq++
	seq := f.dryRunSeq
	candidate := domain.DryRunCandidate{
		ConnectionID:  f.connectionID,
		NewConnection: domain.NewConnectionFromDraft(f.draft),
	}
	f.mu.Unlock()

	result, err := f.api.DryRunVerify(ctx, candidate)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || seq != f.dryRunSeq {
		return nil
	}

	switch {
	case err != nil:
		f.logger.Warnf("Dry-run verification of %s failed: %v", candidate.Name, err)
		metrics.DryRuns.WithLabelValues("error").Inc()
		f.phase = domain.Failed{Message: msgDryRunFailed}
		f.status.Show(StatusError, msgDryRunFailed)
	case !result.OK:
		message := result.Message
		if message == "" {
			message = msgDryRunFailed
		}
		metrics.DryRuns.WithLabelValues("failure").Inc()
		f.phase = domain.Failed{Message: message}
		f.status.Show(StatusError, message)
	default:
		metrics.DryRuns.WithLabelValues("success").Inc()
		f.phase = domain.Verified{}
		f.status.Show(StatusSuccess, msgVerified)
	}
	return nil
}

// Submit creates or updates the connection. Creation and edits touching how
// the backend reaches the database require a successful dry run first and
// hand over to backend verification.
func (f *ConnectionFlow) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return domain.ErrClosed
	}
	if f.submitting || f.lockedLocked() {
		f.mu.Unlock()
		return domain.ErrBusy
	}
	if err := f.validateLocked(); err != nil {
		f.mu.Unlock()
		return err
	}

	if f.mode == ModeCreate {
		if f.connectionID != "" {
			f.mu.Unlock()
			return ErrAlreadySubmitted
		}
		if _, ok := f.phase.(domain.Verified); !ok {
			f.status.Show(StatusError, msgVerifyFirst)
			f.mu.Unlock()
			return domain.ErrVerificationRequired
		}
		payload := domain.NewConnectionFromDraft(f.draft)
		f.submitting = true
		f.mu.Unlock()
		return f.submitCreate(ctx, payload)
	}

	patch := domain.BuildConnectionPatch(f.original, f.draft)
	if patch.Empty() {
		f.status.Show(StatusInfo, msgNoChanges)
		f.mu.Unlock()
		return nil
	}
	requiresVerification := domain.RequiresBackendVerification(patch)
	if _, ok := f.phase.(domain.Verified); requiresVerification && !ok {
		f.status.Show(StatusError, msgVerifyFirst)
		f.mu.Unlock()
		return domain.ErrVerificationRequired
	}
	f.submitting = true
	f.mu.Unlock()
	return f.submitEdit(ctx, patch, requiresVerification)
}

func (f *ConnectionFlow) submitCreate(ctx context.Context, payload domain.NewConnection) error {
	created, err := f.api.CreateConnection(ctx, payload)

	f.mu.Lock()
	f.submitting = false
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		metrics.ConnectionSubmits.WithLabelValues(string(ModeCreate), "error").Inc()
		f.logger.Errorf("Create connection %s failed: %v", payload.Name, err)
		f.status.Show(StatusError, msgAddFailed)
		f.mu.Unlock()
		return fmt.Errorf("create connection: %w", err)
	}
	metrics.ConnectionSubmits.WithLabelValues(string(ModeCreate), "success").Inc()
	f.logger.Infof("[%s] Connection created, starting backend verification", created.ID)
	f.connectionID = created.ID
	f.phase = domain.BackendPending{ConnectionID: created.ID}
	f.status.Show(StatusInfo, msgAdded)
	f.mu.Unlock()

	f.startBackendVerification(ctx, created.ID)
	return nil
}

func (f *ConnectionFlow) submitEdit(ctx context.Context, patch domain.Patch, requiresVerification bool) error {
	err := f.api.UpdateConnection(ctx, f.connectionID, patch)

	f.mu.Lock()
	f.submitting = false
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		metrics.ConnectionSubmits.WithLabelValues(string(ModeEdit), "error").Inc()
		f.logger.Errorf("[%s] Update connection failed: %v", f.connectionID, err)
		f.status.Show(StatusError, msgUpdateFailed)
		f.mu.Unlock()
		return fmt.Errorf("update connection: %w", err)
	}
	metrics.ConnectionSubmits.WithLabelValues(string(ModeEdit), "success").Inc()
	f.original = f.original.WithDraft(f.draft)
	f.draft.Secret = ""

	id := f.connectionID
	if requiresVerification {
		f.phase = domain.BackendPending{ConnectionID: id}
		f.status.Show(StatusInfo, msgUpdatedVerifying)
		f.mu.Unlock()
		f.startBackendVerification(ctx, id)
		return nil
	}

	f.status.Show(StatusSuccess, msgUpdated)
	f.finishLocked()
	f.mu.Unlock()
	return nil
}

// startBackendVerification asks the backend to verify a persisted
// connection and polls until the result is terminal.
func (f *ConnectionFlow) startBackendVerification(ctx context.Context, id string) {
	state, err := f.api.StartBackendVerification(ctx, id)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}

	var notice string
	switch {
	case err != nil:
		f.logger.Errorf("[%s] Starting backend verification failed: %v", id, err)
		f.failBackendLocked(id, msgVerificationError)
		notice = fmt.Sprintf("Connection %s verification failed", id)
	case state == domain.VerifyVerified:
		f.succeedLocked(id)
		notice = fmt.Sprintf("Connection %s verified", id)
	case state == domain.VerifyError:
		f.failBackendLocked(id, msgVerificationError)
		notice = fmt.Sprintf("Connection %s verification failed", id)
	default:
		if state == domain.VerifyVerifying {
			f.phase = domain.BackendVerifying{ConnectionID: id}
		}
		pollCtx, cancel := context.WithCancel(f.base)
		session := &pollSession{stop: make(chan struct{}), cancel: cancel}
		f.poll = session
		go f.runPoll(pollCtx, session, id)
	}
	f.mu.Unlock()

	if notice != "" {
		f.notify(f.base, notice)
	}
}

func (f *ConnectionFlow) runPoll(ctx context.Context, session *pollSession, id string) {
	status, err := f.poller.Poll(ctx, id, session.stop, func(state domain.VerifyState) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if session.cancelled || f.closed {
			return
		}
		if state == domain.VerifyVerifying {
			f.phase = domain.BackendVerifying{ConnectionID: id}
		}
	})

	f.mu.Lock()
	if session.cancelled || f.closed {
		f.mu.Unlock()
		return
	}
	session.end()
	f.poll = nil

	var notice string
	switch {
	case err != nil:
		f.logger.Errorf("[%s] Verification polling failed: %v", id, err)
		f.failBackendLocked(id, msgVerificationError)
		notice = fmt.Sprintf("Connection %s verification failed", id)
	case status.State == domain.VerifyVerified:
		f.succeedLocked(id)
		notice = fmt.Sprintf("Connection %s verified", id)
	default:
		message := status.ErrorMessage
		if message == "" {
			message = msgVerificationError
		}
		f.failBackendLocked(id, message)
		notice = fmt.Sprintf("Connection %s verification failed: %s", id, message)
	}
	f.mu.Unlock()

	f.notify(f.base, notice)
}

func (f *ConnectionFlow) succeedLocked(id string) {
	f.phase = domain.BackendVerified{ConnectionID: id}
	if f.mode == ModeCreate {
		f.status.Show(StatusSuccess, msgAddedVerified)
		if f.drafts != nil {
			if err := f.drafts.Delete(f.base, AddDraftKey); err != nil {
				f.logger.Warnf("Failed to remove form draft: %v", err)
			}
		}
	} else {
		f.status.Show(StatusSuccess, msgUpdatedVerified)
	}
	f.logger.Infof("[%s] Backend verification succeeded", id)
	f.finishLocked()
}

func (f *ConnectionFlow) failBackendLocked(id, message string) {
	f.phase = domain.BackendFailed{ConnectionID: id, Message: message}
	f.status.Show(StatusError, message)
	f.logger.Warnf("[%s] Backend verification failed: %s", id, message)
}

// finishLocked keeps the success message up for the success delay, then
// refetches the owning list and closes the flow.
func (f *ConnectionFlow) finishLocked() {
	f.finishing = true
	f.successTimer = f.cfg.Clock.AfterFunc(f.cfg.SuccessDelay, func() {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return
		}
		f.mu.Unlock()

		if f.onSuccess != nil {
			f.onSuccess(f.base)
		}
		f.Close()
	})
}

func (f *ConnectionFlow) notify(ctx context.Context, message string) {
	if f.notifier == nil {
		return
	}
	if err := f.notifier.Notify(ctx, message); err != nil {
		f.logger.Warnf("Notification failed: %v", err)
	}
}

// Close stops polling and timers. Responses arriving afterwards are dropped.
func (f *ConnectionFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.poll != nil {
		f.poll.end()
		f.poll = nil
	}
	if f.successTimer != nil {
		f.successTimer.Stop()
		f.successTimer = nil
	}
	f.status.Dispose()
	close(f.done)
}

func (f *ConnectionFlow) lockedLocked() bool {
	return f.submitting || f.finishing || domain.LocksFields(f.phase)
}

// validateLocked records violations and surfaces the first one. The phase
// is left untouched.
func (f *ConnectionFlow) validateLocked() error {
	violations := domain.ValidateConnection(f.draft, f.mode == ModeCreate)
	f.violations = violations
	if len(violations) == 0 {
		return nil
	}
	f.status.Show(StatusError, violations[0])
	return domain.AsValidation(violations)
}
