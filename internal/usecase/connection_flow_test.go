package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"

	"github.com/semmidev/phylaxctl/internal/adapter/draftstore"
	"github.com/semmidev/phylaxctl/internal/domain"
	"github.com/semmidev/phylaxctl/internal/infrastructure/logger"
	"github.com/semmidev/phylaxctl/internal/mocks"
)

func ptr[T any](v T) *T { return &v }

func scenarioDraft() domain.ConnectionDraft {
	return domain.ConnectionDraft{
		Name:        "orders_db",
		Host:        "db.example.com",
		Port:        "5432",
		Engine:      domain.EnginePostgreSQL,
		Environment: "production",
		Username:    "admin",
		Secret:      "s3cr3t",
	}
}

func storedDetails() domain.ConnectionDetails {
	return domain.ConnectionDetails{
		ID:          "c-1",
		Name:        "orders_db",
		Host:        "db.example.com",
		Port:        ptr(5432),
		Engine:      domain.EnginePostgreSQL,
		Environment: "production",
		Username:    ptr("admin"),
	}
}

func waitClosed(f *ConnectionFlow) bool {
	select {
	case <-f.Done():
		return true
	case <-time.After(5 * time.Second):
		return false
	}
}

func TestConnectionFlowCreate(t *testing.T) {
	Convey("Given an add-connection flow", t, func() {
		ctx := context.Background()
		clk := testclock.NewClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
		statusClk := testclock.NewClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
		api := &mocks.MockConnectionAPI{}
		notifier := &mocks.MockNotifier{}
		drafts := draftstore.NewMemory()
		catalog := NewCatalog(api, logger.Nop())

		listed := make(chan []domain.Connection, 1)
		deps := FlowDeps{
			API:      api,
			Drafts:   drafts,
			Notifier: notifier,
			Logger:   logger.Nop(),
			Status:   NewStatusBar(statusClk, DefaultStatusTTL),
			OnSuccess: func(ctx context.Context) {
				connections, err := catalog.List(ctx, AllConnections{})
				if err == nil {
					listed <- connections
				}
			},
		}
		flow := NewCreateFlow(ctx, deps, FlowConfig{Clock: clk})
		So(flow.Edit(ctx, func(d *domain.ConnectionDraft) { *d = scenarioDraft() }), ShouldBeNil)

		Convey("When the draft is verified, submitted and verified by the backend", func() {
			api.On("DryRunVerify", mock.Anything, mock.Anything).Return(domain.DryRunResult{OK: true}, nil).Once()
			api.On("CreateConnection", mock.Anything, mock.Anything).
				Return(domain.Connection{ID: "c-42", Status: domain.StatusProvisioning}, nil).Once()
			api.On("StartBackendVerification", mock.Anything, "c-42").Return(domain.VerifyCreated, nil).Once()
			api.On("GetVerificationStatus", mock.Anything, "c-42").
				Return(domain.VerificationStatus{State: domain.VerifyVerifying}, nil).Once()
			api.On("GetVerificationStatus", mock.Anything, "c-42").
				Return(domain.VerificationStatus{State: domain.VerifyVerified}, nil).Once()
			api.On("ListConnections", mock.Anything).Return([]domain.Connection{
				{ID: "c-42", Name: "orders_db", Engine: domain.EnginePostgreSQL, Status: domain.StatusActive},
			}, nil).Once()
			notified := make(chan struct{}, 1)
			notifier.On("Notify", mock.Anything, "Connection c-42 verified").Return(nil).
				Run(func(mock.Arguments) { notified <- struct{}{} }).Once()

			So(flow.Verify(ctx), ShouldBeNil)
			So(flow.Snapshot().Phase, ShouldResemble, domain.Verified{})

			So(flow.Submit(ctx), ShouldBeNil)
			So(flow.Snapshot().Locked, ShouldBeTrue)

			So(clk.WaitAdvance(DefaultPollInterval, shortWait, 1), ShouldBeNil)
			So(clk.WaitAdvance(DefaultSuccessDelay, shortWait, 1), ShouldBeNil)

			Convey("It should close the flow and refetch the list", func() {
				So(waitClosed(flow), ShouldBeTrue)

				var connections []domain.Connection
				select {
				case connections = <-listed:
				case <-time.After(time.Second):
				}
				So(connections, ShouldHaveLength, 1)
				So(connections[0].Status, ShouldEqual, domain.StatusActive)

				snap := flow.Snapshot()
				So(snap.Closed, ShouldBeTrue)
				So(snap.Phase, ShouldResemble, domain.BackendVerified{ConnectionID: "c-42"})

				api.AssertNumberOfCalls(t, "GetVerificationStatus", 2)
				select {
				case <-notified:
				case <-time.After(time.Second):
				}
				notifier.AssertExpectations(t)

				_, saved, _ := drafts.Load(ctx, AddDraftKey)
				So(saved, ShouldBeFalse)
			})

			Convey("It should send the trimmed create payload", func() {
				So(waitClosed(flow), ShouldBeTrue)
				api.AssertCalled(t, "CreateConnection", mock.Anything, domain.NewConnection{
					Name:        "orders_db",
					Host:        "db.example.com",
					Port:        ptr(5432),
					Engine:      domain.EnginePostgreSQL,
					Environment: "production",
					Username:    ptr("admin"),
					Secret:      "s3cr3t",
				})
			})
		})

		Convey("When submitting without a dry run", func() {
			err := flow.Submit(ctx)

			Convey("It should be rejected", func() {
				So(errors.Is(err, domain.ErrVerificationRequired), ShouldBeTrue)
				snap := flow.Snapshot()
				So(snap.Phase, ShouldResemble, domain.Idle{})
				So(snap.Status.Text, ShouldEqual, "Please verify the connection before saving")
				api.AssertNotCalled(t, "CreateConnection", mock.Anything, mock.Anything)
			})
		})

		Convey("When the draft is edited after a successful dry run", func() {
			api.On("DryRunVerify", mock.Anything, mock.Anything).Return(domain.DryRunResult{OK: true}, nil).Once()
			So(flow.Verify(ctx), ShouldBeNil)
			So(flow.Edit(ctx, func(d *domain.ConnectionDraft) { d.Port = "5433" }), ShouldBeNil)

			Convey("It should return to idle", func() {
				So(flow.Snapshot().Phase, ShouldResemble, domain.Idle{})
				So(errors.Is(flow.Submit(ctx), domain.ErrVerificationRequired), ShouldBeTrue)
			})
		})

		Convey("When the dry run fails", func() {
			api.On("DryRunVerify", mock.Anything, mock.Anything).Return(domain.DryRunResult{}, errors.New("timeout")).Once()
			So(flow.Verify(ctx), ShouldBeNil)

			Convey("It should stay editable and show the failure", func() {
				snap := flow.Snapshot()
				So(snap.Phase, ShouldResemble, domain.Failed{Message: "Verification failed. Please check credentials."})
				So(snap.Locked, ShouldBeFalse)
				So(snap.Status.Kind, ShouldEqual, StatusError)
			})
		})

		Convey("When the draft is invalid", func() {
			So(flow.Edit(ctx, func(d *domain.ConnectionDraft) { d.Host = ""; d.Secret = "" }), ShouldBeNil)
			err := flow.Verify(ctx)

			Convey("It should keep the phase and surface the first violation", func() {
				var verr *domain.ValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				So(verr.Violations, ShouldResemble, []string{"Host is required", "Password is required"})

				snap := flow.Snapshot()
				So(snap.Phase, ShouldResemble, domain.Idle{})
				So(snap.Status.Text, ShouldEqual, "Host is required")
				api.AssertNotCalled(t, "DryRunVerify", mock.Anything, mock.Anything)
			})
		})

		Convey("When the backend reports a verification error", func() {
			api.On("DryRunVerify", mock.Anything, mock.Anything).Return(domain.DryRunResult{OK: true}, nil).Once()
			api.On("CreateConnection", mock.Anything, mock.Anything).Return(domain.Connection{ID: "c-7"}, nil).Once()
			api.On("StartBackendVerification", mock.Anything, "c-7").Return(domain.VerifyVerifying, nil).Once()
			api.On("GetVerificationStatus", mock.Anything, "c-7").
				Return(domain.VerificationStatus{State: domain.VerifyError, ErrorMessage: "password authentication failed"}, nil).Once()
			notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

			So(flow.Verify(ctx), ShouldBeNil)
			So(flow.Submit(ctx), ShouldBeNil)

			Convey("It should stop polling and keep the flow open with the server message", func() {
				So(eventually(func() bool {
					_, failed := flow.Snapshot().Phase.(domain.BackendFailed)
					return failed
				}), ShouldBeTrue)

				snap := flow.Snapshot()
				So(snap.Phase, ShouldResemble, domain.BackendFailed{ConnectionID: "c-7", Message: "password authentication failed"})
				So(snap.Closed, ShouldBeFalse)
				So(snap.Status.Text, ShouldEqual, "password authentication failed")
				api.AssertNumberOfCalls(t, "GetVerificationStatus", 1)
				So(errors.Is(flow.Submit(ctx), ErrAlreadySubmitted), ShouldBeTrue)
				flow.Close()
			})
		})

		Convey("When the flow is closed while a status request is in flight", func() {
			release := make(chan struct{})
			inFlight := make(chan struct{})
			api.On("DryRunVerify", mock.Anything, mock.Anything).Return(domain.DryRunResult{OK: true}, nil).Once()
			api.On("CreateConnection", mock.Anything, mock.Anything).Return(domain.Connection{ID: "c-9"}, nil).Once()
			api.On("StartBackendVerification", mock.Anything, "c-9").Return(domain.VerifyCreated, nil).Once()
			api.On("GetVerificationStatus", mock.Anything, "c-9").
				Return(domain.VerificationStatus{State: domain.VerifyVerified}, nil).
				Run(func(mock.Arguments) {
					close(inFlight)
					<-release
				}).Once()

			So(flow.Verify(ctx), ShouldBeNil)
			So(flow.Submit(ctx), ShouldBeNil)
			<-inFlight
			flow.Close()
			close(release)
			time.Sleep(50 * time.Millisecond)

			Convey("It should not apply the late response", func() {
				snap := flow.Snapshot()
				So(snap.Closed, ShouldBeTrue)
				So(snap.Phase, ShouldResemble, domain.BackendPending{ConnectionID: "c-9"})
				So(listed, ShouldBeEmpty)
				notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
			})
		})
	})
}

func TestConnectionFlowDrafts(t *testing.T) {
	Convey("Given a draft store", t, func() {
		ctx := context.Background()
		clk := testclock.NewClock(time.Now())
		drafts := draftstore.NewMemory()
		deps := FlowDeps{API: &mocks.MockConnectionAPI{}, Drafts: drafts, Logger: logger.Nop()}

		Convey("When an add form is edited", func() {
			flow := NewCreateFlow(ctx, deps, FlowConfig{Clock: clk})
			So(flow.Edit(ctx, func(d *domain.ConnectionDraft) { d.Secret = "only-secret" }), ShouldBeNil)
			So(drafts.Saves(), ShouldEqual, 0)

			So(flow.Edit(ctx, func(d *domain.ConnectionDraft) { *d = scenarioDraft() }), ShouldBeNil)
			flow.Close()

			Convey("It should persist everything but the secret", func() {
				saved, ok, _ := drafts.Load(ctx, AddDraftKey)
				So(ok, ShouldBeTrue)
				So(saved.Host, ShouldEqual, "db.example.com")

				reopened := NewCreateFlow(ctx, deps, FlowConfig{Clock: clk})
				snap := reopened.Snapshot()
				So(snap.Draft.Name, ShouldEqual, "orders_db")
				So(snap.Draft.Secret, ShouldBeEmpty)
				So(snap.Phase, ShouldResemble, domain.Idle{})
				reopened.Close()
			})
		})

		Convey("When a saved draft is cleared field by field", func() {
			flow := NewCreateFlow(ctx, deps, FlowConfig{Clock: clk})
			So(flow.Edit(ctx, func(d *domain.ConnectionDraft) { *d = scenarioDraft() }), ShouldBeNil)
			_, ok, _ := drafts.Load(ctx, AddDraftKey)
			So(ok, ShouldBeTrue)

			So(flow.Edit(ctx, func(d *domain.ConnectionDraft) { *d = domain.ConnectionDraft{} }), ShouldBeNil)
			flow.Close()

			Convey("It should drop the stored draft so the next form opens empty", func() {
				_, ok, _ := drafts.Load(ctx, AddDraftKey)
				So(ok, ShouldBeFalse)

				reopened := NewCreateFlow(ctx, deps, FlowConfig{Clock: clk})
				So(reopened.Snapshot().Draft, ShouldResemble, domain.ConnectionDraft{})
				reopened.Close()
			})
		})
	})
}

func TestConnectionFlowEdit(t *testing.T) {
	Convey("Given an edit flow for a stored connection", t, func() {
		ctx := context.Background()
		clk := testclock.NewClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
		api := &mocks.MockConnectionAPI{}
		api.On("GetConnection", mock.Anything, "c-1").Return(storedDetails(), nil).Once()

		refetched := make(chan struct{}, 1)
		deps := FlowDeps{
			API:       api,
			Logger:    logger.Nop(),
			Status:    NewStatusBar(testclock.NewClock(time.Now()), DefaultStatusTTL),
			OnSuccess: func(context.Context) { refetched <- struct{}{} },
		}
		flow, err := NewEditFlow(ctx, deps, FlowConfig{Clock: clk}, "c-1")
		So(err, ShouldBeNil)

		Convey("When only the environment changes", func() {
			api.On("UpdateConnection", mock.Anything, "c-1", domain.Patch{domain.KeyEnvironment: "staging"}).Return(nil).Once()
			So(flow.Edit(ctx, func(d *domain.ConnectionDraft) { d.Environment = "staging" }), ShouldBeNil)
			So(flow.Submit(ctx), ShouldBeNil)
			So(clk.WaitAdvance(DefaultSuccessDelay, shortWait, 1), ShouldBeNil)

			Convey("It should save without backend verification", func() {
				So(waitClosed(flow), ShouldBeTrue)
				So(refetched, ShouldHaveLength, 1)
				api.AssertExpectations(t)
				api.AssertNotCalled(t, "StartBackendVerification", mock.Anything, mock.Anything)
				api.AssertNotCalled(t, "GetVerificationStatus", mock.Anything, mock.Anything)
				api.AssertNotCalled(t, "DryRunVerify", mock.Anything, mock.Anything)
			})
		})

		Convey("When nothing changed", func() {
			So(flow.Submit(ctx), ShouldBeNil)

			Convey("It should report that there is nothing to save", func() {
				snap := flow.Snapshot()
				So(snap.Status.Text, ShouldEqual, "No changes to update")
				So(snap.Closed, ShouldBeFalse)
				api.AssertNotCalled(t, "UpdateConnection", mock.Anything, mock.Anything, mock.Anything)
			})
		})

		Convey("When the host changes", func() {
			So(flow.Edit(ctx, func(d *domain.ConnectionDraft) { d.Host = "db2.example.com" }), ShouldBeNil)

			Convey("It should require a dry run first", func() {
				So(errors.Is(flow.Submit(ctx), domain.ErrVerificationRequired), ShouldBeTrue)
			})

			Convey("It should hand over to backend verification after a dry run", func() {
				api.On("DryRunVerify", mock.Anything, mock.MatchedBy(func(c domain.DryRunCandidate) bool {
					return c.ConnectionID == "c-1" && c.Host == "db2.example.com"
				})).Return(domain.DryRunResult{OK: true}, nil).Once()
				api.On("UpdateConnection", mock.Anything, "c-1", domain.Patch{domain.KeyHost: "db2.example.com"}).Return(nil).Once()
				api.On("StartBackendVerification", mock.Anything, "c-1").Return(domain.VerifyVerified, nil).Once()

				So(flow.Verify(ctx), ShouldBeNil)
				So(flow.Submit(ctx), ShouldBeNil)
				So(flow.Snapshot().Status.Text, ShouldEqual, "Database updated and verified successfully")
				So(clk.WaitAdvance(DefaultSuccessDelay, shortWait, 1), ShouldBeNil)
				So(waitClosed(flow), ShouldBeTrue)
				api.AssertExpectations(t)
			})
		})

		Convey("When the update fails", func() {
			api.On("UpdateConnection", mock.Anything, "c-1", mock.Anything).Return(errors.New("502")).Once()
			So(flow.Edit(ctx, func(d *domain.ConnectionDraft) { d.Environment = "staging" }), ShouldBeNil)
			err := flow.Submit(ctx)

			Convey("It should keep the form open with a generic message", func() {
				So(err, ShouldNotBeNil)
				snap := flow.Snapshot()
				So(snap.Status.Text, ShouldEqual, "Failed to update database")
				So(snap.Locked, ShouldBeFalse)
				So(snap.Closed, ShouldBeFalse)
			})
		})
	})
}
