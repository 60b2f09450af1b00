package usecase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"

	"github.com/semmidev/phylaxctl/internal/domain"
	"github.com/semmidev/phylaxctl/internal/infrastructure/logger"
	"github.com/semmidev/phylaxctl/internal/mocks"
)

func sampleBackups() []domain.Backup {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []domain.Backup{
		{
			ID: "b-1", Name: ptr("nightly"), Type: domain.BackupFull, Status: domain.BackupSuccess,
			StorageTarget: domain.LocationS3, StoragePath: "s3://backups/c-1/b-1.sql.gz", CreatedAt: created,
		},
		{
			ID: "b-2", Type: domain.BackupDataOnly, Status: domain.BackupSuccess,
			StorageTarget: domain.LocationS3, StoragePath: "s3://backups/c-1/b-2.sql.gz", CreatedAt: created,
		},
		{
			ID: "b-3", Type: domain.BackupFull, Status: domain.BackupSuccess,
			StorageTarget: domain.LocationLocalDesktop, StoragePath: "/home/me/b-3.sql", CreatedAt: created,
		},
		{
			ID: "b-4", Type: domain.BackupFull, Status: domain.BackupFailed,
			StorageTarget: domain.LocationS3, CreatedAt: created,
		},
	}
}

func TestBackupsInitiate(t *testing.T) {
	Convey("Given a connection that allows manual backups", t, func() {
		ctx := context.Background()
		api := &mocks.MockBackupAPI{}
		settingsAPI := &mocks.MockSettingsAPI{}
		uc := NewBackups(BackupsDeps{API: api, Settings: settingsAPI, Logger: logger.Nop()})

		settings := storedSettings()
		settings.DefaultBackupType = domain.BackupDataOnly

		Convey("When no backup type is given", func() {
			api.On("GetBackupCapabilities", mock.Anything, "c-1").
				Return(domain.BackupCapabilities{Allowed: true, Engine: domain.EnginePostgreSQL}, nil).Once()
			settingsAPI.On("GetBackupSettings", mock.Anything, "c-1").Return(settings, nil).Once()
			api.On("InitiateBackup", mock.Anything, "c-1", domain.BackupRequest{Type: domain.BackupDataOnly, Name: ptr("pre-migration")}).
				Return(domain.Backup{ID: "b-9", Status: domain.BackupQueued}, nil).Once()

			backup, err := uc.Initiate(ctx, "c-1", "", "  pre-migration ")

			Convey("It should use the default type and the trimmed name", func() {
				So(err, ShouldBeNil)
				So(backup.ID, ShouldEqual, "b-9")
				api.AssertExpectations(t)
			})
		})

		Convey("When the backend refuses backups", func() {
			api.On("GetBackupCapabilities", mock.Anything, "c-1").
				Return(domain.BackupCapabilities{Allowed: false, Reason: "connection is not verified"}, nil).Once()

			_, err := uc.Initiate(ctx, "c-1", domain.BackupFull, "")

			Convey("It should surface the reason", func() {
				var capErr *domain.CapabilityError
				So(errors.As(err, &capErr), ShouldBeTrue)
				So(capErr.Reason, ShouldEqual, "connection is not verified")
				api.AssertNotCalled(t, "InitiateBackup", mock.Anything, mock.Anything, mock.Anything)
			})
		})

		Convey("When a structure-only backup is requested for a document store", func() {
			api.On("GetBackupCapabilities", mock.Anything, "c-1").
				Return(domain.BackupCapabilities{Allowed: true, Engine: domain.EngineMongoDB}, nil).Once()

			_, err := uc.Initiate(ctx, "c-1", domain.BackupStructureOnly, "")

			Convey("It should be rejected locally", func() {
				var verr *domain.ValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				api.AssertNotCalled(t, "InitiateBackup", mock.Anything, mock.Anything, mock.Anything)
			})
		})

		Convey("When the name is too long", func() {
			_, err := uc.Initiate(ctx, "c-1", domain.BackupFull, strings.Repeat("x", 65))

			Convey("It should fail before any request", func() {
				var verr *domain.ValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				api.AssertNotCalled(t, "GetBackupCapabilities", mock.Anything, mock.Anything)
			})
		})
	})
}

func TestBackupsRestore(t *testing.T) {
	Convey("Given a list of backups", t, func() {
		ctx := context.Background()
		api := &mocks.MockBackupAPI{}
		api.On("ListBackups", mock.Anything, "c-1").Return(sampleBackups(), nil)
		uc := NewBackups(BackupsDeps{API: api, Logger: logger.Nop()})

		Convey("When a data-only backup is restored", func() {
			_, err := uc.Restore(ctx, "c-1", "b-2")
			So(errors.Is(err, domain.ErrNotRestorable), ShouldBeTrue)
		})

		Convey("When an unknown backup is restored", func() {
			_, err := uc.Restore(ctx, "c-1", "b-404")
			So(errors.Is(err, domain.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the same backup is restored twice concurrently", func() {
			release := make(chan struct{})
			inFlight := make(chan struct{})
			api.On("RequestRestore", mock.Anything, "c-1", "b-1").
				Return(domain.RestoreAttempt{ID: "r-1", Status: domain.RestoreQueued}, nil).
				Run(func(mock.Arguments) {
					close(inFlight)
					<-release
				}).Once()

			first := make(chan error, 1)
			go func() {
				_, err := uc.Restore(ctx, "c-1", "b-1")
				first <- err
			}()
			<-inFlight

			_, err := uc.Restore(ctx, "c-1", "b-1")
			close(release)

			Convey("It should reject the second request", func() {
				So(errors.Is(err, domain.ErrRestoreInFlight), ShouldBeTrue)
				So(<-first, ShouldBeNil)
				api.AssertNumberOfCalls(t, "RequestRestore", 1)
			})
		})
	})
}

func TestBackupsDownload(t *testing.T) {
	Convey("Given a successful S3 backup", t, func() {
		ctx := context.Background()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/artifact" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			_, _ = w.Write([]byte("dump-bytes"))
		}))
		defer server.Close()

		api := &mocks.MockBackupAPI{}
		api.On("ListBackups", mock.Anything, "c-1").Return(sampleBackups(), nil)
		downloads := &mocks.MockDownloadStore{}
		uc := NewBackups(BackupsDeps{API: api, Downloads: downloads, Logger: logger.Nop()})

		Convey("When it is downloaded through a presigned URL", func() {
			api.On("GetDownloadURL", mock.Anything, "b-1").Return(server.URL+"/artifact", nil).Once()
			var body string
			downloads.On("Save", mock.Anything, "nightly_full_20260102_030405.sql.gz", mock.Anything).
				Return("/downloads/nightly_full_20260102_030405.sql.gz", nil).
				Run(func(args mock.Arguments) {
					data, _ := io.ReadAll(args.Get(2).(io.Reader))
					body = string(data)
				}).Once()

			path, err := uc.Download(ctx, "c-1", "b-1")

			Convey("It should store the artifact under a generated name", func() {
				So(err, ShouldBeNil)
				So(path, ShouldEqual, "/downloads/nightly_full_20260102_030405.sql.gz")
				So(body, ShouldEqual, "dump-bytes")
			})
		})

		Convey("When the presigned URL is rejected", func() {
			api.On("GetDownloadURL", mock.Anything, "b-1").Return(server.URL+"/expired", nil).Once()
			_, err := uc.Download(ctx, "c-1", "b-1")

			Convey("It should fail without saving", func() {
				So(err, ShouldNotBeNil)
				downloads.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
			})
		})

		Convey("When a local or failed backup is downloaded", func() {
			_, localErr := uc.Download(ctx, "c-1", "b-3")
			_, failedErr := uc.Download(ctx, "c-1", "b-4")

			Convey("It should be refused", func() {
				So(errors.Is(localErr, domain.ErrNotDownloadable), ShouldBeTrue)
				So(errors.Is(failedErr, domain.ErrNotDownloadable), ShouldBeTrue)
			})
		})
	})
}

func TestGenerateFilename(t *testing.T) {
	Convey("Given backups with and without names", t, func() {
		created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

		Convey("It should prefer a sanitised name and keep the remote extension", func() {
			b := domain.Backup{ID: "b-1", Name: ptr("before deploy!"), Type: domain.BackupFull, StoragePath: "x/y.tar.gz", CreatedAt: created}
			So(generateFilename(b), ShouldEqual, "before-deploy_full_20260304_050607.tar.gz")
		})

		Convey("It should fall back to the id and a generic extension", func() {
			b := domain.Backup{ID: "b-2", Type: domain.BackupDataOnly, StoragePath: "x/y", CreatedAt: created}
			So(generateFilename(b), ShouldEqual, "b-2_data_only_20260304_050607.backup")
		})

		Convey("It should round-trip the timestamp", func() {
			b := domain.Backup{ID: "b-3", Type: domain.BackupFull, StoragePath: "a.sql", CreatedAt: created}
			ts, err := extractTimestamp(generateFilename(b))
			So(err, ShouldBeNil)
			So(ts.Equal(created), ShouldBeTrue)
		})
	})
}
