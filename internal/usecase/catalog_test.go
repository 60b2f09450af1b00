package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"

	"github.com/semmidev/phylaxctl/internal/domain"
	"github.com/semmidev/phylaxctl/internal/infrastructure/logger"
	"github.com/semmidev/phylaxctl/internal/mocks"
)

func TestCatalog(t *testing.T) {
	Convey("Given a connection list", t, func() {
		ctx := context.Background()
		earlier := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		later := earlier.Add(6 * time.Hour)
		connections := []domain.Connection{
			{ID: "c-1", Name: "orders_db", Engine: domain.EnginePostgreSQL, Status: domain.StatusActive,
				LastBackupAt: &earlier, BackupStatus: ptr(domain.BackupSuccess), StorageUsedGB: 1.5},
			{ID: "c-2", Name: "Sessions", Engine: domain.EngineMongoDB, Status: domain.StatusError,
				LastBackupAt: &later, BackupStatus: ptr(domain.BackupFailed), StorageUsedGB: 0.5},
			{ID: "c-3", Name: "billing", Engine: domain.EngineMySQL, Status: domain.StatusVerifying},
		}
		api := &mocks.MockConnectionAPI{}
		api.On("ListConnections", mock.Anything).Return(connections, nil)
		catalog := NewCatalog(api, logger.Nop())

		Convey("When all connections are listed", func() {
			listed, err := catalog.List(ctx, AllConnections{})
			So(err, ShouldBeNil)
			So(listed, ShouldHaveLength, 3)
		})

		Convey("When searching by name or engine", func() {
			byName, _ := catalog.List(ctx, SearchConnections{Query: "SESS"})
			byEngine, _ := catalog.List(ctx, SearchConnections{Query: "mysql"})
			blank, _ := catalog.List(ctx, SearchConnections{Query: "  "})

			Convey("It should match case-insensitively", func() {
				So(byName, ShouldHaveLength, 1)
				So(byName[0].ID, ShouldEqual, "c-2")
				So(byEngine, ShouldHaveLength, 1)
				So(byEngine[0].ID, ShouldEqual, "c-3")
				So(blank, ShouldHaveLength, 3)
			})
		})

		Convey("When stats are computed", func() {
			stats, err := catalog.Stats(ctx)

			Convey("It should aggregate the list", func() {
				So(err, ShouldBeNil)
				So(stats.Total, ShouldEqual, 3)
				So(stats.Active, ShouldEqual, 1)
				So(stats.BackedUp, ShouldEqual, 1)
				So(stats.LastBackupAt.Equal(later), ShouldBeTrue)
				So(*stats.LastBackupStatus, ShouldEqual, domain.BackupFailed)
				So(stats.StorageUsedGB, ShouldAlmostEqual, 2.0)
			})
		})
	})

	Convey("Given a failing backend", t, func() {
		api := &mocks.MockConnectionAPI{}
		api.On("ListConnections", mock.Anything).Return(nil, errors.New("503"))
		api.On("DeleteConnection", mock.Anything, "c-1").Return(errors.New("409"))
		catalog := NewCatalog(api, logger.Nop())

		_, listErr := catalog.List(context.Background(), AllConnections{})
		deleteErr := catalog.Delete(context.Background(), "c-1")

		So(listErr, ShouldNotBeNil)
		So(deleteErr.Error(), ShouldContainSubstring, "c-1")
	})
}
