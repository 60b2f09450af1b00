// Package mocks holds testify mocks of the domain ports.
package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/semmidev/phylaxctl/internal/domain"
)

// MockConnectionAPI mocks domain.ConnectionAPI.
type MockConnectionAPI struct {
	mock.Mock
}

func (m *MockConnectionAPI) ListConnections(ctx context.Context) ([]domain.Connection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Connection), args.Error(1)
}

func (m *MockConnectionAPI) CreateConnection(ctx context.Context, c domain.NewConnection) (domain.Connection, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(domain.Connection), args.Error(1)
}

func (m *MockConnectionAPI) GetConnection(ctx context.Context, id string) (domain.ConnectionDetails, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.ConnectionDetails), args.Error(1)
}

func (m *MockConnectionAPI) UpdateConnection(ctx context.Context, id string, p domain.Patch) error {
	args := m.Called(ctx, id, p)
	return args.Error(0)
}

func (m *MockConnectionAPI) DeleteConnection(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConnectionAPI) DryRunVerify(ctx context.Context, c domain.DryRunCandidate) (domain.DryRunResult, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(domain.DryRunResult), args.Error(1)
}

func (m *MockConnectionAPI) StartBackendVerification(ctx context.Context, id string) (domain.VerifyState, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.VerifyState), args.Error(1)
}

func (m *MockConnectionAPI) GetVerificationStatus(ctx context.Context, id string) (domain.VerificationStatus, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.VerificationStatus), args.Error(1)
}

// MockSettingsAPI mocks domain.SettingsAPI.
type MockSettingsAPI struct {
	mock.Mock
}

func (m *MockSettingsAPI) GetBackupSettings(ctx context.Context, connectionID string) (domain.BackupSettings, error) {
	args := m.Called(ctx, connectionID)
	return args.Get(0).(domain.BackupSettings), args.Error(1)
}

func (m *MockSettingsAPI) UpdateBackupSettings(ctx context.Context, connectionID string, p domain.Patch) error {
	args := m.Called(ctx, connectionID, p)
	return args.Error(0)
}

// MockBackupAPI mocks domain.BackupAPI.
type MockBackupAPI struct {
	mock.Mock
}

func (m *MockBackupAPI) ListBackups(ctx context.Context, connectionID string) ([]domain.Backup, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Backup), args.Error(1)
}

func (m *MockBackupAPI) InitiateBackup(ctx context.Context, connectionID string, req domain.BackupRequest) (domain.Backup, error) {
	args := m.Called(ctx, connectionID, req)
	return args.Get(0).(domain.Backup), args.Error(1)
}

func (m *MockBackupAPI) GetBackupCapabilities(ctx context.Context, connectionID string) (domain.BackupCapabilities, error) {
	args := m.Called(ctx, connectionID)
	return args.Get(0).(domain.BackupCapabilities), args.Error(1)
}

func (m *MockBackupAPI) GetDownloadURL(ctx context.Context, backupID string) (string, error) {
	args := m.Called(ctx, backupID)
	return args.String(0), args.Error(1)
}

func (m *MockBackupAPI) RequestRestore(ctx context.Context, connectionID, backupID string) (domain.RestoreAttempt, error) {
	args := m.Called(ctx, connectionID, backupID)
	return args.Get(0).(domain.RestoreAttempt), args.Error(1)
}

// MockNotifier mocks domain.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// MockDownloadStore mocks domain.DownloadStore.
type MockDownloadStore struct {
	mock.Mock
}

func (m *MockDownloadStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	args := m.Called(ctx, name, r)
	return args.String(0), args.Error(1)
}

func (m *MockDownloadStore) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDownloadStore) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockDownloadStore) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	args := m.Called(ctx, cutoffTime)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDownloadStore) GetPath(name string) string {
	args := m.Called(name)
	return args.String(0)
}
