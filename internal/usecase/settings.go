package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/semmidev/phylaxctl/internal/domain"
	"github.com/semmidev/phylaxctl/internal/infrastructure/metrics"
)

type Card string

const (
	CardStorage    Card = "storage"
	CardRetention  Card = "retention"
	CardScheduling Card = "scheduling"
	CardBackupType Card = "backup-type"
	CardLimits     Card = "limits"
)

type cardMessages struct {
	success string
	failure string
}

var settingsMessages = map[Card]cardMessages{
	CardStorage:    {"Storage settings updated successfully", "Failed to update Primary Storage Target. Please try again."},
	CardRetention:  {"Retention policy updated successfully", "Failed to update retention policy"},
	CardScheduling: {"Scheduling updated successfully", "Failed to update Scheduling. Please try again."},
	CardBackupType: {"Default backup type updated successfully", "Failed to update Default Backup Type. Please try again."},
	CardLimits:     {"Backup timeout updated successfully", "Failed to update backup timeout. Please try again."},
}

var ErrSettingsNotLoaded = errors.New("backup settings not loaded")

// SettingsReconciler edits the backup settings of one connection card by
// card. Patches are always computed against the last authoritative copy and
// every write is followed by a refetch.
type SettingsReconciler struct {
	mu sync.Mutex

	api          domain.SettingsAPI
	status       *StatusBar
	logger       Logger
	connectionID string

	settings *domain.BackupSettings
	editing  map[Card]bool
	saving   bool
}

func NewSettingsReconciler(api domain.SettingsAPI, connectionID string, status *StatusBar, logger Logger) *SettingsReconciler {
	return &SettingsReconciler{
		api:          api,
		status:       status,
		logger:       logger,
		connectionID: connectionID,
		editing:      make(map[Card]bool),
	}
}

func (r *SettingsReconciler) Load(ctx context.Context) error {
	settings, err := r.api.GetBackupSettings(ctx, r.connectionID)
	if err != nil {
		return fmt.Errorf("load backup settings: %w", err)
	}
	r.mu.Lock()
	r.settings = &settings
	r.mu.Unlock()
	return nil
}

func (r *SettingsReconciler) Status() *StatusBar {
	return r.status
}

// Settings returns a copy of the current settings.
func (r *SettingsReconciler) Settings() (domain.BackupSettings, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return domain.BackupSettings{}, false
	}
	return r.settings.Clone(), true
}

func (r *SettingsReconciler) Saving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saving
}

func (r *SettingsReconciler) Editing(card Card) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.editing[card]
}

// Editable reports whether the card may enter edit mode given the current
// storage configuration.
func (r *SettingsReconciler) Editable(card Card) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.editableLocked(card)
}

func (r *SettingsReconciler) editableLocked(card Card) bool {
	if r.settings == nil {
		return false
	}
	switch card {
	case CardRetention:
		return r.settings.RetentionEditable()
	case CardScheduling:
		return r.settings.SchedulingEditable()
	}
	return true
}

// BackupTypeOptions lists the backup types the engine allows.
func (r *SettingsReconciler) BackupTypeOptions() []domain.BackupType {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return nil
	}
	return domain.AllowedBackupTypes(r.settings.Engine)
}

func (r *SettingsReconciler) Edit(card Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return ErrSettingsNotLoaded
	}
	if !r.editableLocked(card) {
		return domain.ErrCardLocked
	}
	r.editing[card] = true
	return nil
}

func (r *SettingsReconciler) Cancel(card Card) {
	r.mu.Lock()
	delete(r.editing, card)
	r.mu.Unlock()
	r.status.ClearErrors()
}

func (r *SettingsReconciler) SaveStorage(ctx context.Context, d domain.StorageDraft) error {
	return r.save(ctx, CardStorage,
		func(s domain.BackupSettings) []string { return domain.ValidateStorage(d, s.RetentionEnabled) },
		func(s domain.BackupSettings) domain.Patch { return domain.BuildStoragePatch(s, d) })
}

func (r *SettingsReconciler) SaveRetention(ctx context.Context, d domain.RetentionDraft) error {
	return r.save(ctx, CardRetention,
		func(s domain.BackupSettings) []string {
			return domain.ValidateRetention(d, s.StorageTarget, s.BackupDeleteRoleARN != nil && *s.BackupDeleteRoleARN != "")
		},
		func(s domain.BackupSettings) domain.Patch { return domain.BuildRetentionPatch(s, d) })
}

func (r *SettingsReconciler) SaveSchedule(ctx context.Context, d domain.ScheduleDraft) error {
	return r.save(ctx, CardScheduling,
		func(domain.BackupSettings) []string { return domain.ValidateSchedule(d) },
		func(s domain.BackupSettings) domain.Patch { return domain.BuildSchedulePatch(s, d) })
}

func (r *SettingsReconciler) SaveBackupType(ctx context.Context, t domain.BackupType) error {
	return r.save(ctx, CardBackupType,
		func(s domain.BackupSettings) []string { return domain.ValidateBackupType(t, s.Engine) },
		func(s domain.BackupSettings) domain.Patch { return domain.BuildBackupTypePatch(s, t) })
}

func (r *SettingsReconciler) SaveLimits(ctx context.Context, d domain.LimitsDraft) error {
	return r.save(ctx, CardLimits,
		func(domain.BackupSettings) []string { return domain.ValidateLimits(d) },
		func(s domain.BackupSettings) domain.Patch { return domain.BuildLimitsPatch(s, d) })
}

func (r *SettingsReconciler) save(
	ctx context.Context,
	card Card,
	validate func(domain.BackupSettings) []string,
	build func(domain.BackupSettings) domain.Patch,
) error {
	r.mu.Lock()
	if r.saving {
		r.mu.Unlock()
		r.logger.Debugf("[%s] Save of %s ignored, another save is in flight", r.connectionID, card)
		return domain.ErrBusy
	}
	if r.settings == nil {
		r.mu.Unlock()
		return ErrSettingsNotLoaded
	}
	if !r.editing[card] {
		r.mu.Unlock()
		return domain.ErrNotEditing
	}

	authoritative := r.settings.Clone()
	if violations := validate(authoritative); len(violations) > 0 {
		r.mu.Unlock()
		r.status.Show(StatusError, violations[0])
		return domain.AsValidation(violations)
	}

	patch := build(authoritative)
	if patch.Empty() {
		delete(r.editing, card)
		r.mu.Unlock()
		return nil
	}

	optimistic := domain.ApplyPatch(authoritative, patch)
	r.settings = &optimistic
	r.saving = true
	r.mu.Unlock()

	r.logger.Debugf("[%s] Patching %s settings: %v", r.connectionID, card, keys(patch))
	updateErr := r.api.UpdateBackupSettings(ctx, r.connectionID, patch)
	fresh, fetchErr := r.api.GetBackupSettings(ctx, r.connectionID)

	r.mu.Lock()
	r.saving = false
	messages := settingsMessages[card]

	if updateErr != nil || fetchErr != nil {
		r.settings = &authoritative
		if updateErr != nil && fetchErr == nil {
			r.settings = &fresh
		}
		r.mu.Unlock()

		metrics.SettingsPatches.WithLabelValues(string(card), "error").Inc()
		err := updateErr
		if err == nil {
			err = fetchErr
		}
		r.logger.Errorf("[%s] Failed to update %s settings: %v", r.connectionID, card, err)
		r.status.Show(StatusError, messages.failure)
		return fmt.Errorf("update %s settings: %w", card, err)
	}

	r.settings = &fresh
	delete(r.editing, card)
	r.mu.Unlock()

	metrics.SettingsPatches.WithLabelValues(string(card), "success").Inc()
	r.logger.Infof("[%s] Updated %s settings", r.connectionID, card)
	r.status.Show(StatusSuccess, messages.success)
	return nil
}
