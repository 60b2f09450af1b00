// Package metrics provides Prometheus counters for connection verification
// and settings reconciliation.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DryRuns counts dry-run connection checks by result.
	DryRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phylax_connection_dry_run_total",
		Help: "The total number of dry-run connection checks",
	}, []string{"result"})

	// PollRequests counts verification status requests by outcome.
	PollRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phylax_verification_poll_total",
		Help: "The total number of verification status requests",
	}, []string{"outcome"})

	// ConnectionSubmits counts create and update submissions.
	ConnectionSubmits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phylax_connection_submit_total",
		Help: "The total number of connection submissions",
	}, []string{"mode", "result"})

	// SettingsPatches counts backup settings saves per card.
	SettingsPatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phylax_settings_patch_total",
		Help: "The total number of backup settings patches",
	}, []string{"card", "result"})

	// BackupRequests counts manual backup, restore and download requests.
	BackupRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phylax_backup_request_total",
		Help: "The total number of backup, restore and download requests",
	}, []string{"operation", "result"})
)

// WriteTextfile dumps the default registry in the text exposition format so
// a node exporter textfile collector can pick it up.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
