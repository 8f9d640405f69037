// Package events provides the in-process event bus and typed event
// payloads used to notify connected clients (SSE/websocket) and internal
// listeners about state changes.
package events

import "time"

// EventType identifies the kind of event being published
type EventType string

const (
	// DatasetImported fires after an ingest batch or CSV import commits
	DatasetImported EventType = "dataset_imported"
	// AttributionReportGenerated fires when an attribution run completes
	AttributionReportGenerated EventType = "attribution_report_generated"
	// OptimizationCompleted fires when a budget optimization run completes
	OptimizationCompleted EventType = "optimization_completed"
	// AnomalyDetected fires once per concerning anomaly found by a scan
	AnomalyDetected EventType = "anomaly_detected"
	// SettingsChanged fires when a setting is created or updated
	SettingsChanged EventType = "settings_changed"
	// BackupCompleted fires after a local or offsite backup finishes
	BackupCompleted EventType = "backup_completed"
)

// Event is the envelope published on the bus and fanned out to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}
