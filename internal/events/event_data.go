package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// DatasetImportedData contains data for DatasetImported events
type DatasetImportedData struct {
	Kind     string `json:"kind"` // touchpoints, conversions, spend
	Rows     int    `json:"rows"`
	Source   string `json:"source,omitempty"` // json, csv
	Rejected int    `json:"rejected,omitempty"`
}

// EventType returns the event type for DatasetImportedData
func (d *DatasetImportedData) EventType() EventType {
	return DatasetImported
}

// AttributionReportGeneratedData contains data for AttributionReportGenerated events
type AttributionReportGeneratedData struct {
	Model             string  `json:"model"`
	DateFrom          string  `json:"date_from"`
	DateTo            string  `json:"date_to"`
	Channels          int     `json:"channels"`
	AttributedRevenue float64 `json:"attributed_revenue"`
	ReportID          string  `json:"report_id,omitempty"`
}

// EventType returns the event type for AttributionReportGeneratedData
func (d *AttributionReportGeneratedData) EventType() EventType {
	return AttributionReportGenerated
}

// OptimizationCompletedData contains data for OptimizationCompleted events
type OptimizationCompletedData struct {
	Goal             string  `json:"goal"`
	TotalBudget      float64 `json:"total_budget"`
	Iterations       int     `json:"iterations"`
	ProjectedRevenue float64 `json:"projected_revenue"`
	ReportID         string  `json:"report_id,omitempty"`
}

// EventType returns the event type for OptimizationCompletedData
func (d *OptimizationCompletedData) EventType() EventType {
	return OptimizationCompleted
}

// AnomalyDetectedData contains data for AnomalyDetected events
type AnomalyDetectedData struct {
	Channel  string  `json:"channel"`
	Metric   string  `json:"metric"`
	Date     string  `json:"date"`
	ZScore   float64 `json:"z_score"`
	Severity string  `json:"severity"`
}

// EventType returns the event type for AnomalyDetectedData
func (d *AnomalyDetectedData) EventType() EventType {
	return AnomalyDetected
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key string `json:"key"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Destination string `json:"destination"` // local, r2
	SizeBytes   int64  `json:"size_bytes"`
	Databases   int    `json:"databases"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}
