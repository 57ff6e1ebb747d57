package models

import "time"

// ReportNotification публикуется в очередь после завершения прогона генерации.
type ReportNotification struct {
	ReportID        string       `json:"report_id"`
	UserID          string       `json:"user_id,omitempty"`
	Status          ReportStatus `json:"status"`
	TotalLength     int          `json:"total_length"`
	PreviewProduced bool         `json:"preview_produced"`
	ErrorDetails    string       `json:"error_details,omitempty"`
	FinishedAt      time.Time    `json:"finished_at"`
}
