package models

import "time"

// CertificateFormat enumerates supported certificate export formats.
type CertificateFormat string

const (
	CertificateFormatPDF CertificateFormat = "pdf"
	CertificateFormatCSV CertificateFormat = "csv"
)

// CertificateStatus captures background job lifecycle states.
type CertificateStatus string

const (
	CertificateStatusQueued     CertificateStatus = "QUEUED"
	CertificateStatusProcessing CertificateStatus = "PROCESSING"
	CertificateStatusFinished   CertificateStatus = "FINISHED"
	CertificateStatusFailed     CertificateStatus = "FAILED"
)

// CertificateJob is the persisted metadata of an asynchronous clearance
// certificate render for a completed request.
type CertificateJob struct {
	ID           string            `db:"id" json:"id"`
	RequestID    string            `db:"request_id" json:"request_id"`
	Format       CertificateFormat `db:"format" json:"format"`
	Status       CertificateStatus `db:"status" json:"status"`
	ResultURL    *string           `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string            `db:"created_by" json:"created_by"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time        `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string           `db:"error_message" json:"error_message,omitempty"`
}
