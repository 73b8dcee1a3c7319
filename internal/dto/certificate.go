package dto

import "github.com/noah-isme/campus-clearance-api/internal/models"

// CreateCertificateRequest queues a certificate render for a completed
// clearance request.
type CreateCertificateRequest struct {
	RequestID string                   `json:"request_id" validate:"required"`
	Format    models.CertificateFormat `json:"format" validate:"required"`
}

// CertificateJobResponse reports the queued job state.
type CertificateJobResponse struct {
	ID     string                   `json:"id"`
	Status models.CertificateStatus `json:"status"`
}

// CertificateStatusResponse exposes job progress and the signed result URL.
type CertificateStatusResponse struct {
	ID        string                   `json:"id"`
	Status    models.CertificateStatus `json:"status"`
	ResultURL *string                  `json:"result_url,omitempty"`
	Error     *string                  `json:"error,omitempty"`
}
