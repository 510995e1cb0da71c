package dto

// AcknowledgeAlertRequest records who acknowledged an alert.
type AcknowledgeAlertRequest struct {
	AcknowledgedBy string `json:"acknowledgedBy" binding:"required"`
}

// ResolveAlertRequest closes an alert. A resolution note is mandatory.
type ResolveAlertRequest struct {
	Note string `json:"note" binding:"required"`
}
