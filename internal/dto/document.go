package dto

import "github.com/docuflow/intake-api/internal/models"

// UploadDocumentRequest contains metadata submitted alongside a file upload.
type UploadDocumentRequest struct {
	ClientID         string  `form:"clientId" json:"clientId" binding:"required"`
	Category         string  `form:"category" json:"category" binding:"required"`
	UploadedBy       string  `form:"uploadedBy" json:"uploadedBy" binding:"required"`
	IsSensitive      bool    `form:"isSensitive" json:"isSensitive"`
	ParentDocumentID *string `form:"parentDocumentId" json:"parentDocumentId"`
}

// ReviewDocumentRequest records a reviewer sign-off.
type ReviewDocumentRequest struct {
	ReviewerID string `json:"reviewerId" binding:"required"`
}

// DocumentDownloadResponse enriches metadata with a signed download URL.
type DocumentDownloadResponse struct {
	DocumentID  string `json:"documentId"`
	DownloadURL string `json:"downloadUrl"`
	ExpiresAt   string `json:"expiresAt"`
}

// DocumentResponse is the public view of a document record.
type DocumentResponse struct {
	models.Document
}
