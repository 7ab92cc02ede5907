// Package model holds the domain types shared by the repository,
// service and handler layers.
package model

import "time"

// Status is the lifecycle state of a one-pager generation attempt.
type Status string

const (
	StatusInProgress     Status = "in-progress"
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial-success"
	StatusError          Status = "error"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusSuccess, StatusPartialSuccess, StatusError:
		return true
	}
	return false
}

// IsTerminal reports whether a record in this status is final.
// Terminal records are only modified by explicit, unguarded updates.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusPartialSuccess || s == StatusError
}

// OnePagerRecord is one persisted generation attempt and its outcome.
//
// ID, CreatedAt and UpdatedAt are owned by the store; callers own the rest.
// ExcelBlobURL and ExcelBlobPath are persisted together in a single JSON
// column (excel_blob_info), never as two columns.
type OnePagerRecord struct {
	ID        int64   `json:"id,omitempty" yaml:"id,omitempty"`
	RequestID string  `json:"request_id" yaml:"request_id" validate:"required,max=255"`
	SessionID *string `json:"session_id,omitempty" yaml:"session_id,omitempty"`

	CompanyName string `json:"company_name" yaml:"company_name" validate:"required"`
	WebsiteURL  string `json:"website_url" yaml:"website_url"`

	Status      Status `json:"status" yaml:"status" validate:"required,oneof=in-progress success partial-success error"`
	GeneratedAt string `json:"generated_at" yaml:"generated_at"`
	DurationMS  int64  `json:"duration_ms" yaml:"duration_ms" validate:"min=0"`

	FolderTitle     string  `json:"folder_title" yaml:"folder_title"`
	BasePath        string  `json:"base_path" yaml:"base_path"`
	Container       string  `json:"container" yaml:"container"`
	PptxFilename    string  `json:"pptx_filename" yaml:"pptx_filename"`
	PptxBlobURL     *string `json:"pptx_blob_url,omitempty" yaml:"pptx_blob_url,omitempty"`
	PptxBlobPath    *string `json:"pptx_blob_path,omitempty" yaml:"pptx_blob_path,omitempty"`
	MetadataBlobURL *string `json:"metadata_blob_url,omitempty" yaml:"metadata_blob_url,omitempty"`

	ExcelProvided bool    `json:"excel_provided" yaml:"excel_provided"`
	ExcelFilename *string `json:"excel_filename,omitempty" yaml:"excel_filename,omitempty"`
	ExcelSize     *int64  `json:"excel_size,omitempty" yaml:"excel_size,omitempty" validate:"omitempty,min=0"`
	ExcelBlobURL  *string `json:"excel_blob_url" yaml:"excel_blob_url"`
	ExcelBlobPath *string `json:"excel_blob_path" yaml:"excel_blob_path"`

	SectionsStatus   map[string]any   `json:"sections_status,omitempty" yaml:"sections_status,omitempty"`
	SectionsResponse map[string]any   `json:"sections_response,omitempty" yaml:"sections_response,omitempty"`
	SectionSources   map[string]any   `json:"section_sources,omitempty" yaml:"section_sources,omitempty"`
	ProductImages    []string         `json:"product_images,omitempty" yaml:"product_images,omitempty"`
	Products         []map[string]any `json:"products,omitempty" yaml:"products,omitempty"`
	CompanyLogo      *string          `json:"company_logo,omitempty" yaml:"company_logo,omitempty"`

	AzureUploadOK    bool    `json:"azure_upload_ok" yaml:"azure_upload_ok"`
	AzureUploadError *string `json:"azure_upload_error,omitempty" yaml:"azure_upload_error,omitempty"`

	Warnings     []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	ErrorType    *string  `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	ErrorMessage *string  `json:"error_message,omitempty" yaml:"error_message,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Patch lists the fields of a record that may be changed after creation.
// A nil pointer, map or slice means "leave unchanged".
//
// The excel pair is the exception: every update rewrites excel_blob_info,
// so a patch that carries neither ExcelBlobURL nor ExcelBlobPath clears it.
type Patch struct {
	SessionID   *string `json:"session_id,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	WebsiteURL  *string `json:"website_url,omitempty"`

	Status      *Status `json:"status,omitempty" validate:"omitempty,oneof=in-progress success partial-success error"`
	GeneratedAt *string `json:"generated_at,omitempty"`
	DurationMS  *int64  `json:"duration_ms,omitempty" validate:"omitempty,min=0"`

	FolderTitle     *string `json:"folder_title,omitempty"`
	BasePath        *string `json:"base_path,omitempty"`
	Container       *string `json:"container,omitempty"`
	PptxFilename    *string `json:"pptx_filename,omitempty"`
	PptxBlobURL     *string `json:"pptx_blob_url,omitempty"`
	PptxBlobPath    *string `json:"pptx_blob_path,omitempty"`
	MetadataBlobURL *string `json:"metadata_blob_url,omitempty"`

	ExcelProvided *bool   `json:"excel_provided,omitempty"`
	ExcelFilename *string `json:"excel_filename,omitempty"`
	ExcelSize     *int64  `json:"excel_size,omitempty" validate:"omitempty,min=0"`
	ExcelBlobURL  *string `json:"excel_blob_url,omitempty"`
	ExcelBlobPath *string `json:"excel_blob_path,omitempty"`

	SectionsStatus   map[string]any   `json:"sections_status,omitempty"`
	SectionsResponse map[string]any   `json:"sections_response,omitempty"`
	SectionSources   map[string]any   `json:"section_sources,omitempty"`
	ProductImages    []string         `json:"product_images,omitempty"`
	Products         []map[string]any `json:"products,omitempty"`
	CompanyLogo      *string          `json:"company_logo,omitempty"`

	AzureUploadOK    *bool   `json:"azure_upload_ok,omitempty"`
	AzureUploadError *string `json:"azure_upload_error,omitempty"`

	Warnings     []string `json:"warnings,omitempty"`
	ErrorType    *string  `json:"error_type,omitempty"`
	ErrorMessage *string  `json:"error_message,omitempty"`
}

// Ptr returns a pointer to v. Handy for building records and patches.
func Ptr[T any](v T) *T {
	return &v
}
