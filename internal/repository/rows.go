package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bynd/onepager/internal/model"
	"github.com/bynd/onepager/internal/table"
)

const (
	colID            = "id"
	colRequestID     = "request_id"
	colCompanyName   = "company_name"
	colStatus        = "status"
	colCreatedAt     = "created_at"
	colUpdatedAt     = "updated_at"
	colExcelBlobInfo = "excel_blob_info"

	keyExcelBlobURL  = "excel_blob_url"
	keyExcelBlobPath = "excel_blob_path"
)

// packExcel folds the excel pair into the excel_blob_info column value.
// If either side is non-empty both keys are written, a missing side as
// JSON null. Otherwise the column is NULL.
func packExcel(url, path *string) any {
	if isBlank(url) && isBlank(path) {
		return nil
	}
	return map[string]any{
		keyExcelBlobURL:  optString(url),
		keyExcelBlobPath: optString(path),
	}
}

// unpackExcel is the inverse of packExcel. Anything but a non-empty JSON
// object yields two nils.
func unpackExcel(v any) (url, path *string) {
	info, err := asMap(v)
	if err != nil || len(info) == 0 {
		return nil, nil
	}
	url, _ = asOptString(info[keyExcelBlobURL])
	path, _ = asOptString(info[keyExcelBlobPath])
	return url, path
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func optInt64(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

// recordToRow produces the full insert row. id is left to the store.
func recordToRow(rec *model.OnePagerRecord, now time.Time) table.Row {
	return table.Row{
		colRequestID:         rec.RequestID,
		"session_id":         optString(rec.SessionID),
		colCompanyName:       rec.CompanyName,
		"website_url":        rec.WebsiteURL,
		colStatus:            string(rec.Status),
		"generated_at":       rec.GeneratedAt,
		"duration_ms":        rec.DurationMS,
		"folder_title":       rec.FolderTitle,
		"base_path":          rec.BasePath,
		"container":          rec.Container,
		"pptx_filename":      rec.PptxFilename,
		"pptx_blob_url":      optString(rec.PptxBlobURL),
		"pptx_blob_path":     optString(rec.PptxBlobPath),
		"metadata_blob_url":  optString(rec.MetadataBlobURL),
		"excel_provided":     rec.ExcelProvided,
		"excel_filename":     optString(rec.ExcelFilename),
		"excel_size":         optInt64(rec.ExcelSize),
		colExcelBlobInfo:     packExcel(rec.ExcelBlobURL, rec.ExcelBlobPath),
		"sections_status":    rec.SectionsStatus,
		"sections_response":  rec.SectionsResponse,
		"section_sources":    rec.SectionSources,
		"product_images":     rec.ProductImages,
		"products":           rec.Products,
		"company_logo":       optString(rec.CompanyLogo),
		"azure_upload_ok":    rec.AzureUploadOK,
		"azure_upload_error": optString(rec.AzureUploadError),
		"warnings":           rec.Warnings,
		"error_type":         optString(rec.ErrorType),
		"error_message":      optString(rec.ErrorMessage),
		colCreatedAt:         now,
		colUpdatedAt:         now,
	}
}

// patchToRow lists only the fields the patch sets, plus updated_at and
// excel_blob_info. The excel column is always written, so a patch without
// either excel value clears it.
func patchToRow(p *model.Patch, now time.Time) table.Row {
	row := table.Row{
		colUpdatedAt:     now,
		colExcelBlobInfo: packExcel(p.ExcelBlobURL, p.ExcelBlobPath),
	}

	setString := func(col string, v *string) {
		if v != nil {
			row[col] = *v
		}
	}
	setBool := func(col string, v *bool) {
		if v != nil {
			row[col] = *v
		}
	}
	setInt := func(col string, v *int64) {
		if v != nil {
			row[col] = *v
		}
	}

	setString("session_id", p.SessionID)
	setString(colCompanyName, p.CompanyName)
	setString("website_url", p.WebsiteURL)
	if p.Status != nil {
		row[colStatus] = string(*p.Status)
	}
	setString("generated_at", p.GeneratedAt)
	setInt("duration_ms", p.DurationMS)
	setString("folder_title", p.FolderTitle)
	setString("base_path", p.BasePath)
	setString("container", p.Container)
	setString("pptx_filename", p.PptxFilename)
	setString("pptx_blob_url", p.PptxBlobURL)
	setString("pptx_blob_path", p.PptxBlobPath)
	setString("metadata_blob_url", p.MetadataBlobURL)
	setBool("excel_provided", p.ExcelProvided)
	setString("excel_filename", p.ExcelFilename)
	setInt("excel_size", p.ExcelSize)
	if p.SectionsStatus != nil {
		row["sections_status"] = p.SectionsStatus
	}
	if p.SectionsResponse != nil {
		row["sections_response"] = p.SectionsResponse
	}
	if p.SectionSources != nil {
		row["section_sources"] = p.SectionSources
	}
	if p.ProductImages != nil {
		row["product_images"] = p.ProductImages
	}
	if p.Products != nil {
		row["products"] = p.Products
	}
	setString("company_logo", p.CompanyLogo)
	setBool("azure_upload_ok", p.AzureUploadOK)
	setString("azure_upload_error", p.AzureUploadError)
	if p.Warnings != nil {
		row["warnings"] = p.Warnings
	}
	setString("error_type", p.ErrorType)
	setString("error_message", p.ErrorMessage)

	return row
}

// rowReader collects the first conversion error so rowToRecord reads
// top to bottom.
type rowReader struct {
	row table.Row
	err error
}

func (r *rowReader) fail(col string, err error) {
	if r.err == nil && err != nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
}

func (r *rowReader) text(col string) string {
	s, err := asOptString(r.row[col])
	r.fail(col, err)
	if s == nil {
		return ""
	}
	return *s
}

func (r *rowReader) optText(col string) *string {
	s, err := asOptString(r.row[col])
	r.fail(col, err)
	return s
}

func (r *rowReader) integer(col string) int64 {
	n, err := asOptInt64(r.row[col])
	r.fail(col, err)
	if n == nil {
		return 0
	}
	return *n
}

func (r *rowReader) optInteger(col string) *int64 {
	n, err := asOptInt64(r.row[col])
	r.fail(col, err)
	return n
}

func (r *rowReader) flag(col string) bool {
	switch v := r.row[col].(type) {
	case nil:
		return false
	case bool:
		return v
	default:
		r.fail(col, fmt.Errorf("unexpected type %T", v))
		return false
	}
}

func (r *rowReader) timestamp(col string) *time.Time {
	t, err := asOptTime(r.row[col])
	r.fail(col, err)
	return t
}

func (r *rowReader) object(col string) map[string]any {
	m, err := asMap(r.row[col])
	r.fail(col, err)
	return m
}

func (r *rowReader) textList(col string) []string {
	s, err := asStrings(r.row[col])
	r.fail(col, err)
	return s
}

func (r *rowReader) objectList(col string) []map[string]any {
	s, err := asObjects(r.row[col])
	r.fail(col, err)
	return s
}

// rowToRecord maps a stored row back to the record shape, unpacking the
// excel pair.
func rowToRecord(row table.Row) (*model.OnePagerRecord, error) {
	r := &rowReader{row: row}

	rec := &model.OnePagerRecord{
		ID:               r.integer(colID),
		RequestID:        r.text(colRequestID),
		SessionID:        r.optText("session_id"),
		CompanyName:      r.text(colCompanyName),
		WebsiteURL:       r.text("website_url"),
		Status:           model.Status(r.text(colStatus)),
		GeneratedAt:      r.text("generated_at"),
		DurationMS:       r.integer("duration_ms"),
		FolderTitle:      r.text("folder_title"),
		BasePath:         r.text("base_path"),
		Container:        r.text("container"),
		PptxFilename:     r.text("pptx_filename"),
		PptxBlobURL:      r.optText("pptx_blob_url"),
		PptxBlobPath:     r.optText("pptx_blob_path"),
		MetadataBlobURL:  r.optText("metadata_blob_url"),
		ExcelProvided:    r.flag("excel_provided"),
		ExcelFilename:    r.optText("excel_filename"),
		ExcelSize:        r.optInteger("excel_size"),
		SectionsStatus:   r.object("sections_status"),
		SectionsResponse: r.object("sections_response"),
		SectionSources:   r.object("section_sources"),
		ProductImages:    r.textList("product_images"),
		Products:         r.objectList("products"),
		CompanyLogo:      r.optText("company_logo"),
		AzureUploadOK:    r.flag("azure_upload_ok"),
		AzureUploadError: r.optText("azure_upload_error"),
		Warnings:         r.textList("warnings"),
		ErrorType:        r.optText("error_type"),
		ErrorMessage:     r.optText("error_message"),
		CreatedAt:        r.timestamp(colCreatedAt),
		UpdatedAt:        r.timestamp(colUpdatedAt),
	}
	rec.ExcelBlobURL, rec.ExcelBlobPath = unpackExcel(row[colExcelBlobInfo])

	if r.err != nil {
		return nil, r.err
	}
	return rec, nil
}

func asOptString(v any) (*string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &x, nil
	}
	return nil, fmt.Errorf("unexpected type %T", v)
}

func asOptInt64(v any) (*int64, error) {
	var n int64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64:
		n = x
	case int32:
		n = int64(x)
	case int:
		n = int64(x)
	case float64:
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return nil, err
		}
		n = i
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
	return &n, nil
}

func asOptTime(v any) (*time.Time, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		t := x.UTC()
		return &t, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return nil, err
		}
		t = t.UTC()
		return &t, nil
	}
	return nil, fmt.Errorf("unexpected type %T", v)
}

// asMap accepts a decoded JSON object or its text form.
func asMap(v any) (map[string]any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return x, nil
	case string:
		return decodeJSON[map[string]any]([]byte(x))
	case []byte:
		return decodeJSON[map[string]any](x)
	}
	return nil, fmt.Errorf("unexpected type %T", v)
}

func asStrings(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return x, nil
	case []any:
		out := make([]string, 0, len(x))
		for i, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: unexpected type %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return decodeJSON[[]string]([]byte(x))
	}
	return nil, fmt.Errorf("unexpected type %T", v)
}

func asObjects(v any) ([]map[string]any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return x, nil
	case []any:
		out := make([]map[string]any, 0, len(x))
		for i, item := range x {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d: unexpected type %T", i, item)
			}
			out = append(out, m)
		}
		return out, nil
	case string:
		return decodeJSON[[]map[string]any]([]byte(x))
	}
	return nil, fmt.Errorf("unexpected type %T", v)
}

func decodeJSON[T any](b []byte) (T, error) {
	var out T
	err := json.Unmarshal(b, &out)
	return out, err
}
