// AngelaMos | 2026
// dto.go

package catalogue

import (
	"time"
)

type DocumentRequest struct {
	Title       string  `json:"title"                 validate:"required,max=200"`
	Author      string  `json:"author,omitempty"      validate:"omitempty,max=150"`
	Summary     string  `json:"summary,omitempty"`
	IsPhysical  bool    `json:"is_physical"`
	IsDigital   bool    `json:"is_digital"`
	FilePath    string  `json:"file_path,omitempty"   validate:"omitempty,max=300"`
	Status      *string `json:"status,omitempty"      validate:"omitempty,oneof=available borrowed"`
	RemoveCover bool    `json:"remove_cover,omitempty"`
}

type DocumentResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Author     *string   `json:"author,omitempty"`
	Summary    *string   `json:"summary,omitempty"`
	Status     string    `json:"status"`
	IsPhysical bool      `json:"is_physical"`
	IsDigital  bool      `json:"is_digital"`
	Formats    []string  `json:"formats"`
	HasCover   bool      `json:"has_cover"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ListDocumentsParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Query    string `json:"q"`
}

func (p *ListDocumentsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListDocumentsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToDocumentResponse(d *Document) DocumentResponse {
	return DocumentResponse{
		ID:         d.ID,
		Title:      d.Title,
		Author:     d.Author,
		Summary:    d.Summary,
		Status:     d.Status,
		IsPhysical: d.IsPhysical,
		IsDigital:  d.IsDigital,
		Formats:    d.Formats(),
		HasCover:   d.CoverImage != nil,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func ToDocumentResponseList(docs []Document) []DocumentResponse {
	responses := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		responses = append(responses, ToDocumentResponse(&d))
	}
	return responses
}
