package media

import "time"

// UpdateAltRequest replaces every locale's alt text; omitted or empty values clear it.
type UpdateAltRequest struct {
	EN *string `json:"en" validate:"omitempty,max=500"`
	RU *string `json:"ru" validate:"omitempty,max=500"`
	KK *string `json:"kk" validate:"omitempty,max=500"`
	ZH *string `json:"zh" validate:"omitempty,max=500"`
}

func (r UpdateAltRequest) AltText() AltText {
	return AltText{EN: r.EN, RU: r.RU, KK: r.KK, ZH: r.ZH}
}

// MediaResponse is the client view of a record. The disk path is not part of it.
type MediaResponse struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	Folder       string    `json:"folder"`
	Width        *int      `json:"width,omitempty"`
	Height       *int      `json:"height,omitempty"`
	Alt          AltText   `json:"alt"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ListMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

func ToResponse(m *Media) MediaResponse {
	return MediaResponse{
		ID:           m.ID,
		URL:          m.URL,
		Filename:     m.Filename,
		OriginalName: m.OriginalName,
		MimeType:     m.MimeType,
		Size:         m.Size,
		Folder:       m.Folder,
		Width:        m.Width,
		Height:       m.Height,
		Alt:          m.Alt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
