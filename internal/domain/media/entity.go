package media

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Supported alt-text locales, in display order.
const (
	LocaleEN = "en"
	LocaleRU = "ru"
	LocaleKK = "kk"
	LocaleZH = "zh"
)

var Locales = []string{LocaleEN, LocaleRU, LocaleKK, LocaleZH}

// AltText holds one accessibility string per storefront locale. Each value is
// independently nullable.
type AltText struct {
	EN *string `gorm:"column:en;size:512" json:"en"`
	RU *string `gorm:"column:ru;size:512" json:"ru"`
	KK *string `gorm:"column:kk;size:512" json:"kk"`
	ZH *string `gorm:"column:zh;size:512" json:"zh"`
}

// Get returns the alt text for locale, or nil.
func (a AltText) Get(locale string) *string {
	switch locale {
	case LocaleEN:
		return a.EN
	case LocaleRU:
		return a.RU
	case LocaleKK:
		return a.KK
	case LocaleZH:
		return a.ZH
	}
	return nil
}

// Media is one stored asset. Only the alt text is mutable after creation;
// new content means a new upload and a new record.
type Media struct {
	ID           string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Filename     string    `gorm:"column:filename;size:128;uniqueIndex;not null" json:"filename"`
	OriginalName string    `gorm:"column:original_name;size:255" json:"original_name"`
	MimeType     string    `gorm:"column:mime_type;size:64;not null" json:"mime_type"`
	Size         int64     `gorm:"column:size;not null" json:"size"`
	Folder       string    `gorm:"column:folder;size:64;index;not null" json:"folder"`
	URL          string    `gorm:"column:url;size:512;not null" json:"url"`
	Path         string    `gorm:"column:path;size:1024;not null" json:"-"` // absolute disk path, server-side only
	Width        *int      `gorm:"column:width" json:"width,omitempty"`
	Height       *int      `gorm:"column:height" json:"height,omitempty"`
	Alt          AltText   `gorm:"embedded;embeddedPrefix:alt_" json:"alt"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Media) TableName() string { return "media" }

// BeforeCreate lets the store assign the opaque id.
func (m *Media) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
