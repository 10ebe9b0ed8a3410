package media

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type ListFilter struct {
	Folder string
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, m *Media) error
	GetByID(ctx context.Context, id string) (*Media, error)
	List(ctx context.Context, f ListFilter) ([]*Media, int64, error)
	UpdateAlt(ctx context.Context, id string, alt AltText) error
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) ([]*Media, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, m *Media) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *repository) GetByID(ctx context.Context, id string) (*Media, error) {
	var m Media
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]*Media, int64, error) {
	q := r.db.WithContext(ctx).Model(&Media{})
	if f.Folder != "" {
		q = q.Where("folder = ?", f.Folder)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*Media
	err := q.Order("created_at DESC").Order("id").Limit(f.Limit).Offset(f.Offset).Find(&items).Error
	return items, total, err
}

// UpdateAlt writes the four alt columns and nothing else; nil clears a locale.
func (r *repository) UpdateAlt(ctx context.Context, id string, alt AltText) error {
	res := r.db.WithContext(ctx).Model(&Media{}).Where("id = ?", id).Updates(map[string]any{
		"alt_en": alt.EN,
		"alt_ru": alt.RU,
		"alt_kk": alt.KK,
		"alt_zh": alt.ZH,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Media{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}

func (r *repository) All(ctx context.Context) ([]*Media, error) {
	var items []*Media
	err := r.db.WithContext(ctx).Order("created_at").Find(&items).Error
	return items, err
}
