package repository

import (
	"github.com/pccr10001/quectrack/internal/model"
	"gorm.io/gorm"
)

type FixRepository struct {
	db *gorm.DB
}

func NewFixRepository(db *gorm.DB) *FixRepository {
	return &FixRepository{db: db}
}

func (r *FixRepository) Create(fix *model.Fix) error {
	return r.db.Create(fix).Error
}

func (r *FixRepository) Latest(imei string) (*model.Fix, error) {
	var fix model.Fix
	err := r.db.Where("imei = ?", imei).Order("created_at desc").First(&fix).Error
	return &fix, err
}

func (r *FixRepository) FindByIMEI(imei string, limit int) ([]model.Fix, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var fixes []model.Fix
	err := r.db.Where("imei = ?", imei).Order("created_at desc").Limit(limit).Find(&fixes).Error
	return fixes, err
}

func (r *FixRepository) MarkUploaded(id uint) error {
	return r.db.Model(&model.Fix{}).Where("id = ?", id).Update("uploaded", true).Error
}

func (r *FixRepository) PendingUpload(imei string, limit int) ([]model.Fix, error) {
	if limit <= 0 {
		limit = 10
	}
	var fixes []model.Fix
	err := r.db.Where("imei = ? AND uploaded = ?", imei, false).
		Order("created_at asc").Limit(limit).Find(&fixes).Error
	return fixes, err
}
