package repository

import (
	"github.com/pccr10001/quectrack/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) Upsert(device *model.Device) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "imei"}},
		DoUpdates: clause.AssignmentColumns([]string{"port_name", "status", "signal_strength", "registration", "gnss_enabled", "last_seen"}),
	}).Create(device).Error
}

func (r *DeviceRepository) FindByIMEI(imei string) (*model.Device, error) {
	var device model.Device
	err := r.db.First(&device, "imei = ?", imei).Error
	return &device, err
}

func (r *DeviceRepository) FindAll() ([]model.Device, error) {
	var devices []model.Device
	err := r.db.Order("last_seen desc").Find(&devices).Error
	return devices, err
}

func (r *DeviceRepository) UpdateSyncedAt(imei string) error {
	return r.db.Model(&model.Device{}).Where("imei = ?", imei).
		Update("last_synced_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

func (r *DeviceRepository) MarkAllOffline() {
	r.db.Model(&model.Device{}).Update("status", "offline")
}
