package model

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Username       string         `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash   string         `gorm:"not null" json:"-"`
	Role           string         `gorm:"default:'user'" json:"role"` // admin, user
	AllowedDevices string         `json:"allowed_devices"`            // Comma separated IMEIs, or "*"
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

type Device struct {
	IMEI           string    `gorm:"primaryKey;column:imei" json:"imei"`
	Name           string    `json:"name"` // User defined alias
	PortName       string    `json:"port_name"`
	Status         string    `json:"status"`          // online, offline
	SignalStrength int       `json:"signal_strength"` // CSQ rssi mapped to 0-100%
	Registration   string    `json:"registration"`    // Home, Roaming, Denied, etc.
	GNSSEnabled    bool      `json:"gnss_enabled"`
	LastSyncedAt   time.Time `json:"last_synced_at"` // Last RTC sync against network time
	LastSeen       time.Time `json:"last_seen"`
}

type Fix struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	IMEI       string    `gorm:"index;not null;column:imei" json:"imei"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"`
	HDOP       float64   `json:"hdop"`
	FixMode    int       `json:"fix_mode"` // 2=2D, 3=3D
	Course     float64   `json:"course"`
	SpeedKmh   float64   `json:"speed_kmh"`
	Satellites int       `json:"satellites"`
	UTCTime    string    `json:"utc_time"` // hhmmss.sss from the receiver
	UTCDate    string    `json:"utc_date"` // ddmmyy from the receiver
	Uploaded   bool      `gorm:"default:false" json:"uploaded"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
