package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Modem    ModemConfig    `mapstructure:"modem"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SerialConfig struct {
	ScanInterval string   `mapstructure:"scan_interval"`
	ExcludePorts []string `mapstructure:"exclude_ports"`
	BaudRate     int      `mapstructure:"baud_rate"`
}

// ModemConfig carries the EC200U driver knobs. Zero values fall back to the
// driver defaults.
type ModemConfig struct {
	CommandTimeout string `mapstructure:"command_timeout"`
	PDPContextID   int    `mapstructure:"pdp_context_id"`
	SSLContextID   int    `mapstructure:"ssl_context_id"`
	SSLClientID    int    `mapstructure:"ssl_client_id"`
	SSLVersion     int    `mapstructure:"ssl_version"`
	NegotiateTime  int    `mapstructure:"negotiate_time"` // seconds
	GNSSMaxRetries int    `mapstructure:"gnss_max_retries"`
	GNSSRetryDelay string `mapstructure:"gnss_retry_delay"`
}

type TrackerConfig struct {
	FixInterval      string `mapstructure:"fix_interval"`
	TimeSyncInterval string `mapstructure:"time_sync_interval"`
	CoordFormat      int    `mapstructure:"coord_format"`
	UploadHost       string `mapstructure:"upload_host"`
	UploadPort       int    `mapstructure:"upload_port"`
	UploadPath       string `mapstructure:"upload_path"`
}

type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"`
	DefaultAdminPassword string `mapstructure:"default_admin_password"`
}

var AppConfig Config

func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults. Error: %v", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	if AppConfig.Serial.BaudRate <= 0 {
		AppConfig.Serial.BaudRate = 115200
	}
	if AppConfig.Tracker.FixInterval == "" {
		AppConfig.Tracker.FixInterval = "60s"
	}
	if AppConfig.Tracker.TimeSyncInterval == "" {
		AppConfig.Tracker.TimeSyncInterval = "24h"
	}
	if AppConfig.Tracker.UploadPort <= 0 {
		AppConfig.Tracker.UploadPort = 443
	}
	if AppConfig.Tracker.UploadPath == "" {
		AppConfig.Tracker.UploadPath = "/api/v1/fixes"
	}

	log.Println("Configuration loaded successfully")
}
