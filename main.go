package main

import (
	"crypto/rand"
	"math/big"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/pccr10001/quectrack/internal/api"
	"github.com/pccr10001/quectrack/internal/auth"
	"github.com/pccr10001/quectrack/internal/config"
	"github.com/pccr10001/quectrack/internal/model"
	"github.com/pccr10001/quectrack/internal/worker"
	"github.com/pccr10001/quectrack/pkg/logger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Config
	config.LoadConfig()

	// 2. Init Logger
	logger.InitLogger(config.AppConfig.Log.Level)
	logger.Log.Info("Starting Quectrack...")

	secret := config.AppConfig.Auth.JWTSecret
	if secret == "" {
		logger.Log.Fatal("auth.jwt_secret must be set")
	}
	auth.SetSecret(secret)

	// 3. Init Database
	db := initDB()

	// 4. Init Router
	if config.AppConfig.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// 5. Start Worker Manager
	wm := worker.NewManager(db)
	wm.Start()
	defer wm.Stop()

	// 6. Setup Routes
	dh := api.NewDeviceHandler(db, wm)
	uh := api.NewUserHandler(db)

	apiGroup := r.Group("/api/v1")
	{
		apiGroup.POST("/login", uh.Login)

		// Authenticated Routes
		authGroup := apiGroup.Group("/")
		authGroup.Use(api.AuthMiddleware(db))
		{
			authGroup.POST("/change_password", uh.ChangePassword)

			authGroup.GET("/devices", dh.ListDevices)
			authGroup.GET("/devices/:imei", dh.GetDevice)
			authGroup.PUT("/devices/:imei", dh.UpdateDevice)
			authGroup.GET("/devices/:imei/fixes", dh.ListFixes)
			authGroup.GET("/devices/:imei/fixes/latest", dh.LatestFix)
			authGroup.POST("/devices/:imei/fixes/acquire", dh.AcquireFix)
			authGroup.POST("/devices/:imei/gnss", dh.SetGNSS)
			authGroup.POST("/devices/:imei/sync_time", dh.SyncTime)
			authGroup.POST("/devices/:imei/at", dh.ExecuteAT)

			// Admin Only
			adminGroup := authGroup.Group("/")
			adminGroup.Use(api.AdminOnly())
			{
				adminGroup.GET("/users", uh.ListUsers)
				adminGroup.POST("/users", uh.CreateUser)
				adminGroup.DELETE("/users/:id", uh.DeleteUser)
			}
		}
	}

	port := config.AppConfig.Server.Port
	logger.Log.Infof("Server listening on %s", port)
	if err := r.Run(port); err != nil {
		logger.Log.Fatalf("Server failed to start: %v", err)
	}
}

func initDB() *gorm.DB {
	var db *gorm.DB
	var err error

	driver := config.AppConfig.Database.Driver
	dsn := config.AppConfig.Database.DSN

	switch driver {
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	default:
		// Default to SQLite (pure Go)
		if dsn == "" {
			dsn = "quectrack.db"
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}

	if err != nil {
		logger.Log.Fatalf("Failed to connect database (%s): %v", driver, err)
	}

	// Auto Migrate
	db.AutoMigrate(&model.User{}, &model.Device{}, &model.Fix{})

	// Init Admin
	var count int64
	db.Model(&model.User{}).Count(&count)
	if count == 0 {
		randPw := config.AppConfig.Auth.DefaultAdminPassword
		if randPw == "" {
			// Generate random password
			const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
			ret := make([]byte, 12)
			for i := 0; i < 12; i++ {
				num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
				if err != nil {
					logger.Log.Fatalf("Failed to generate random password: %v", err)
				}
				ret[i] = chars[num.Int64()]
			}
			randPw = string(ret)
		}

		// Hash it using bcrypt
		bytes, err := bcrypt.GenerateFromPassword([]byte(randPw), 14)
		if err != nil {
			logger.Log.Fatalf("Failed to hash password: %v", err)
		}
		hash := string(bytes)

		admin := model.User{
			Username:       "admin",
			PasswordHash:   hash,
			Role:           "admin",
			AllowedDevices: "*",
		}
		db.Create(&admin)
		logger.Log.Warnf("INITIAL ADMIN CREATED. Username: admin, Password: %s", randPw)
	}

	return db
}
