package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pccr10001/quectrack/internal/config"
	"github.com/pccr10001/quectrack/internal/ec200u"
	"github.com/pccr10001/quectrack/internal/model"
	"github.com/pccr10001/quectrack/internal/repository"
	"github.com/pccr10001/quectrack/pkg/logger"
	"gorm.io/gorm"
)

// TrackerWorker drives one EC200U on one serial port: bring-up, periodic
// position fixes, fix upload over the module's own TLS link, and RTC sync.
type TrackerWorker struct {
	PortName string

	tr  *ec200u.SerialTransport
	dev *ec200u.Device
	mu  sync.Mutex // serializes modem access between the fix loop and API calls

	stop     chan struct{}
	stopOnce sync.Once

	deviceRepo *repository.DeviceRepository
	fixRepo    *repository.FixRepository
	manager    *Manager
	device     *model.Device
	sslReady   bool
}

func NewTrackerWorker(portName string, db *gorm.DB, manager *Manager) *TrackerWorker {
	return &TrackerWorker{
		PortName:   portName,
		stop:       make(chan struct{}),
		deviceRepo: repository.NewDeviceRepository(db),
		fixRepo:    repository.NewFixRepository(db),
		manager:    manager,
	}
}

func (w *TrackerWorker) Start() {
	go w.run()
}

func (w *TrackerWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}

func (w *TrackerWorker) run() {
	logger.Log.Infof("Worker for %s running", w.PortName)

	tr, err := ec200u.OpenSerial(w.PortName, config.AppConfig.Serial.BaudRate)
	if err != nil {
		logger.Log.Errorf("Failed to open port %s: %v", w.PortName, err)
		return
	}
	w.tr = tr
	defer tr.Close()

	w.dev = ec200u.New(tr, driverConfig())

	if !w.bringUp() {
		return
	}

	fixInterval := parseDuration(config.AppConfig.Tracker.FixInterval, 60*time.Second)
	syncInterval := parseDuration(config.AppConfig.Tracker.TimeSyncInterval, 24*time.Hour)

	fixTicker := time.NewTicker(fixInterval)
	defer fixTicker.Stop()
	syncTicker := time.NewTicker(syncInterval)
	defer syncTicker.Stop()

	// First fix right away instead of waiting a full interval
	w.acquireAndStore()

	for {
		select {
		case <-w.stop:
			logger.Log.Infof("Worker for %s stopped", w.PortName)
			return
		case <-fixTicker.C:
			w.acquireAndStore()
		case <-syncTicker.C:
			if err := w.SyncTime(); err != nil {
				logger.Log.Warnf("[%s] Clock sync failed: %v", w.PortName, err)
			}
		}
	}
}

// bringUp probes the modem, claims its IMEI and registers it in the DB.
// Returns false when the port is not a responsive EC200U.
func (w *TrackerWorker) bringUp() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.dev.Begin(); err != nil {
		logger.Log.Warnf("[%s] Probe failed: %v. Skipping port.", w.PortName, err)
		w.Stop()
		return false
	}

	imei, err := w.dev.IMEI()
	if err != nil {
		logger.Log.Errorf("[%s] Failed to read IMEI: %v", w.PortName, err)
		w.Stop()
		return false
	}

	// Deduplication check, USB modems expose several ports for one device
	if !w.manager.RegisterIMEI(w.PortName, imei) {
		logger.Log.Warnf("[%s] IMEI %s is already managed by another worker. Stopping duplicate.", w.PortName, imei)
		w.Stop()
		return false
	}
	logger.Log.Infof("[%s] Found IMEI: %s", w.PortName, imei)

	signal := 0
	if rssi, _, err := w.dev.SignalQuality(); err == nil {
		signal = signalPercent(rssi)
	}

	regStatus := "Not Registered"
	if stat, err := w.dev.RegistrationStatus(); err == nil {
		regStatus = registrationText(stat)
	}

	gnssEnabled := false
	if err := w.dev.GNSSBegin(); err != nil {
		logger.Log.Warnf("[%s] GNSS config failed: %v", w.PortName, err)
	} else if err := w.dev.GNSSOn(1, 30); err != nil {
		// 504 means the session is already running, that is fine
		logger.Log.Warnf("[%s] GNSS enable: %v", w.PortName, err)
		gnssEnabled = w.dev.Fixed()
	} else {
		gnssEnabled = true
	}

	device := &model.Device{
		IMEI:           imei,
		PortName:       w.PortName,
		Status:         "online",
		SignalStrength: signal,
		Registration:   regStatus,
		GNSSEnabled:    gnssEnabled,
		LastSeen:       time.Now(),
	}
	if err := w.deviceRepo.Upsert(device); err != nil {
		logger.Log.Errorf("Failed to save device %s: %v", imei, err)
	} else {
		w.device = device
		logger.Log.Infof("Device registered: %s (%s) Sig: %d%% Reg: %s", imei, w.PortName, signal, regStatus)
	}

	if err := w.dev.SyncClock(); err != nil {
		logger.Log.Warnf("[%s] Initial clock sync failed: %v", w.PortName, err)
	} else {
		w.deviceRepo.UpdateSyncedAt(imei)
	}

	return true
}

func (w *TrackerWorker) acquireAndStore() {
	fix, err := w.AcquireFix()
	if err != nil {
		logger.Log.Warnf("[%s] Fix acquisition failed: %v", w.PortName, err)
		return
	}
	logger.Log.Infof("[%s] Fix: %.6f,%.6f alt %.1fm sats %d", w.PortName, fix.Latitude, fix.Longitude, fix.Altitude, fix.Satellites)

	if config.AppConfig.Tracker.UploadHost != "" {
		if err := w.uploadPending(); err != nil {
			logger.Log.Warnf("[%s] Fix upload failed: %v", w.PortName, err)
		}
	}
}

// AcquireFix queries the receiver once (with the configured retry budget) and
// persists the result.
func (w *TrackerWorker) AcquireFix() (*model.Fix, error) {
	if w.device == nil {
		return nil, errors.New("device not registered")
	}

	w.mu.Lock()
	pos, err := w.dev.AcquirePosition(
		ec200u.CoordFormat(config.AppConfig.Tracker.CoordFormat),
		gnssRetries(),
		parseDuration(config.AppConfig.Modem.GNSSRetryDelay, 2*time.Second),
	)
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	fix := &model.Fix{
		IMEI:       w.device.IMEI,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		Altitude:   pos.Altitude,
		HDOP:       pos.HDOP,
		FixMode:    pos.FixMode,
		Course:     pos.Course,
		SpeedKmh:   pos.SpeedKmh,
		Satellites: pos.Satellites,
		UTCTime:    pos.UTCTime,
		UTCDate:    pos.Date,
	}
	if err := w.fixRepo.Create(fix); err != nil {
		return nil, err
	}

	w.device.LastSeen = time.Now()
	w.deviceRepo.Upsert(w.device)
	return fix, nil
}

type fixPayload struct {
	IMEI       string  `json:"imei"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Altitude   float64 `json:"altitude"`
	SpeedKmh   float64 `json:"speed_kmh"`
	Course     float64 `json:"course"`
	Satellites int     `json:"satellites"`
	UTCTime    string  `json:"utc_time"`
	UTCDate    string  `json:"utc_date"`
}

// uploadPending pushes unsent fixes to the configured collector over the
// modem's own TLS stack. One TLS session per batch, closed afterwards so the
// command channel is free again.
func (w *TrackerWorker) uploadPending() error {
	pending, err := w.fixRepo.PendingUpload(w.device.IMEI, 10)
	if err != nil || len(pending) == 0 {
		return err
	}

	cfg := config.AppConfig
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.sslReady {
		if err := w.dev.SSLBegin(cfg.Modem.PDPContextID, cfg.Modem.SSLContextID, cfg.Modem.SSLVersion); err != nil {
			return fmt.Errorf("ssl setup: %w", err)
		}
		w.sslReady = true
	}

	if _, err := w.dev.Connect(cfg.Tracker.UploadHost, cfg.Tracker.UploadPort,
		cfg.Modem.PDPContextID, cfg.Modem.SSLContextID, cfg.Modem.SSLClientID); err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Tracker.UploadHost, err)
	}
	defer w.dev.Disconnect(cfg.Modem.SSLClientID)

	for _, fix := range pending {
		body, err := json.Marshal(fixPayload{
			IMEI:       fix.IMEI,
			Latitude:   fix.Latitude,
			Longitude:  fix.Longitude,
			Altitude:   fix.Altitude,
			SpeedKmh:   fix.SpeedKmh,
			Course:     fix.Course,
			Satellites: fix.Satellites,
			UTCTime:    fix.UTCTime,
			UTCDate:    fix.UTCDate,
		})
		if err != nil {
			return err
		}

		resp, err := w.dev.Post(cfg.Tracker.UploadHost, cfg.Tracker.UploadPath, "application/json", string(body))
		if err != nil {
			return err
		}
		if !uploadAccepted(resp) {
			return fmt.Errorf("collector rejected fix %d: %s", fix.ID, statusLine(resp))
		}
		w.fixRepo.MarkUploaded(fix.ID)
	}
	return nil
}

// SyncTime pulls network time into the RTC.
func (w *TrackerWorker) SyncTime() error {
	w.mu.Lock()
	err := w.dev.SyncClock()
	w.mu.Unlock()
	if err != nil {
		return err
	}
	if w.device != nil {
		w.deviceRepo.UpdateSyncedAt(w.device.IMEI)
	}
	return nil
}

// SetGNSS turns the positioning engine on or off.
func (w *TrackerWorker) SetGNSS(enabled bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if enabled {
		err = w.dev.GNSSOn(1, 30)
	} else {
		err = w.dev.GNSSOff()
	}
	if err != nil {
		return err
	}
	if w.device != nil {
		w.device.GNSSEnabled = enabled
		w.deviceRepo.Upsert(w.device)
	}
	return nil
}

// ExecuteAT runs a raw command on behalf of the API. Refused while a
// transparent session owns the line.
func (w *TrackerWorker) ExecuteAT(cmd string, timeout time.Duration) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if transparent, _ := w.dev.Transparent(); transparent {
		return "", errors.New("modem busy in transparent mode")
	}

	res, raw := w.dev.Raw(cmd, timeout)
	if res.Outcome == ec200u.ResultTimeout {
		return raw, errors.New("timeout")
	}
	return raw, nil
}

func (w *TrackerWorker) Device() *model.Device {
	return w.device
}

func driverConfig() ec200u.Config {
	cfg := ec200u.Config{}
	if d := parseDuration(config.AppConfig.Modem.CommandTimeout, 0); d > 0 {
		cfg.CommandTimeout = d
	}
	if s := config.AppConfig.Modem.NegotiateTime; s > 0 {
		cfg.NegotiateTime = time.Duration(s) * time.Second
	}
	return cfg
}

func gnssRetries() int {
	if n := config.AppConfig.Modem.GNSSMaxRetries; n > 0 {
		return n
	}
	return 10
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}

// signalPercent maps a CSQ rssi (0-31, 99 unknown) onto 0-100%.
func signalPercent(rssi int) int {
	if rssi < 0 || rssi > 31 {
		return 0
	}
	return int(float64(rssi) / 31.0 * 100.0)
}

func registrationText(stat int) string {
	switch stat {
	case 1:
		return "Home Network"
	case 2:
		return "Searching..."
	case 3:
		return "Denied"
	case 4:
		return "Unknown"
	case 5:
		return "Roaming"
	default:
		return "Not Registered"
	}
}

func uploadAccepted(resp string) bool {
	line := statusLine(resp)
	return len(line) >= 12 && line[9] == '2'
}

func statusLine(resp string) string {
	for i := 0; i < len(resp); i++ {
		if resp[i] == '\r' || resp[i] == '\n' {
			return resp[:i]
		}
	}
	return resp
}
