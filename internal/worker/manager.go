package worker

import (
	"sync"
	"time"

	"github.com/pccr10001/quectrack/internal/config"
	"github.com/pccr10001/quectrack/pkg/logger"
	"go.bug.st/serial"
	"gorm.io/gorm"
)

type Manager struct {
	workers     map[string]*TrackerWorker
	activeIMEIs map[string]string // imei -> portName
	mu          sync.RWMutex
	stop        chan struct{}
	db          *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		workers:     make(map[string]*TrackerWorker),
		activeIMEIs: make(map[string]string),
		stop:        make(chan struct{}),
		db:          db,
	}
}

func (m *Manager) Start() {
	scanInterval := 3 * time.Second
	// Use config interval if set, but ensure it's reasonable
	if d, err := time.ParseDuration(config.AppConfig.Serial.ScanInterval); err == nil && d > 0 {
		scanInterval = d
	}

	logger.Log.Info("Worker Manager started, scanning ports every ", scanInterval)

	// Initial scan
	m.ScanAndManage()

	go func() {
		ticker := time.NewTicker(scanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.ScanAndManage()
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Manager) Stop() {
	close(m.stop)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workers {
		w.Stop()
	}
}

func (m *Manager) ScanAndManage() {
	ports, err := serial.GetPortsList()
	if err != nil {
		logger.Log.Errorf("Failed to list serial ports: %v", err)
		return
	}

	// Filter excluded ports
	validPorts := make(map[string]bool)
	for _, p := range ports {
		if !isExcluded(p) {
			validPorts[p] = true
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// 1. Add new workers
	for p := range validPorts {
		if _, exists := m.workers[p]; !exists {
			logger.Log.Infof("Found new port: %s. Starting worker...", p)
			w := NewTrackerWorker(p, m.db, m)
			m.workers[p] = w
			w.Start()
		}
	}

	// 2. Remove workers for missing ports
	for p, w := range m.workers {
		if !validPorts[p] {
			logger.Log.Infof("Port %s gone. Stopping worker...", p)
			w.Stop()
			delete(m.workers, p)

			// If associated with an IMEI, unregister it
			if w.device != nil && w.device.IMEI != "" {
				delete(m.activeIMEIs, w.device.IMEI)
			}
		}
	}
}

func isExcluded(port string) bool {
	for _, excluded := range config.AppConfig.Serial.ExcludePorts {
		if port == excluded {
			return true
		}
	}

	return false
}

func (m *Manager) GetWorkerByIMEI(imei string) *TrackerWorker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.workers {
		if w.device != nil && w.device.IMEI == imei {
			return w
		}
	}
	return nil
}

func (m *Manager) RegisterIMEI(port, imei string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingPort, exists := m.activeIMEIs[imei]; exists {
		if existingPort != port {
			return false // Already claimed by another port
		}
		// Same port, ok
		return true
	}

	m.activeIMEIs[imei] = port
	return true
}

func (m *Manager) UnregisterIMEI(imei string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.activeIMEIs, imei)
}
