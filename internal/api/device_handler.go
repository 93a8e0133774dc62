package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/quectrack/internal/model"
	"github.com/pccr10001/quectrack/internal/repository"
	"github.com/pccr10001/quectrack/internal/worker"
	"gorm.io/gorm"
)

type DeviceHandler struct {
	db      *gorm.DB
	wm      *worker.Manager
	fixRepo *repository.FixRepository
}

type deviceWithWorker struct {
	model.Device
	WorkerExists bool `json:"worker_exists"`
}

func NewDeviceHandler(db *gorm.DB, wm *worker.Manager) *DeviceHandler {
	return &DeviceHandler{db: db, wm: wm, fixRepo: repository.NewFixRepository(db)}
}

func (h *DeviceHandler) ListDevices(c *gin.Context) {
	userObj, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	user := userObj.(*model.User)

	isAdmin := (user.Role == "admin")
	var allowed []string
	if !isAdmin {
		allowed = splitAllowed(user.AllowedDevices)
	}

	var devices []model.Device
	db := h.db
	if !isAdmin {
		if len(allowed) == 0 {
			db = db.Where("1 = 0") // No access
		} else {
			db = db.Where("imei IN ?", allowed)
		}
	}

	if err := db.Find(&devices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]deviceWithWorker, 0, len(devices))
	for _, d := range devices {
		resp = append(resp, deviceWithWorker{
			Device:       d,
			WorkerExists: h.wm.GetWorkerByIMEI(d.IMEI) != nil,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func splitAllowed(s string) []string {
	if s == "" {
		return []string{}
	}
	if s == "*" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// deviceAllowed checks per-user device access. Admins see everything.
func deviceAllowed(c *gin.Context, imei string) bool {
	userObj, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	user := userObj.(*model.User)
	if user.Role == "admin" || user.AllowedDevices == "*" {
		return true
	}
	for _, a := range splitAllowed(user.AllowedDevices) {
		if a == imei {
			return true
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "Access denied for this device"})
	return false
}

func (h *DeviceHandler) GetDevice(c *gin.Context) {
	imei := c.Param("imei")
	if !deviceAllowed(c, imei) {
		return
	}

	var device model.Device
	if err := h.db.First(&device, "imei = ?", imei).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		return
	}
	c.JSON(http.StatusOK, deviceWithWorker{
		Device:       device,
		WorkerExists: h.wm.GetWorkerByIMEI(imei) != nil,
	})
}

func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	userObj, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	user := userObj.(*model.User)
	if user.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	imei := c.Param("imei")
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var device model.Device
	if err := h.db.First(&device, "imei = ?", imei).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		return
	}

	device.Name = req.Name
	if err := h.db.Save(&device).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update device"})
		return
	}
	c.JSON(http.StatusOK, device)
}

func (h *DeviceHandler) ListFixes(c *gin.Context) {
	imei := c.Param("imei")
	if !deviceAllowed(c, imei) {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	fixes, err := h.fixRepo.FindByIMEI(imei, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, fixes)
}

func (h *DeviceHandler) LatestFix(c *gin.Context) {
	imei := c.Param("imei")
	if !deviceAllowed(c, imei) {
		return
	}

	fix, err := h.fixRepo.Latest(imei)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No fix recorded yet"})
		return
	}
	c.JSON(http.StatusOK, fix)
}

// AcquireFix asks the worker for a position right now instead of waiting for
// the next interval.
func (h *DeviceHandler) AcquireFix(c *gin.Context) {
	imei := c.Param("imei")
	if !deviceAllowed(c, imei) {
		return
	}

	w := h.wm.GetWorkerByIMEI(imei)
	if w == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not active (worker not found)"})
		return
	}

	fix, err := w.AcquireFix()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Fix failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, fix)
}

func (h *DeviceHandler) SetGNSS(c *gin.Context) {
	imei := c.Param("imei")
	if !deviceAllowed(c, imei) {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w := h.wm.GetWorkerByIMEI(imei)
	if w == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not active (worker not found)"})
		return
	}

	if err := w.SetGNSS(req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "GNSS switch failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *DeviceHandler) SyncTime(c *gin.Context) {
	imei := c.Param("imei")
	if !deviceAllowed(c, imei) {
		return
	}

	w := h.wm.GetWorkerByIMEI(imei)
	if w == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not active (worker not found)"})
		return
	}

	if err := w.SyncTime(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Time sync failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *DeviceHandler) ExecuteAT(c *gin.Context) {
	imei := c.Param("imei")
	if !deviceAllowed(c, imei) {
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Command == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command required"})
		return
	}

	w := h.wm.GetWorkerByIMEI(imei)
	if w == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not active (worker not found)"})
		return
	}

	resp, err := w.ExecuteAT(req.Command, 10*time.Second)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "response": resp})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": resp})
}
