package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/meridianhq/meridian/internal/config"
	"github.com/meridianhq/meridian/internal/di"
)

// SystemHandlers serves process and host status endpoints
type SystemHandlers struct {
	cfg       *config.Config
	container *di.Container
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system status handlers
func NewSystemHandlers(cfg *config.Config, container *di.Container, startedAt time.Time, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		cfg:       cfg,
		container: container,
		startedAt: startedAt,
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// DatabaseStatus is one database's size information
type DatabaseStatus struct {
	Name      string  `json:"name"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
}

// HandleStatus handles GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	// 100ms sample keeps the endpoint fast while still giving a real
	// CPU reading.
	cpuPercent := 0.0
	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read CPU usage")
	}

	memPercent := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to read memory usage")
	}

	diskPercent := 0.0
	if usage, err := disk.Usage(h.cfg.DataDir); err == nil {
		diskPercent = usage.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to read disk usage")
	}

	databases := make([]DatabaseStatus, 0, 3)
	for name, db := range h.container.Databases() {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to read database stats")
			continue
		}
		databases = append(databases, DatabaseStatus{
			Name:      name,
			SizeMB:    float64(stats.SizeBytes) / 1024 / 1024,
			WALSizeMB: float64(stats.WALSizeBytes) / 1024 / 1024,
		})
	}
	sort.Slice(databases, func(i, j int) bool { return databases[i].Name < databases[j].Name })

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "running",
		"uptime_seconds":    int64(time.Since(h.startedAt).Seconds()),
		"cpu_percent":       cpuPercent,
		"memory_percent":    memPercent,
		"disk_used_percent": diskPercent,
		"goroutines":        runtime.NumGoroutine(),
		"event_subscribers": h.container.Bus.SubscriberCount(),
		"databases":         databases,
	})
}

// HandleInfo handles GET /api/system/info
func (h *SystemHandlers) HandleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"service":    "meridian",
		"version":    "1.0.0",
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"num_cpu":    runtime.NumCPU(),
		"data_dir":   h.cfg.DataDir,
	}

	if hostInfo, err := host.Info(); err == nil {
		info["hostname"] = hostInfo.Hostname
		info["platform"] = hostInfo.Platform
		info["platform_version"] = hostInfo.PlatformVersion
		info["host_uptime_seconds"] = hostInfo.Uptime
	} else {
		h.log.Warn().Err(err).Msg("Failed to read host info")
	}

	h.writeJSON(w, http.StatusOK, info)
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
