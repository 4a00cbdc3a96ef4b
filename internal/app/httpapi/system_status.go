package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type componentStatus struct {
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

type systemStatusResponse struct {
	Database    componentStatus `json:"database"`
	Cache       componentStatus `json:"cache"`
	ProcessRSS  uint64          `json:"processRssBytes"`
	ProcessCPU  float64         `json:"processCpuPercent"`
	SystemMemPct float64        `json:"systemMemPercent"`
}

// systemStatus reports database/cache reachability alongside process
// resource usage, the way the teacher's operational endpoints surface
// gopsutil readings next to upstream dependency pings.
func (h *Handler) systemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := systemStatusResponse{
		Database: probeDatabase(ctx, h.db),
		Cache:    probeCache(ctx, h.redis),
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			resp.ProcessRSS = mi.RSS
		}
		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			resp.ProcessCPU = pct
		}
	}
	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil && v != nil {
		resp.SystemMemPct = v.UsedPercent
	}
	if _, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		h.log.WithError(err).Debug("cpu.Percent unavailable")
	}

	status := http.StatusOK
	if !resp.Database.Healthy || !resp.Cache.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func probeDatabase(ctx context.Context, db *sql.DB) componentStatus {
	if db == nil {
		return componentStatus{Healthy: true, Detail: "not configured"}
	}
	if err := db.PingContext(ctx); err != nil {
		return componentStatus{Healthy: false, Detail: err.Error()}
	}
	return componentStatus{Healthy: true}
}

func probeCache(ctx context.Context, client *redis.Client) componentStatus {
	if client == nil {
		return componentStatus{Healthy: true, Detail: "in-memory"}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return componentStatus{Healthy: false, Detail: err.Error()}
	}
	return componentStatus{Healthy: true}
}
