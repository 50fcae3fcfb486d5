package health

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/dmorgan81/crimage/internal/log"
	"github.com/dmorgan81/crimage/internal/urlcache"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"
)

const Engine = "CR-V5-Async"

const (
	ModeServer     = "server"
	ModeServerless = "serverless"
)

type Status struct {
	Status      string          `json:"status"`
	Engine      string          `json:"engine"`
	Mode        string          `json:"mode"`
	GoVersion   string          `json:"go_version"`
	CPUUsage    string          `json:"cpu_usage,omitempty"`
	MemoryUsage string          `json:"memory_usage,omitempty"`
	Uptime      string          `json:"uptime,omitempty"`
	Cache       *urlcache.Stats `json:"cache,omitempty"`
}

// System reads host metrics.
type System interface {
	CPUPercent(context.Context) (float64, error)
	MemoryPercent(context.Context) (float64, error)
	BootTime(context.Context) (time.Time, error)
}

type CacheStats interface {
	Stats() urlcache.Stats
}

type Reporter struct {
	mode   string
	system System
	cache  CacheStats
	now    func() time.Time
}

// NewReporter returns a reporter for mode. Host metrics are only read in
// server mode; a Lambda sandbox's numbers say nothing about the service.
func NewReporter(mode string, system System, cache CacheStats) *Reporter {
	return &Reporter{mode: mode, system: system, cache: cache, now: time.Now}
}

func (r *Reporter) Report(ctx context.Context) Status {
	status := Status{
		Status:    "Healthy",
		Engine:    Engine,
		Mode:      r.mode,
		GoVersion: runtime.Version(),
	}
	if r.cache != nil {
		stats := r.cache.Stats()
		status.Cache = &stats
	}
	if r.mode != ModeServer || r.system == nil {
		return status
	}

	var (
		cpuPct, memPct float64
		boot           time.Time
	)
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		cpuPct, err = r.system.CPUPercent(gctx)
		return err
	})
	group.Go(func() (err error) {
		memPct, err = r.system.MemoryPercent(gctx)
		return err
	})
	group.Go(func() (err error) {
		boot, err = r.system.BootTime(gctx)
		return err
	})
	if err := group.Wait(); err != nil {
		log.FromContextOrDiscard(ctx).Warn("reading system metrics failed", "error", err)
		return status
	}

	status.CPUUsage = fmt.Sprintf("%.1f%%", cpuPct)
	status.MemoryUsage = fmt.Sprintf("%.1f%%", memPct)
	status.Uptime = fmt.Sprintf("%ds", int64(r.now().Sub(boot).Seconds()))
	return status
}

// Host reads metrics through gopsutil.
type Host struct{}

func (Host) CPUPercent(ctx context.Context) (float64, error) {
	// a zero interval compares against the previous call, like psutil.cpu_percent()
	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, nil
	}
	return pcts[0], nil
}

func (Host) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func (Host) BootTime(ctx context.Context) (time.Time, error) {
	secs, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0), nil
}
