// Package sysinfo samples host and database statistics for admin views.
package sysinfo

import (
	"runtime"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// cpuSampleInterval keeps status requests fast while still giving a usable reading.
const cpuSampleInterval = 100 * time.Millisecond

// Host is a point-in-time view of the machine running the server.
type Host struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	Goroutines    int     `json:"goroutines"`
	HeapMB        float64 `json:"heap_mb"`
}

// DBInfo describes one SQLite database file.
type DBInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	Pages     int64   `json:"pages"`
	FreePages int64   `json:"free_pages"`
}

// SampleHost reads CPU and memory usage. Failures are logged and reported as zero.
func SampleHost(log zerolog.Logger) Host {
	var h Host

	cpuPercent, err := cpu.Percent(cpuSampleInterval, false)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		h.CPUPercent = round1(cpuPercent[0])
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		h.MemoryPercent = round1(memStat.UsedPercent)
		h.MemoryUsedMB = toMB(int64(memStat.Used))
		h.MemoryTotalMB = toMB(int64(memStat.Total))
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	h.Goroutines = runtime.NumGoroutine()
	h.HeapMB = toMB(int64(ms.HeapAlloc))
	return h
}

// Databases collects file statistics for dbs and their combined size in MB.
// Databases that fail to report are logged and skipped.
func Databases(log zerolog.Logger, dbs ...*database.DB) ([]DBInfo, float64) {
	infos := make([]DBInfo, 0, len(dbs))
	var total float64
	for _, db := range dbs {
		if db == nil {
			continue
		}
		stats, err := db.GetStats()
		if err != nil {
			log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}
		info := DBInfo{
			Name:      db.Name(),
			Path:      db.Path(),
			SizeMB:    toMB(stats.SizeBytes),
			WALSizeMB: toMB(stats.WALSizeBytes),
			Pages:     stats.PageCount,
			FreePages: stats.FreelistCount,
		}
		total += info.SizeMB + info.WALSizeMB
		infos = append(infos, info)
	}
	return infos, round2(total)
}

func toMB(bytes int64) float64 {
	return round2(float64(bytes) / 1024 / 1024)
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
