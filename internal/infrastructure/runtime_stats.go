package infrastructure

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats is a snapshot of process resources taken at the end of a run
type RuntimeStats struct {
	Goroutines   int64
	HeapInUse    int64
	TotalAlloc   int64
	SystemMemory int64
	GCCount      uint32
	LastGCPause  time.Duration
	Elapsed      time.Duration
}

// CollectRuntimeStats reads the Go runtime counters
func CollectRuntimeStats(start time.Time) RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		Goroutines:   int64(runtime.NumGoroutine()),
		HeapInUse:    int64(memStats.HeapInuse),
		TotalAlloc:   int64(memStats.TotalAlloc),
		SystemMemory: int64(memStats.Sys),
		GCCount:      memStats.NumGC,
		LastGCPause:  time.Duration(memStats.PauseNs[(memStats.NumGC+255)%256]),
		Elapsed:      time.Since(start),
	}
}

// RecordRuntimeStats records stats as gauges on meter
func RecordRuntimeStats(ctx context.Context, meter metric.Meter, stats RuntimeStats) error {
	heap, err := meter.Int64Gauge(
		"process_heap_inuse_bytes",
		metric.WithDescription("Heap bytes in use at the end of the run"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	allocated, err := meter.Int64Gauge(
		"process_allocated_bytes",
		metric.WithDescription("Cumulative bytes allocated during the run"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	gcCount, err := meter.Int64Gauge(
		"process_gc_count",
		metric.WithDescription("Number of completed garbage collections"),
	)
	if err != nil {
		return err
	}

	elapsed, err := meter.Float64Gauge(
		"run_elapsed_seconds",
		metric.WithDescription("Wall time of the run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	heap.Record(ctx, stats.HeapInUse)
	allocated.Record(ctx, stats.TotalAlloc)
	gcCount.Record(ctx, int64(stats.GCCount))
	elapsed.Record(ctx, stats.Elapsed.Seconds())
	return nil
}

// LogValue implements slog.LogValuer
func (s RuntimeStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("goroutines", s.Goroutines),
		slog.Int64("heap_inuse_bytes", s.HeapInUse),
		slog.Int64("total_alloc_bytes", s.TotalAlloc),
		slog.Int64("sys_bytes", s.SystemMemory),
		slog.Uint64("gc_count", uint64(s.GCCount)),
		slog.Duration("last_gc_pause", s.LastGCPause),
		slog.Duration("elapsed", s.Elapsed),
	)
}
