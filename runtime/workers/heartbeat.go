package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-relay/observability"
)

// HeartbeatWorker periodically logs the relay's own resource usage next to
// the delivery counters, so a stalled or leaking node shows up in plain
// logs without any external monitoring stack.
type HeartbeatWorker struct {
	log      *slog.Logger
	monitor  *observability.RelayMonitor
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, monitor *observability.RelayMonitor,
	interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitor: monitor, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting relay heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats := w.monitor.Snapshot()
			rssMb, cpu := selfStats(p)
			w.log.Info("Heartbeat",
				"connections", stats.ActiveConnections,
				"delivered", stats.Delivered,
				"undeliverable", stats.Undeliverable,
				"dropped", stats.Dropped,
				"auth_failures", stats.AuthFailures,
				"rss_mb", rssMb,
				"cpu_percent", cpu,
				"uptime", stats.Uptime)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64) {
	var rssMb uint64
	var cpu float64
	if mem, err := p.MemoryInfo(); err == nil {
		rssMb = mem.RSS / (1 << 20)
	}
	if percent, err := p.CPUPercent(); err == nil {
		cpu = percent
	}
	return rssMb, cpu
}
