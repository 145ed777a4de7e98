package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// OnlineCounter reports how many live connections the relay holds.
type OnlineCounter interface {
	Online() int
}

// PresenceWorker periodically logs the number of live connections
// together with the memory and CPU usage of the relay process.
type PresenceWorker struct {
	log      *slog.Logger
	counter  OnlineCounter
	interval time.Duration
}

func NewPresenceWorker(log *slog.Logger, counter OnlineCounter, interval time.Duration) *PresenceWorker {
	return &PresenceWorker{log: log, counter: counter, interval: interval}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *PresenceWorker) report(p *process.Process) {
	attrs := []any{"online", w.counter.Online()}
	if rss, cpu, err := selfStats(p); err != nil {
		w.log.Debug("Failed to collect self stats", "error", err)
	} else {
		attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu)
	}
	w.log.Info("Relay presence", attrs...)
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
