package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"civicroute/service"
)

// SLAScanner runs one breach evaluation pass
type SLAScanner interface {
	ScanOnce(ctx context.Context) (service.ScanResult, error)
}

// SLAWorker re-evaluates breach status on a fixed interval. The scan itself
// owns deduplication, so overlapping instances only cost wasted reads.
type SLAWorker struct {
	scanner  SLAScanner
	interval time.Duration
	logger   zerolog.Logger
	stopChan chan struct{}
	running  bool
}

// NewSLAWorker creates a new SLA worker
func NewSLAWorker(scanner SLAScanner, interval time.Duration, logger zerolog.Logger) *SLAWorker {
	return &SLAWorker{
		scanner:  scanner,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		running:  false,
	}
}

// Start starts the SLA worker.
// The worker runs in a separate goroutine and scans periodically.
func (w *SLAWorker) Start() {
	if w.running {
		w.logger.Warn().Msg("[sla] worker already running")
		return
	}

	w.running = true
	w.logger.Info().Dur("interval", w.interval).Msg("[sla] worker started")

	go w.run()
}

// Stop stops the SLA worker
func (w *SLAWorker) Stop() {
	if !w.running {
		return
	}

	close(w.stopChan)
	w.running = false
	w.logger.Info().Msg("[sla] worker stopped")
}

// run is the main worker loop
func (w *SLAWorker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Scan immediately on start
	w.scan()

	for {
		select {
		case <-ticker.C:
			w.scan()
		case <-w.stopChan:
			return
		}
	}
}

func (w *SLAWorker) scan() {
	if _, err := w.scanner.ScanOnce(context.Background()); err != nil {
		w.logger.Error().Err(err).Msg("[sla] scan failed")
	}
}
