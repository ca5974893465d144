package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gigtracker/internal/ports"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often a pending export is checked for (default: 10s)
	PollInterval time.Duration

	// MaxRetries is how many consecutive failed exports are retried before
	// waiting for the next change (default: 3)
	MaxRetries int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 10 * time.Second,
		MaxRetries:   3,
	}
}

// SyncProcessor keeps the exported daily earnings table in step with the
// store. Changes only mark the table dirty; the loop rewrites it at most once
// per poll interval, so a burst of events costs a single export.
type SyncProcessor struct {
	gigs   *GigService
	writer ports.EarningsWriter
	config SyncProcessorConfig

	mu       sync.Mutex
	pending  bool
	failures int
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSyncProcessor(gigs *GigService, writer ports.EarningsWriter, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultSyncProcessorConfig().MaxRetries
	}
	return &SyncProcessor{
		gigs:   gigs,
		writer: writer,
		config: config,
	}
}

// MarkDirty schedules an export on the next poll.
func (p *SyncProcessor) MarkDirty() {
	p.mu.Lock()
	p.pending = true
	p.failures = 0
	p.mu.Unlock()
}

// Pending reports whether an export is scheduled.
func (p *SyncProcessor) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// ExportNow rewrites the whole daily earnings table.
func (p *SyncProcessor) ExportNow(ctx context.Context) error {
	days, err := p.gigs.DailyEarnings(ctx, Selector{})
	if err != nil {
		return fmt.Errorf("aggregate daily earnings: %w", err)
	}
	if err := p.writer.WriteDailyEarnings(ctx, days); err != nil {
		return fmt.Errorf("write daily earnings: %w", err)
	}
	slog.InfoContext(ctx, "Daily earnings exported", "days", len(days))
	return nil
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processPending(ctx)
		}
	}
}

// processPending exports once if the table is dirty. A failed export stays
// pending until MaxRetries consecutive failures.
func (p *SyncProcessor) processPending(ctx context.Context) {
	p.mu.Lock()
	if !p.pending {
		p.mu.Unlock()
		return
	}
	p.pending = false
	p.mu.Unlock()

	err := p.ExportNow(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.failures = 0
		return
	}
	p.failures++
	slog.WarnContext(ctx, "Daily earnings export failed",
		"attempt", p.failures,
		"error", err)
	if p.failures < p.config.MaxRetries {
		p.pending = true
		return
	}
	slog.ErrorContext(ctx, "Daily earnings export failed permanently after max retries",
		"attempts", p.failures)
	p.failures = 0
}
