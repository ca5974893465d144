// Package worker keeps the exported daily earnings table in step with the
// store. Gig change events mark the table dirty; a cron schedule forces a
// full rewrite so that lost events are eventually repaired.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"gigtracker/internal/amqp"
	applog "gigtracker/internal/log"
)

// Exporter rewrites the earnings table, now or on its next poll.
type Exporter interface {
	MarkDirty()
	ExportNow(ctx context.Context) error
}

// Consumer delivers gig change events until ctx is done.
type Consumer interface {
	ConsumeGigEvents(ctx context.Context, handler func(context.Context, *amqp.GigEventMessage) error) error
}

// SyncWorker wires gig events and the resync schedule to an Exporter.
type SyncWorker struct {
	exporter Exporter
	consumer Consumer
	schedule cron.Schedule
	spec     string
	logger   *applog.Logger
}

// NewSyncWorker validates the cron spec. consumer may be nil, in which case
// only the schedule drives exports.
func NewSyncWorker(exporter Exporter, consumer Consumer, spec string, logger *applog.Logger) (*SyncWorker, error) {
	if exporter == nil {
		return nil, errors.New("sync worker needs an exporter")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sync schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &SyncWorker{
		exporter: exporter,
		consumer: consumer,
		schedule: schedule,
		spec:     spec,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}, nil
}

// HandleGigEvent schedules an export for one change event. Every event
// leads to the same full rewrite, so the payload is only logged.
func (w *SyncWorker) HandleGigEvent(ctx context.Context, msg *amqp.GigEventMessage) error {
	w.logger.InfoContext(ctx, "Gig event received",
		applog.FieldMessageID, msg.ID,
		applog.FieldGigID, msg.GigID,
		applog.FieldEventOp, msg.Op,
		applog.FieldDate, msg.Date)
	w.exporter.MarkDirty()
	return nil
}

// StartupSync exports once so the sheet reflects changes made while the
// worker was down.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	if err := w.exporter.ExportNow(ctx); err != nil {
		return fmt.Errorf("startup export: %w", err)
	}
	return nil
}

// scheduledExport is the cron job body.
func (w *SyncWorker) scheduledExport(ctx context.Context) {
	start := time.Now()
	if err := w.exporter.ExportNow(ctx); err != nil {
		applog.NewStructuredLogger(w.logger).LogError(ctx, "Scheduled export failed", err,
			applog.ComponentWorker, applog.OpExport, nil)
		return
	}
	w.logger.InfoContext(ctx, "Scheduled export completed", applog.FieldDuration, time.Since(start).Milliseconds())
}

// Run starts the resync schedule and consumes events until ctx is done.
func (w *SyncWorker) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(w.schedule, cron.FuncJob(func() { w.scheduledExport(ctx) }))
	c.Start()
	defer func() { <-c.Stop().Done() }()

	w.logger.InfoContext(ctx, "Sync worker running", "schedule", w.spec, "events", w.consumer != nil)

	if w.consumer == nil {
		<-ctx.Done()
		return nil
	}
	err := w.consumer.ConsumeGigEvents(ctx, w.HandleGigEvent)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
