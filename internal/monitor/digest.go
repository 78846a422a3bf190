package monitor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/notify"
	"github.com/zulandar/switchboard/internal/store"
	"gorm.io/gorm"
)

// TakeoverReport holds computed takeover metrics for the digest.
type TakeoverReport struct {
	StoppedConversations int
	PendingBuffers       int
	OldestWait           time.Duration
	WaitingDialogs       []string
}

// maxDigestDialogs caps how many dialog IDs the digest lists by name.
const maxDigestDialogs = 10

// BuildDigest summarizes the current takeover state as a staff alert.
// Returns nil when nothing is stopped or buffered — an empty digest is
// suppressed rather than sent.
func BuildDigest(db *gorm.DB, now time.Time) (*notify.Event, error) {
	report, err := buildTakeoverReport(db, now)
	if err != nil {
		return nil, fmt.Errorf("monitor: digest: %w", err)
	}

	if report.StoppedConversations == 0 && report.PendingBuffers == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Conversations in human takeover: %d\n", report.StoppedConversations)
	fmt.Fprintf(&b, "Customers waiting in buffers: %d\n", report.PendingBuffers)
	if report.PendingBuffers > 0 {
		fmt.Fprintf(&b, "Longest wait: %s\n", report.OldestWait.Round(time.Minute))
		fmt.Fprintf(&b, "Waiting: %s", strings.Join(report.WaitingDialogs, ", "))
		if report.PendingBuffers > len(report.WaitingDialogs) {
			fmt.Fprintf(&b, " (+%d more)", report.PendingBuffers-len(report.WaitingDialogs))
		}
	}

	return &notify.Event{
		Title:    "Daily takeover digest",
		Body:     b.String(),
		Severity: notify.SeverityInfo,
	}, nil
}

// buildTakeoverReport computes digest metrics from the two stores.
func buildTakeoverReport(db *gorm.DB, now time.Time) (*TakeoverReport, error) {
	stopped, err := store.ListConversations(db, models.StatusStopped)
	if err != nil {
		return nil, err
	}
	bufs, err := store.ListBuffers(db)
	if err != nil {
		return nil, err
	}

	report := &TakeoverReport{
		StoppedConversations: len(stopped),
		PendingBuffers:       len(bufs),
	}
	for i, buf := range bufs {
		if wait := now.Sub(buf.CreatedAt); wait > report.OldestWait {
			report.OldestWait = wait
		}
		if i < maxDigestDialogs {
			report.WaitingDialogs = append(report.WaitingDialogs, buf.DialogID)
		}
	}
	return report, nil
}

// RunDigestScheduler posts the takeover digest on the configured cron
// schedule. It returns immediately if no cron expression is set or the
// monitor has no notifier.
func (m *Monitor) RunDigestScheduler(ctx context.Context) {
	if m.digestCron == "" || m.notifier == nil {
		return
	}

	d := nextCronDuration(m.digestCron)
	if d <= 0 {
		log.Printf("monitor: digest: bad cron expression %q, digest disabled", m.digestCron)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.fireDigest(ctx)
			if d := nextCronDuration(m.digestCron); d > 0 {
				timer.Reset(d)
			}
		}
	}
}

// fireDigest builds and posts a single digest.
func (m *Monitor) fireDigest(ctx context.Context) {
	ev, err := BuildDigest(m.db, m.now())
	if err != nil {
		log.Printf("monitor: digest: %v", err)
		return
	}
	if ev == nil {
		// No takeovers — suppress digest.
		return
	}
	if err := m.notifier.Post(ctx, *ev); err != nil {
		log.Printf("monitor: send digest: %v", err)
	}
}
