// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package sync

import (
	"context"
	"sync"
	"time"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/logging"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/metrics"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/models"
)

// jobName identifies the reconciliation job in logs and status output.
const jobName = "sync_users"

// DBInterface is the slice of the store the reconciler needs. The
// concrete implementation is *database.DB; tests substitute fakes.
type DBInterface interface {
	GetUser(ctx context.Context, userID int64) (*models.LocalUser, error)
	ListUsersWithoutSyncRecord(ctx context.Context) ([]*models.LocalUser, error)
	UpsertSyncRecord(ctx context.Context, user *models.LocalUser, siteURL string) error
	GetSyncRecord(ctx context.Context, userID int64) (*models.SyncRecord, error)
	MarkSynced(ctx context.Context, userID int64) error
	DeleteSyncRecord(ctx context.Context, userID int64) error
	ListPendingSyncRecords(ctx context.Context) ([]*models.SyncRecord, error)
	CountPendingSyncRecords(ctx context.Context) (int, error)
}

// RemoteClient performs one delivery attempt per call.
type RemoteClient interface {
	Send(ctx context.Context, payload []byte) (map[string]any, error)
}

// Status is a point-in-time view of the reconciler for the operator API.
type Status struct {
	Job           string        `json:"job"`
	Running       bool          `json:"running"`
	Interval      time.Duration `json:"interval"`
	LastSweepAt   time.Time     `json:"last_sweep_at"`
	LastDelivered int           `json:"last_delivered"`
	LastFailed    int           `json:"last_failed"`
	Pending       int           `json:"pending"`
}

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	Backfilled int `json:"backfilled"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
	Pending    int `json:"pending"`
}

// Manager drives the reconciliation loop. Sweeps are serialized in-process
// by syncMu; delivery is idempotent on the remote side, so an overlapping
// sweep from another process would be tolerated, just wasteful.
type Manager struct {
	db       DBInterface
	client   RemoteClient
	siteURL  string
	interval time.Duration

	syncMu   sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup

	statusMu      sync.RWMutex
	running       bool
	lastSweepAt   time.Time
	lastDelivered int
	lastFailed    int
}

// NewManager builds a reconciler over the given store and client.
func NewManager(db DBInterface, client RemoteClient, siteURL string, interval time.Duration) *Manager {
	return &Manager{
		db:       db,
		client:   client,
		siteURL:  siteURL,
		interval: interval,
	}
}

// Start launches the background sweep loop. Calling Start on a running
// manager is a no-op.
func (m *Manager) Start() {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})

	m.wg.Add(1)
	go m.syncLoop()

	logging.Info().
		Str("job", jobName).
		Dur("interval", m.interval).
		Msg("User sync reconciler started")
}

// Stop terminates the sweep loop and waits for an in-flight sweep to
// finish.
func (m *Manager) Stop() {
	m.statusMu.Lock()
	if !m.running {
		m.statusMu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	m.statusMu.Unlock()

	m.wg.Wait()
	logging.Info().Str("job", jobName).Msg("User sync reconciler stopped")
}

func (m *Manager) syncLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			if _, err := m.Sweep(context.Background()); err != nil {
				logging.Err(err).Str("job", jobName).Msg("Scheduled sweep failed")
			}
		}
	}
}

// Sweep runs one full reconciliation pass: create records for users that
// have none, then replay every pending record through the client. Each
// failure is isolated to its user; the record stays pending and the next
// sweep retries it. There is no retry cap and no dead-letter state.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	start := time.Now()
	var result SweepResult

	missing, err := m.db.ListUsersWithoutSyncRecord(ctx)
	if err != nil {
		return result, err
	}
	for _, user := range missing {
		if err := m.db.UpsertSyncRecord(ctx, user, m.siteURL); err != nil {
			logging.Err(err).
				Str("job", jobName).
				Int64("user_id", user.ID).
				Msg("Failed to backfill sync record")
			continue
		}
		result.Backfilled++
	}

	pending, err := m.db.ListPendingSyncRecords(ctx)
	if err != nil {
		return result, err
	}
	for _, rec := range pending {
		if delivered := m.deliver(ctx, rec); delivered {
			result.Delivered++
		} else {
			result.Failed++
		}
	}

	result.Pending = len(pending) - result.Delivered

	m.statusMu.Lock()
	m.lastSweepAt = time.Now()
	m.lastDelivered = result.Delivered
	m.lastFailed = result.Failed
	m.statusMu.Unlock()

	metrics.RecordSweep(time.Since(start), result.Pending)
	logging.Info().
		Str("job", jobName).
		Int("backfilled", result.Backfilled).
		Int("delivered", result.Delivered).
		Int("failed", result.Failed).
		Int("pending", result.Pending).
		Dur("duration", time.Since(start)).
		Msg("Sweep complete")
	return result, nil
}

// deliver attempts one record and marks it synced only on remote success.
func (m *Manager) deliver(ctx context.Context, rec *models.SyncRecord) bool {
	if _, err := m.client.Send(ctx, rec.Payload); err != nil {
		logging.Warn().
			Err(err).
			Str("job", jobName).
			Int64("user_id", rec.UserID).
			Msg("Delivery failed, record stays pending")
		return false
	}
	if err := m.db.MarkSynced(ctx, rec.UserID); err != nil {
		// Delivered but not marked: the next sweep re-sends the same
		// payload. At-least-once, never at-most-once.
		logging.Err(err).
			Str("job", jobName).
			Int64("user_id", rec.UserID).
			Msg("Failed to mark record synced after delivery")
		return false
	}
	return true
}

// ReconcileOne refreshes the user's sync record and makes one immediate
// delivery attempt. It reports whether the record was delivered; on
// failure the record stays pending for the next sweep.
func (m *Manager) ReconcileOne(ctx context.Context, userID int64) bool {
	user, err := m.db.GetUser(ctx, userID)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("job", jobName).
			Int64("user_id", userID).
			Msg("Cannot reconcile unknown user")
		return false
	}
	if user.Deleted {
		logging.Debug().
			Str("job", jobName).
			Int64("user_id", userID).
			Msg("Skipping reconcile of deleted user")
		return false
	}

	if err := m.db.UpsertSyncRecord(ctx, user, m.siteURL); err != nil {
		logging.Err(err).
			Str("job", jobName).
			Int64("user_id", userID).
			Msg("Failed to upsert sync record")
		return false
	}

	rec, err := m.db.GetSyncRecord(ctx, userID)
	if err != nil {
		logging.Err(err).
			Str("job", jobName).
			Int64("user_id", userID).
			Msg("Failed to read back sync record")
		return false
	}
	return m.deliver(ctx, rec)
}

// Status reports the reconciler's state for the operator endpoint.
func (m *Manager) Status(ctx context.Context) Status {
	m.statusMu.RLock()
	st := Status{
		Job:           jobName,
		Running:       m.running,
		Interval:      m.interval,
		LastSweepAt:   m.lastSweepAt,
		LastDelivered: m.lastDelivered,
		LastFailed:    m.lastFailed,
	}
	m.statusMu.RUnlock()

	pending, err := m.db.CountPendingSyncRecords(ctx)
	if err != nil {
		logging.Err(err).Str("job", jobName).Msg("Failed to count pending records")
	} else {
		st.Pending = pending
	}
	return st
}
