package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/skra72/melcloudd/internal/events"
	"github.com/skra72/melcloudd/internal/infrastructure/config"
)

// Recorder configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// busyTimeoutMs is how long SQLite waits for a lock before failing.
	busyTimeoutMs = 5000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// sweepInterval is how often the retention sweep runs.
	sweepInterval = time.Hour

	// defaultQueryLimit caps Entries results when no limit is given.
	defaultQueryLimit = 100

	// hoursPerDay converts retention days to a time.Duration.
	hoursPerDay = 24
)

// schema creates the audit trail table on first open. The table is
// append-only; rows leave only through the retention sweep.
const schema = `
CREATE TABLE IF NOT EXISTS state_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	account     TEXT    NOT NULL,
	device_id   INTEGER NOT NULL,
	family      TEXT    NOT NULL,
	state       TEXT    NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_state_history_device
	ON state_history(account, device_id, recorded_at);
`

// entryColumns is the SELECT column list for history queries.
const entryColumns = `id, account, device_id, family, state, recorded_at`

// Logger is the minimal logging interface the recorder needs.
// Satisfied by *logging.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Entry is one recorded state change.
type Entry struct {
	ID         int64           `json:"id"`
	Account    string          `json:"account"`
	DeviceID   int             `json:"device_id"`
	Family     string          `json:"family"`
	State      json.RawMessage `json:"state"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Recorder appends state changes to SQLite and prunes old rows.
type Recorder struct {
	db        *sql.DB
	retention time.Duration

	mu     sync.Mutex
	closed bool
	logger Logger

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// Open creates the database file (and its directory) if needed, applies
// the schema and starts the retention sweep.
//
// Parameters:
//   - cfg: History configuration from config.yaml
//
// Returns:
//   - *Recorder: Ready recorder
//   - error: ErrDisabled when history is off, or any open/schema failure
func Open(cfg config.HistoryConfig) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	// WAL keeps reads open while the event handler writes.
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path, busyTimeoutMs)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying history database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("applying history schema: %w", err)
	}

	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // File may not exist until first write

	r := &Recorder{
		db:        db,
		retention: time.Duration(cfg.RetentionDays) * hoursPerDay * time.Hour,
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}

	go r.sweepLoop()

	return r, nil
}

// SetLogger sets the logger used for failures inside the event handler,
// where no caller can receive an error.
func (r *Recorder) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Attach subscribes the recorder to the bus. Only stateChanged events
// are recorded; everything else is ignored.
func (r *Recorder) Attach(bus *events.Bus) {
	bus.Subscribe(func(ev events.Event) {
		if ev.Kind != events.KindStateChanged {
			return
		}
		if err := r.Record(context.Background(), ev); err != nil {
			r.logf("recording state change",
				"account", ev.Account, "device_id", ev.DeviceID, "error", err)
		}
	})
}

// Record appends one state change row.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - ev: A stateChanged event; its State field must be JSON-marshallable
//
// Returns:
//   - error: ErrClosed after Close, ErrNotRecordable for stateless
//     events, or the underlying insert failure
func (r *Recorder) Record(ctx context.Context, ev events.Event) error {
	if ev.State == nil {
		return ErrNotRecordable
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.mu.Unlock()

	stateJSON, err := json.Marshal(ev.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	when := ev.Time
	if when.IsZero() {
		when = time.Now()
	}

	query := `
		INSERT INTO state_history (account, device_id, family, state, recorded_at)
		VALUES (?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query,
		ev.Account, ev.DeviceID, ev.Family.String(), string(stateJSON), when.UTC()); err != nil {
		return fmt.Errorf("inserting state change: %w", err)
	}
	return nil
}

// Entries returns the most recent rows for one device, newest first.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - account: Account name the device belongs to
//   - deviceID: MELCloud device identifier
//   - limit: Maximum rows to return; <= 0 uses the default of 100
//
// Returns:
//   - []Entry: Matching rows, possibly empty
//   - error: Query or scan failure
func (r *Recorder) Entries(ctx context.Context, account string, deviceID int, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	query := `SELECT ` + entryColumns + `
		FROM state_history
		WHERE account = ? AND device_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, account, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only result set

	var entries []Entry
	for rows.Next() {
		var (
			e     Entry
			state string
		)
		if err := rows.Scan(&e.ID, &e.Account, &e.DeviceID, &e.Family, &state, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.State = json.RawMessage(state)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return entries, nil
}

// Prune deletes rows older than the retention window.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: Delete failure; nil with 0 rows when retention is unset
func (r *Recorder) Prune(ctx context.Context) (int64, error) {
	if r.retention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-r.retention).UTC()
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM state_history WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning state history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close stops the retention sweep and closes the database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.stopSweep)
	<-r.sweepDone

	return r.db.Close()
}

// sweepLoop runs the retention sweep until Close.
func (r *Recorder) sweepLoop() {
	defer close(r.sweepDone)

	if r.retention <= 0 {
		<-r.stopSweep
		return
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopSweep:
			return
		case <-ticker.C:
			if _, err := r.Prune(context.Background()); err != nil {
				r.logf("retention sweep", "error", err)
			}
		}
	}
}

// logf logs through the configured logger, dropping the message when
// none is set.
func (r *Recorder) logf(msg string, args ...any) {
	r.mu.Lock()
	logger := r.logger
	r.mu.Unlock()

	if logger != nil {
		logger.Error(msg, args...)
	}
}
