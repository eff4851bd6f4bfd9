package repo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/openl10n/tmsync/internal/events"
	"github.com/openl10n/tmsync/internal/models"
)

// SQLiteRepository implements Repository on a SQLite database.
type SQLiteRepository struct {
	db     *sql.DB
	logger *events.Logger

	// Per-store locks. Each channel has capacity 1 and holds a token
	// while the store is locked.
	mu          sync.Mutex
	locks       map[string]chan struct{}
	lockTimeout time.Duration
}

// defaultLockTimeout bounds how long LockStore waits for a concurrent sync.
const defaultLockTimeout = 5 * time.Second

// NewSQLiteRepository opens (and if needed initializes) a SQLite database.
func NewSQLiteRepository(dbPath string, logger *events.Logger) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000&_fk=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	r := &SQLiteRepository{
		db:          db,
		logger:      logger.WithField("component", "sqlite_repo"),
		locks:       make(map[string]chan struct{}),
		lockTimeout: defaultLockTimeout,
	}

	if err := r.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return r, nil
}

// initialize creates tables and indexes.
func (r *SQLiteRepository) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS stores (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        path TEXT NOT NULL UNIQUE,
        language TEXT NOT NULL,
        state INTEGER NOT NULL DEFAULT 0,
        last_sync_revision INTEGER,
        file_mtime TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS units (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        store_id INTEGER NOT NULL,
        unit_id TEXT NOT NULL,
        idx INTEGER NOT NULL,
        source TEXT NOT NULL,
        target TEXT NOT NULL,
        state INTEGER NOT NULL,
        context TEXT NOT NULL DEFAULT '',
        locations TEXT NOT NULL DEFAULT '',
        developer_comment TEXT NOT NULL DEFAULT '',
        translator_comment TEXT NOT NULL DEFAULT '',
        revision INTEGER NOT NULL DEFAULT 0,
        submitted_by TEXT NOT NULL DEFAULT '',
        submitted_on TIMESTAMP,
        commented_by TEXT NOT NULL DEFAULT '',
        commented_on TIMESTAMP,
        reviewed_by TEXT NOT NULL DEFAULT '',
        reviewed_on TIMESTAMP,
        FOREIGN KEY (store_id) REFERENCES stores(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_units_store_idx ON units(store_id, idx);
    CREATE INDEX IF NOT EXISTS idx_units_store_rev ON units(store_id, revision);

    CREATE TABLE IF NOT EXISTS submissions (
        id TEXT PRIMARY KEY,
        unit_id INTEGER NOT NULL,
        field TEXT NOT NULL,
        old_value TEXT NOT NULL,
        new_value TEXT NOT NULL,
        submitter TEXT NOT NULL,
        type INTEGER NOT NULL,
        created_on TIMESTAMP NOT NULL,
        FOREIGN KEY (unit_id) REFERENCES units(id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS suggestions (
        id TEXT PRIMARY KEY,
        unit_id INTEGER NOT NULL,
        target TEXT NOT NULL,
        user TEXT NOT NULL,
        created_on TIMESTAMP NOT NULL,
        FOREIGN KEY (unit_id) REFERENCES units(id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS revision_counter (
        id INTEGER PRIMARY KEY CHECK (id = 1),
        value INTEGER NOT NULL
    );

    INSERT OR IGNORE INTO revision_counter (id, value) VALUES (1, 0);
    `

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Revisions returns the database-backed global revision source.
func (r *SQLiteRepository) Revisions() *SQLiteRevisionSource {
	return &SQLiteRevisionSource{db: r.db}
}

// SQLiteRevisionSource allocates revisions via an atomic counter row.
type SQLiteRevisionSource struct {
	db *sql.DB
}

// Next allocates a fresh revision.
func (s *SQLiteRevisionSource) Next() (int64, error) {
	var value int64
	err := s.db.QueryRow(
		"UPDATE revision_counter SET value = value + 1 WHERE id = 1 RETURNING value",
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("increment revision: %w", err)
	}
	return value, nil
}

// Current returns the latest allocated revision.
func (s *SQLiteRevisionSource) Current() (int64, error) {
	var value int64
	err := s.db.QueryRow("SELECT value FROM revision_counter WHERE id = 1").Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return value, nil
}

// CreateStore persists a new store.
func (r *SQLiteRepository) CreateStore(store *models.Store) error {
	res, err := r.db.Exec(`
        INSERT INTO stores (path, language, state, last_sync_revision, file_mtime)
        VALUES (?, ?, ?, ?, ?)
    `, store.Path, store.Language, store.State,
		nullRevision(store.LastSyncRevision), nullTime(store.FileMTime))
	if err != nil {
		return fmt.Errorf("insert store: %w", err)
	}

	store.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store id: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"path":     store.Path,
		"store_id": store.ID,
	}).Debug("Created store")
	return nil
}

// StoreByPath retrieves a store by path.
func (r *SQLiteRepository) StoreByPath(path string) (*models.Store, error) {
	store := &models.Store{Path: path}
	var lastSync sql.NullInt64
	var mtime sql.NullTime

	err := r.db.QueryRow(`
        SELECT id, language, state, last_sync_revision, file_mtime
        FROM stores WHERE path = ?
    `, path).Scan(&store.ID, &store.Language, &store.State, &lastSync, &mtime)
	if err == sql.ErrNoRows {
		return nil, models.ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	store.LastSyncRevision = models.NoRevision
	if lastSync.Valid {
		store.LastSyncRevision = lastSync.Int64
	}
	if mtime.Valid {
		store.FileMTime = mtime.Time
	}
	return store, nil
}

// SaveStore persists store attribute changes.
func (r *SQLiteRepository) SaveStore(store *models.Store) error {
	_, err := r.db.Exec(`
        UPDATE stores
        SET language = ?, state = ?, last_sync_revision = ?, file_mtime = ?
        WHERE id = ?
    `, store.Language, store.State,
		nullRevision(store.LastSyncRevision), nullTime(store.FileMTime), store.ID)
	if err != nil {
		return fmt.Errorf("update store: %w", err)
	}
	return nil
}

// LockStore acquires a per-store lock. A timed-out acquire leaves the
// lock untouched, so the holder's unlock makes the store available again.
func (r *SQLiteRepository) LockStore(path string) (UnlockFunc, error) {
	r.mu.Lock()
	lock, exists := r.locks[path]
	if !exists {
		lock = make(chan struct{}, 1)
		r.locks[path] = lock
	}
	r.mu.Unlock()

	select {
	case lock <- struct{}{}:
		return func() { <-lock }, nil
	case <-time.After(r.lockTimeout):
		return nil, models.ErrStoreLocked
	}
}

const unitColumns = `
    id, store_id, unit_id, idx, source, target, state, context, locations,
    developer_comment, translator_comment, revision,
    submitted_by, submitted_on, commented_by, commented_on,
    reviewed_by, reviewed_on`

// Units returns all of a store's units ordered by index.
func (r *SQLiteRepository) Units(storeID int64) ([]*models.Unit, error) {
	rows, err := r.db.Query(
		"SELECT"+unitColumns+" FROM units WHERE store_id = ? ORDER BY idx", storeID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()
	return scanUnits(rows)
}

// UnitsByID retrieves specific units ordered by index.
func (r *SQLiteRepository) UnitsByID(storeID int64, ids []int64) ([]*models.Unit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT" + unitColumns + " FROM units WHERE store_id = ? AND id IN (" +
		placeholders(len(ids)) + ") ORDER BY idx"
	rows, err := r.db.Query(query, append([]interface{}{storeID}, int64Args(ids)...)...)
	if err != nil {
		return nil, fmt.Errorf("query units by id: %w", err)
	}
	defer rows.Close()
	return scanUnits(rows)
}

// AddUnit persists a new unit.
func (r *SQLiteRepository) AddUnit(unit *models.Unit) error {
	source, target, err := marshalTexts(unit)
	if err != nil {
		return err
	}

	res, err := r.db.Exec(`
        INSERT INTO units (
            store_id, unit_id, idx, source, target, state, context, locations,
            developer_comment, translator_comment, revision,
            submitted_by, submitted_on, commented_by, commented_on,
            reviewed_by, reviewed_on
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, unit.StoreID, unit.UnitID, unit.Index, source, target, unit.State,
		unit.Context, unit.LocationsText(),
		unit.DeveloperComment, unit.TranslatorComment, unit.Revision,
		unit.SubmittedBy, nullTime(unit.SubmittedOn),
		unit.CommentedBy, nullTime(unit.CommentedOn),
		unit.ReviewedBy, nullTime(unit.ReviewedOn))
	if err != nil {
		return fmt.Errorf("insert unit: %w", err)
	}

	unit.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("unit id: %w", err)
	}
	return nil
}

// SaveUnit persists changes to an existing unit.
func (r *SQLiteRepository) SaveUnit(unit *models.Unit) error {
	source, target, err := marshalTexts(unit)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
        UPDATE units SET
            idx = ?, source = ?, target = ?, state = ?, context = ?,
            locations = ?, developer_comment = ?, translator_comment = ?,
            revision = ?, submitted_by = ?, submitted_on = ?,
            commented_by = ?, commented_on = ?, reviewed_by = ?, reviewed_on = ?
        WHERE id = ?
    `, unit.Index, source, target, unit.State, unit.Context,
		unit.LocationsText(), unit.DeveloperComment, unit.TranslatorComment,
		unit.Revision, unit.SubmittedBy, nullTime(unit.SubmittedOn),
		unit.CommentedBy, nullTime(unit.CommentedOn),
		unit.ReviewedBy, nullTime(unit.ReviewedOn), unit.ID)
	if err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	return nil
}

// ShiftIndexes renumbers units at or after start by delta.
func (r *SQLiteRepository) ShiftIndexes(storeID int64, start, delta int) (int, error) {
	res, err := r.db.Exec(
		"UPDATE units SET idx = idx + ? WHERE store_id = ? AND idx >= ?",
		delta, storeID, start)
	if err != nil {
		return 0, fmt.Errorf("shift indexes: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ObsoleteUnits soft-deletes the given live units.
func (r *SQLiteRepository) ObsoleteUnits(storeID int64, ids []int64, rev int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := "UPDATE units SET state = ?, revision = ? WHERE store_id = ? AND state != ? AND id IN (" +
		placeholders(len(ids)) + ")"
	args := append(
		[]interface{}{models.Obsolete, rev, storeID, models.Obsolete},
		int64Args(ids)...)
	res, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("obsolete units: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// MaxUnitRevision returns the store's highest unit revision.
func (r *SQLiteRepository) MaxUnitRevision(storeID int64) (int64, error) {
	var max sql.NullInt64
	err := r.db.QueryRow(
		"SELECT MAX(revision) FROM units WHERE store_id = ?", storeID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max unit revision: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

// UnsyncedUnitIDs returns ids of live units with since < revision < before.
func (r *SQLiteRepository) UnsyncedUnitIDs(storeID int64, since, before int64) ([]int64, error) {
	rows, err := r.db.Query(`
        SELECT id FROM units
        WHERE store_id = ? AND revision > ? AND revision < ? AND state > ?
        ORDER BY id
    `, storeID, since, before, models.Obsolete)
	if err != nil {
		return nil, fmt.Errorf("query unsynced units: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unit id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BumpRevisions re-stamps the given units with rev.
func (r *SQLiteRepository) BumpRevisions(storeID int64, ids []int64, rev int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := "UPDATE units SET revision = ? WHERE store_id = ? AND id IN (" +
		placeholders(len(ids)) + ")"
	res, err := r.db.Exec(query, append([]interface{}{rev, storeID}, int64Args(ids)...)...)
	if err != nil {
		return 0, fmt.Errorf("bump revisions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RecordSubmission appends one change record.
func (r *SQLiteRepository) RecordSubmission(sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	_, err := r.db.Exec(`
        INSERT INTO submissions (id, unit_id, field, old_value, new_value, submitter, type, created_on)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, sub.ID, sub.UnitID, sub.Field, sub.OldValue, sub.NewValue,
		sub.Submitter, sub.Type, sub.CreatedOn)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// AddSuggestion stores a pending suggestion unless an identical one exists.
func (r *SQLiteRepository) AddSuggestion(sug *models.Suggestion) (bool, error) {
	target, err := json.Marshal(sug.Target)
	if err != nil {
		return false, fmt.Errorf("encode suggestion target: %w", err)
	}

	var existing int
	err = r.db.QueryRow(
		"SELECT COUNT(*) FROM suggestions WHERE unit_id = ? AND target = ?",
		sug.UnitID, string(target)).Scan(&existing)
	if err != nil {
		return false, fmt.Errorf("check suggestion: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	if sug.ID == "" {
		sug.ID = uuid.NewString()
	}
	_, err = r.db.Exec(`
        INSERT INTO suggestions (id, unit_id, target, user, created_on)
        VALUES (?, ?, ?, ?, ?)
    `, sug.ID, sug.UnitID, string(target), sug.User, sug.CreatedOn)
	if err != nil {
		return false, fmt.Errorf("insert suggestion: %w", err)
	}
	return true, nil
}

// Suggestions returns a unit's pending suggestions.
func (r *SQLiteRepository) Suggestions(unitID int64) ([]*models.Suggestion, error) {
	rows, err := r.db.Query(`
        SELECT id, unit_id, target, user, created_on
        FROM suggestions WHERE unit_id = ? ORDER BY created_on, id
    `, unitID)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	var out []*models.Suggestion
	for rows.Next() {
		sug := &models.Suggestion{}
		var target string
		if err := rows.Scan(&sug.ID, &sug.UnitID, &target, &sug.User, &sug.CreatedOn); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		if err := json.Unmarshal([]byte(target), &sug.Target); err != nil {
			return nil, fmt.Errorf("decode suggestion target: %w", err)
		}
		out = append(out, sug)
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Helpers

func scanUnits(rows *sql.Rows) ([]*models.Unit, error) {
	var out []*models.Unit
	for rows.Next() {
		u := &models.Unit{}
		var source, target, locations string
		var submittedOn, commentedOn, reviewedOn sql.NullTime

		err := rows.Scan(
			&u.ID, &u.StoreID, &u.UnitID, &u.Index, &source, &target, &u.State,
			&u.Context, &locations, &u.DeveloperComment, &u.TranslatorComment,
			&u.Revision, &u.SubmittedBy, &submittedOn,
			&u.CommentedBy, &commentedOn, &u.ReviewedBy, &reviewedOn)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}

		if err := json.Unmarshal([]byte(source), &u.Source); err != nil {
			return nil, fmt.Errorf("decode source: %w", err)
		}
		if err := json.Unmarshal([]byte(target), &u.Target); err != nil {
			return nil, fmt.Errorf("decode target: %w", err)
		}
		if locations != "" {
			u.Locations = strings.Split(locations, "\n")
		}
		if submittedOn.Valid {
			u.SubmittedOn = submittedOn.Time
		}
		if commentedOn.Valid {
			u.CommentedOn = commentedOn.Time
		}
		if reviewedOn.Valid {
			u.ReviewedOn = reviewedOn.Time
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func marshalTexts(unit *models.Unit) (string, string, error) {
	source, err := json.Marshal(unit.Source)
	if err != nil {
		return "", "", fmt.Errorf("encode source: %w", err)
	}
	target := unit.Target
	if target == nil {
		target = models.MultiString{}
	}
	targetData, err := json.Marshal(target)
	if err != nil {
		return "", "", fmt.Errorf("encode target: %w", err)
	}
	return string(source), string(targetData), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullRevision(rev int64) sql.NullInt64 {
	if rev == models.NoRevision {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: rev, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
