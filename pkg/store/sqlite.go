package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Promptonauts/releasepipe/pkg/models"
)

type SQLiteStore struct {
	db       *sql.DB
	mu       sync.RWMutex
	watchers []chan DescriptorEvent
	watchMu  sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS descriptors (
		name TEXT PRIMARY KEY,
		uid TEXT NOT NULL,
		revision INTEGER NOT NULL,
		data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		descriptor_name TEXT NOT NULL,
		branch TEXT NOT NULL,
		state TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS plan_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		commit_index INTEGER DEFAULT 0,
		FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_plans_descriptor ON plans(descriptor_name);
	CREATE INDEX IF NOT EXISTS idx_plans_state ON plans(state);
	CREATE INDEX IF NOT EXISTS idx_plan_logs_plan_id ON plan_logs(plan_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	s.watchMu.Lock()
	for _, ch := range s.watchers {
		close(ch)
	}
	s.watchers = nil
	s.watchMu.Unlock()
	return s.db.Close()
}

// PutDescriptor inserts or replaces the named descriptor. Each put bumps the
// revision; the UID and creation time survive updates.
func (s *SQLiteStore) PutDescriptor(rec *models.DescriptorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, err := s.getDescriptorUnlocked(rec.Name)
	isNew := errors.Is(err, ErrNotFound)
	if err != nil && !isNew {
		return err
	}
	if isNew {
		rec.UID = uuid.New().String()
		rec.CreatedAt = now
		rec.Revision = 1
	} else {
		rec.UID = existing.UID
		rec.CreatedAt = existing.CreatedAt
		rec.Revision = existing.Revision + 1
	}
	rec.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO descriptors (name, uid, revision, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			revision = excluded.revision,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, rec.Name, rec.UID, rec.Revision, string(data), rec.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("upsert descriptor: %w", err)
	}

	evtType := EventUpdated
	if isNew {
		evtType = EventCreated
	}
	s.emit(DescriptorEvent{Type: evtType, Descriptor: rec})
	return nil
}

func (s *SQLiteStore) GetDescriptor(name string) (*models.DescriptorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getDescriptorUnlocked(name)
}

func (s *SQLiteStore) getDescriptorUnlocked(name string) (*models.DescriptorRecord, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM descriptors WHERE name = ?", name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("descriptor %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query descriptor: %w", err)
	}

	var rec models.DescriptorRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal descriptor: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) ListDescriptors() ([]*models.DescriptorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT data FROM descriptors ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}
	defer rows.Close()

	var results []*models.DescriptorRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec models.DescriptorRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, err
		}
		results = append(results, &rec)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) DeleteDescriptor(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getDescriptorUnlocked(name)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM descriptors WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete descriptor: %w", err)
	}

	s.emit(DescriptorEvent{Type: EventDeleted, Descriptor: rec})
	return nil
}

// CreatePlan stores the plan and any logs it carries.
func (s *SQLiteStore) CreatePlan(plan *models.PlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.State == "" {
		plan.State = models.PlanPending
	}
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	logs := plan.Logs
	plan.Logs = nil
	data, err := json.Marshal(plan)
	plan.Logs = logs
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO plans (id, descriptor_name, branch, state, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, plan.ID, plan.DescriptorName, plan.Branch, string(plan.State), string(data), now, now)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	for _, l := range logs {
		if err := insertLog(tx, plan.ID, l); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetPlan(id string) (*models.PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRow("SELECT data FROM plans WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var plan models.PlanRecord
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *SQLiteStore) ListPlans(descriptorName string, limit int) ([]*models.PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT data FROM plans"
	args := []interface{}{}
	if descriptorName != "" {
		query += " WHERE descriptor_name = ?"
		args = append(args, descriptorName)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.PlanRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var plan models.PlanRecord
		if err := json.Unmarshal([]byte(data), &plan); err != nil {
			return nil, err
		}
		results = append(results, &plan)
	}
	return results, rows.Err()
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertLog(db execer, id string, l models.PlanLog) error {
	_, err := db.Exec(`
		INSERT INTO plan_logs (plan_id, timestamp, level, message, commit_index)
		VALUES (?, ?, ?, ?, ?)
	`, id, l.Timestamp, l.Level, l.Message, l.Commit)
	if err != nil {
		return fmt.Errorf("insert plan log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendPlanLog(id string, logEntry models.PlanLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertLog(s.db, id, logEntry)
}

func (s *SQLiteStore) GetPlanLogs(id string) ([]models.PlanLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT timestamp, level, message, commit_index FROM plan_logs WHERE plan_id = ? ORDER BY id ASC",
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.PlanLog
	for rows.Next() {
		var l models.PlanLog
		if err := rows.Scan(&l.Timestamp, &l.Level, &l.Message, &l.Commit); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Watch subscribes to descriptor changes. The channel closes with the store.
func (s *SQLiteStore) Watch() <-chan DescriptorEvent {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	ch := make(chan DescriptorEvent, 100)
	s.watchers = append(s.watchers, ch)
	return ch
}

func (s *SQLiteStore) emit(event DescriptorEvent) {
	s.watchMu.RLock()
	defer s.watchMu.RUnlock()

	for _, ch := range s.watchers {
		select {
		case ch <- event:
		default:
			// slow watcher; drop
		}
	}
}
