package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/orderdesk/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			run_id TEXT,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls TEXT,
			tool_call_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (thread_id) REFERENCES threads(thread_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			status TEXT NOT NULL,
			iterations INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			error TEXT,
			FOREIGN KEY (thread_id) REFERENCES threads(thread_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_thread ON runs(thread_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, ts)`,
		`CREATE TABLE IF NOT EXISTS tool_calls (
			tool_call_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			status TEXT NOT NULL,
			args TEXT,
			result TEXT,
			error TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME,
			PRIMARY KEY (run_id, tool_call_id),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Add new columns for existing DBs (SQLite has limited ALTER TABLE support).
	if err := s.ensureColumn("runs", "iterations", "ALTER TABLE runs ADD COLUMN iterations INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetThread retrieves a thread by ID. It returns nil when none exists.
func (s *SQLiteStore) GetThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	var thread domain.Thread
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id, created_at FROM threads WHERE thread_id = ?`,
		threadID).Scan(&thread.ThreadID, &thread.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// GetOrCreateThread gets an existing thread or creates a new one.
func (s *SQLiteStore) GetOrCreateThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	now := time.Now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO threads (thread_id, created_at) VALUES (?, ?)`,
		threadID, now); err != nil {
		return nil, err
	}
	return s.GetThread(ctx, threadID)
}

// AppendMessages stores messages in order within one transaction.
func (s *SQLiteStore) AppendMessages(ctx context.Context, messages []domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (message_id, thread_id, run_id, role, content, tool_calls, tool_call_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range messages {
		var toolCalls sql.NullString
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to marshal tool calls: %w", err)
			}
			toolCalls = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			m.MessageID, m.ThreadID, nullString(m.RunID), m.Role, m.Content, toolCalls, nullString(m.ToolCallID), m.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListMessages returns the latest limit messages of a thread, oldest first.
// A limit of zero or less returns the whole thread.
func (s *SQLiteStore) ListMessages(ctx context.Context, threadID string, limit int) ([]domain.Message, error) {
	inner := `SELECT rowid AS seq, message_id, thread_id, run_id, role, content, tool_calls, tool_call_id, created_at
		FROM messages WHERE thread_id = ? ORDER BY rowid DESC`
	args := []interface{}{threadID}
	if limit > 0 {
		inner += ` LIMIT ?`
		args = append(args, limit)
	}
	query := `SELECT message_id, thread_id, run_id, role, content, tool_calls, tool_call_id, created_at FROM (` + inner + `) ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var runID, toolCalls, toolCallID sql.NullString
		if err := rows.Scan(&msg.MessageID, &msg.ThreadID, &runID, &msg.Role, &msg.Content, &toolCalls, &toolCallID, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.RunID = runID.String
		msg.ToolCallID = toolCallID.String
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to decode tool calls of %s: %w", msg.MessageID, err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreateRun creates a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, thread_id, status, iterations, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.ThreadID, run.Status, run.Iterations, run.StartedAt)
	return err
}

// GetRun retrieves a run by ID. It returns nil when none exists.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	var errData sql.NullString
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, thread_id, status, iterations, started_at, ended_at, error FROM runs WHERE run_id = ?`,
		runID).Scan(&run.RunID, &run.ThreadID, &run.Status, &run.Iterations, &run.StartedAt, &endedAt, &errData)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	if errData.Valid {
		run.Error = json.RawMessage(errData.String)
	}
	return &run, nil
}

// UpdateRunStatus updates the status of a run.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ? WHERE run_id = ?`,
		status, runID)
	return err
}

// UpdateRunCompleted moves a run to a terminal state.
func (s *SQLiteStore) UpdateRunCompleted(ctx context.Context, runID string, status domain.RunStatus, iterations int, errData []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, iterations = ?, ended_at = ?, error = ? WHERE run_id = ?`,
		status, iterations, time.Now(), nullStringBytes(errData), runID)
	return err
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Ts, event.Type, payload)
	return err
}

// GetEvents retrieves events for a run.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, run_id, ts, type, payload FROM events WHERE run_id = ?`
	args := []interface{}{runID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += ` AND type IN (` + strings.Join(placeholders, ",") + `)`
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.RunID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CreateToolCall records a tool call as it is dispatched.
func (s *SQLiteStore) CreateToolCall(ctx context.Context, call *domain.ToolCallRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_calls (tool_call_id, run_id, tool_name, status, args, result, error, created_at, completed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ToolCallID, call.RunID, call.ToolName, call.Status, nullStringBytes(call.Args),
		nullString(call.Result), nullString(call.Error), call.CreatedAt, call.CompletedAt)
	return err
}

// UpdateToolCallResult stores the outcome of a tool call.
func (s *SQLiteStore) UpdateToolCallResult(ctx context.Context, runID, toolCallID string, status domain.ToolCallStatus, result, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tool_calls SET status = ?, result = ?, error = ?, completed_at = ? WHERE run_id = ? AND tool_call_id = ?`,
		status, nullString(result), nullString(errMsg), time.Now(), runID, toolCallID)
	return err
}

// ListToolCalls returns the tool calls of a run in dispatch order.
func (s *SQLiteStore) ListToolCalls(ctx context.Context, runID string) ([]domain.ToolCallRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tool_call_id, run_id, tool_name, status, args, result, error, created_at, completed_at
		FROM tool_calls WHERE run_id = ? ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []domain.ToolCallRecord
	for rows.Next() {
		var c domain.ToolCallRecord
		var args, result, errMsg sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&c.ToolCallID, &c.RunID, &c.ToolName, &c.Status, &args, &result, &errMsg, &c.CreatedAt, &completedAt); err != nil {
			return nil, err
		}
		if args.Valid {
			c.Args = json.RawMessage(args.String)
		}
		c.Result = result.String
		c.Error = errMsg.String
		if completedAt.Valid {
			c.CompletedAt = &completedAt.Time
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// TimeoutStaleToolCalls marks tool calls still RUNNING that were created
// before startedBefore as TIMEOUT.
func (s *SQLiteStore) TimeoutStaleToolCalls(ctx context.Context, startedBefore time.Time, errMsg string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tool_calls SET status = ?, error = ?, completed_at = ? WHERE status = ? AND created_at < ?`,
		domain.ToolCallStatusTimeout, nullString(errMsg), time.Now(), domain.ToolCallStatusRunning, startedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FailStaleRuns marks runs that never reached a terminal state and started
// before startedBefore as FAILED.
func (s *SQLiteStore) FailStaleRuns(ctx context.Context, startedBefore time.Time, errData []byte) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ended_at = ?, error = ? WHERE status IN (?, ?) AND started_at < ?`,
		domain.RunStatusFailed, time.Now(), nullStringBytes(errData),
		domain.RunStatusCreated, domain.RunStatusRunning, startedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
