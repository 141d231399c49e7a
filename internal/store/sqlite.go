package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/braxsimmons/Cliopa/internal/db"
	"github.com/braxsimmons/Cliopa/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// runs and behavioural tests.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied to every connection the pool opens.
// Transactions take the write lock at BEGIN.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)" +
	"&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_txlock=immediate"

// NewSQLite opens a SQLite database at the given path in WAL mode.
func NewSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := conn.Ping(); err != nil {
		conn.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: conn}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqlitePragmas
	}
	return path + "?" + sqlitePragmas
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS agent_accounts (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	id          TEXT PRIMARY KEY REFERENCES agent_accounts(id),
	email       TEXT NOT NULL,
	first_name  TEXT NOT NULL DEFAULT '',
	last_name   TEXT NOT NULL DEFAULT '',
	role        TEXT NOT NULL DEFAULT 'agent',
	team        TEXT,
	hourly_rate REAL NOT NULL DEFAULT 15.00,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_agent_accounts_email ON agent_accounts (lower(email));
CREATE UNIQUE INDEX IF NOT EXISTS uq_profiles_email ON profiles (lower(email));

CREATE TABLE IF NOT EXISTS calls (
	id                    TEXT PRIMARY KEY,
	user_id               TEXT NOT NULL REFERENCES profiles(id),
	call_id               TEXT NOT NULL UNIQUE,
	campaign_name         TEXT,
	call_type             TEXT NOT NULL DEFAULT 'inbound',
	call_start_time       DATETIME,
	call_duration_seconds INTEGER NOT NULL DEFAULT 0,
	recording_url         TEXT,
	transcript_url        TEXT,
	transcript_text       TEXT,
	summary_url           TEXT,
	summary_text          TEXT,
	customer_phone        TEXT,
	customer_name         TEXT,
	disposition           TEXT,
	status                TEXT NOT NULL DEFAULT 'pending',
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calls_status ON calls(status);

CREATE TABLE IF NOT EXISTS audit_cache (
	transcript_hash TEXT PRIMARY KEY,
	audit_result    TEXT NOT NULL,
	ai_provider     TEXT NOT NULL,
	ai_model        TEXT NOT NULL,
	hit_count       INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS report_cards (
	id                    TEXT PRIMARY KEY,
	user_id               TEXT NOT NULL REFERENCES profiles(id),
	call_id               TEXT NOT NULL UNIQUE REFERENCES calls(id),
	source_file           TEXT NOT NULL,
	source_type           TEXT NOT NULL DEFAULT 'call',
	overall_score         REAL NOT NULL,
	communication_score   REAL,
	compliance_score      REAL,
	accuracy_score        REAL,
	tone_score            REAL,
	empathy_score         REAL,
	resolution_score      REAL,
	feedback              TEXT,
	strengths             TEXT NOT NULL DEFAULT '[]',
	areas_for_improvement TEXT NOT NULL DEFAULT '[]',
	recommendations       TEXT NOT NULL DEFAULT '[]',
	criteria_results      TEXT NOT NULL DEFAULT '[]',
	ai_provider           TEXT NOT NULL,
	ai_model              TEXT NOT NULL,
	from_cache            BOOLEAN NOT NULL DEFAULT 0,
	created_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_templates (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	criteria   TEXT NOT NULL,
	is_default BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	summary      TEXT,
	error        TEXT,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS call_sync_logs (
	id         TEXT PRIMARY KEY,
	run_id     TEXT,
	call_id    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT,
	created_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toArgs(keys []string) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}

// plainArgs replaces nullable pointers with their values so the driver
// only sees primitive types.
func plainArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case *string:
			if v != nil {
				out[i] = *v
			}
		case *time.Time:
			if v != nil {
				out[i] = *v
			}
		case *float64:
			if v != nil {
				out[i] = *v
			}
		default:
			out[i] = a
		}
	}
	return out
}

func sqlString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) ExistingCallIDs(ctx context.Context, callIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	for _, chunk := range db.Chunk(callIDs, db.MaxKeysPerQuery) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT call_id FROM calls WHERE call_id IN (`+placeholders(len(chunk))+`)`, toArgs(chunk)...)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: existing call ids")
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close() //nolint:errcheck
				return nil, eris.Wrap(err, "sqlite: scan call id")
			}
			existing[id] = true
		}
		rows.Close() //nolint:errcheck
		if err := rows.Err(); err != nil {
			return nil, eris.Wrap(err, "sqlite: existing call ids iterate")
		}
	}
	return existing, nil
}

func (s *SQLiteStore) FindAgentsByEmail(ctx context.Context, emails []string) (map[string]model.AgentIdentity, error) {
	found := make(map[string]model.AgentIdentity)
	for _, chunk := range db.Chunk(emails, db.MaxKeysPerQuery) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+agentColumns+` FROM profiles WHERE lower(email) IN (`+placeholders(len(chunk))+`)`, toArgs(chunk)...)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: find agents")
		}
		agents, err := collectSQLAgents(rows)
		if err != nil {
			return nil, err
		}
		for _, a := range agents {
			found[model.NormalizeEmail(a.Email)] = a
		}
	}
	return found, nil
}

func (s *SQLiteStore) ListAgents(ctx context.Context) ([]model.AgentIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM profiles ORDER BY email`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list agents")
	}
	return collectSQLAgents(rows)
}

func collectSQLAgents(rows *sql.Rows) ([]model.AgentIdentity, error) {
	defer rows.Close() //nolint:errcheck
	var out []model.AgentIdentity
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan agent")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: agents iterate")
}

func (s *SQLiteStore) CreateAgent(ctx context.Context, agent model.NewAgent) (*model.AgentIdentity, error) {
	email := model.NormalizeEmail(agent.Email)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create agent begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO agent_accounts (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		newID(), email, agent.PasswordHash, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create agent account %s", email)
	}
	var accountID string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM agent_accounts WHERE lower(email) = ?`, email).Scan(&accountID); err != nil {
		return nil, eris.Wrapf(err, "sqlite: read agent account %s", email)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (id, email, first_name, last_name, role, team, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'agent', ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		accountID, email, agent.FirstName, agent.LastName, sqlString(agent.Team), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create agent profile %s", email)
	}
	created, err := scanAgent(tx.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM profiles WHERE lower(email) = ?`, email))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read agent profile %s", email)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: create agent commit")
	}
	return created, nil
}

func (s *SQLiteStore) InsertCall(ctx context.Context, call *model.PersistedCall) error {
	if call.ID == "" {
		call.ID = newID()
	}
	now := time.Now().UTC()
	call.CreatedAt, call.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (`+callColumns+`) VALUES (`+placeholders(18)+`)`,
		plainArgs(callArgs(call))...,
	)
	if isSQLiteUnique(err) {
		return eris.Wrapf(ErrDuplicate, "sqlite: insert call %s", call.CallID)
	}
	return eris.Wrapf(err, "sqlite: insert call %s", call.CallID)
}

func (s *SQLiteStore) UpdateCallStatus(ctx context.Context, callRowID string, status model.CallStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE calls SET status = ?, updated_at = ? WHERE id = ? AND status <> 'audited'`,
		string(status), time.Now().UTC(), callRowID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update call status %s", callRowID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: update call status %s", callRowID)
	}
	return nil
}

func (s *SQLiteStore) ListUnauditedCalls(ctx context.Context, limit int) ([]model.PersistedCall, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+callColumns+` FROM calls
		 WHERE status IN ('pending', 'transcribed')
		   AND transcript_text IS NOT NULL AND transcript_text <> ''
		   AND NOT EXISTS (SELECT 1 FROM report_cards r WHERE r.call_id = calls.id)
		 ORDER BY created_at ASC LIMIT ?`,
		defaultLimit(limit, 25),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unaudited calls")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PersistedCall
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan call")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list unaudited calls iterate")
}

func (s *SQLiteStore) GetCacheEntry(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	var e model.CacheEntry
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT transcript_hash, audit_result, ai_provider, ai_model, hit_count, created_at, updated_at
		 FROM audit_cache WHERE transcript_hash = ?`,
		fingerprint,
	).Scan(&e.Fingerprint, &resultJSON, &e.Provider, &e.Model, &e.HitCount, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cache entry")
	}
	if err := json.Unmarshal([]byte(resultJSON), &e.Result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cache entry")
	}
	return &e, nil
}

func (s *SQLiteStore) UpsertCacheEntry(ctx context.Context, entry model.CacheEntry) error {
	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cache entry")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_cache (transcript_hash, audit_result, ai_provider, ai_model, hit_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (transcript_hash) DO UPDATE SET
		   audit_result = excluded.audit_result,
		   ai_provider = excluded.ai_provider,
		   ai_model = excluded.ai_model,
		   updated_at = excluded.updated_at`,
		entry.Fingerprint, string(resultJSON), entry.Provider, entry.Model, now, now,
	)
	return eris.Wrap(err, "sqlite: upsert cache entry")
}

func (s *SQLiteStore) IncrementCacheHit(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_cache SET hit_count = hit_count + 1, updated_at = ? WHERE transcript_hash = ?`,
		time.Now().UTC(), fingerprint,
	)
	return eris.Wrap(err, "sqlite: increment cache hit")
}

func (s *SQLiteStore) InsertReport(ctx context.Context, report *model.ReportRecord) error {
	args, err := reportArgs(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO report_cards (`+reportColumns+`) VALUES (`+placeholders(21)+`)`,
		plainArgs(args)...,
	)
	if isSQLiteUnique(err) {
		return eris.Wrapf(ErrDuplicate, "sqlite: insert report for call %s", report.CallRowID)
	}
	return eris.Wrapf(err, "sqlite: insert report for call %s", report.CallRowID)
}

func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.ReportRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM report_cards WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?`,
		filter.Since.UTC(), defaultLimit(filter.Limit, 1000),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ReportRecord
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) LoadDefaultCriteria(ctx context.Context) ([]model.Criterion, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT criteria FROM audit_templates WHERE is_default = 1 ORDER BY updated_at DESC LIMIT 1`,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load default criteria")
	}
	var criteria []model.Criterion
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal criteria")
	}
	return criteria, nil
}

// SaveTemplate stores an audit template. Marking it default clears the
// flag on every other template.
func (s *SQLiteStore) SaveTemplate(ctx context.Context, name string, criteria []model.Criterion, isDefault bool) error {
	raw, err := json.Marshal(criteria)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal criteria")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: save template begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if isDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE audit_templates SET is_default = 0`); err != nil {
			return eris.Wrap(err, "sqlite: clear default template")
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_templates (id, name, criteria, is_default) VALUES (?, ?, ?, ?)`,
		newID(), name, string(raw), isDefault,
	); err != nil {
		return eris.Wrap(err, "sqlite: insert template")
	}
	return eris.Wrap(tx.Commit(), "sqlite: save template commit")
}

func (s *SQLiteStore) StartRun(ctx context.Context, kind string) (*model.SyncRun, error) {
	run := &model.SyncRun{
		ID:        newID(),
		Kind:      kind,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Kind, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run summary")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, summary = ?, completed_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(summaryJSON), time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "sqlite: complete run %s", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "sqlite: fail run %s", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, since time.Time, limit int) ([]model.SyncRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, status, summary, error, started_at, completed_at FROM sync_runs
		 WHERE started_at >= ? ORDER BY started_at DESC LIMIT ?`,
		since.UTC(), defaultLimit(limit, 100),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.SyncRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) LogCallEvent(ctx context.Context, event model.CallEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_sync_logs (id, run_id, call_id, stage, status, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		newID(), sqlString(event.RunID), event.CallID, event.Stage, string(event.Status),
		sqlString(event.Message), event.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: log call event")
}

// CallEvents returns the sync log entries for one external call id.
func (s *SQLiteStore) CallEvents(ctx context.Context, callID string) ([]model.CallEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, call_id, stage, status, message, created_at FROM call_sync_logs
		 WHERE call_id = ? ORDER BY created_at ASC`,
		callID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: call events")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CallEvent
	for rows.Next() {
		var e model.CallEvent
		var runID, msg *string
		var status string
		if err := rows.Scan(&runID, &e.CallID, &e.Stage, &status, &msg, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan call event")
		}
		e.RunID = derefString(runID)
		e.Message = derefString(msg)
		e.Status = model.CallEventStatus(status)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: call events iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	st := &model.Stats{CallsByStatus: make(map[model.CallStatus]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM calls GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats calls")
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "sqlite: scan stats")
		}
		st.CallsByStatus[model.CallStatus(status)] = n
	}
	rows.Close() //nolint:errcheck
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats calls iterate")
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT count(*) FROM profiles),
		        (SELECT count(*) FROM report_cards),
		        (SELECT count(*) FROM audit_cache),
		        (SELECT COALESCE(sum(hit_count), 0) FROM audit_cache)`,
	).Scan(&st.Agents, &st.Reports, &st.CacheEntries, &st.CacheHits)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats totals")
	}
	return st, nil
}
