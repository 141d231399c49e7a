package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/braxsimmons/Cliopa/internal/db"
	"github.com/braxsimmons/Cliopa/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS agent_accounts (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
	id          TEXT PRIMARY KEY REFERENCES agent_accounts(id),
	email       TEXT NOT NULL,
	first_name  TEXT NOT NULL DEFAULT '',
	last_name   TEXT NOT NULL DEFAULT '',
	role        TEXT NOT NULL DEFAULT 'agent',
	team        TEXT,
	hourly_rate NUMERIC(10,2) NOT NULL DEFAULT 15.00,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_agent_accounts_email ON agent_accounts (lower(email));
CREATE UNIQUE INDEX IF NOT EXISTS uq_profiles_email ON profiles (lower(email));

CREATE TABLE IF NOT EXISTS calls (
	id                    TEXT PRIMARY KEY,
	user_id               TEXT NOT NULL REFERENCES profiles(id),
	call_id               TEXT NOT NULL UNIQUE,
	campaign_name         TEXT,
	call_type             TEXT NOT NULL DEFAULT 'inbound',
	call_start_time       TIMESTAMPTZ,
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
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_calls_status ON calls(status);
CREATE INDEX IF NOT EXISTS idx_calls_user_id ON calls(user_id);

CREATE TABLE IF NOT EXISTS audit_cache (
	transcript_hash TEXT PRIMARY KEY,
	audit_result    JSONB NOT NULL,
	ai_provider     TEXT NOT NULL,
	ai_model        TEXT NOT NULL,
	hit_count       INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS report_cards (
	id                    TEXT PRIMARY KEY,
	user_id               TEXT NOT NULL REFERENCES profiles(id),
	call_id               TEXT NOT NULL UNIQUE REFERENCES calls(id),
	source_file           TEXT NOT NULL,
	source_type           TEXT NOT NULL DEFAULT 'call',
	overall_score         NUMERIC(5,2) NOT NULL,
	communication_score   NUMERIC(5,2),
	compliance_score      NUMERIC(5,2),
	accuracy_score        NUMERIC(5,2),
	tone_score            NUMERIC(5,2),
	empathy_score         NUMERIC(5,2),
	resolution_score      NUMERIC(5,2),
	feedback              TEXT,
	strengths             JSONB NOT NULL DEFAULT '[]',
	areas_for_improvement JSONB NOT NULL DEFAULT '[]',
	recommendations       JSONB NOT NULL DEFAULT '[]',
	criteria_results      JSONB NOT NULL DEFAULT '[]',
	ai_provider           TEXT NOT NULL,
	ai_model              TEXT NOT NULL,
	from_cache            BOOLEAN NOT NULL DEFAULT false,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_report_cards_created_at ON report_cards(created_at);

CREATE TABLE IF NOT EXISTS audit_templates (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	criteria   JSONB NOT NULL,
	is_default BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	summary      JSONB,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);

CREATE TABLE IF NOT EXISTS call_sync_logs (
	id         TEXT PRIMARY KEY,
	run_id     TEXT,
	call_id    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_call_sync_logs_call_id ON call_sync_logs(call_id);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ExistingCallIDs(ctx context.Context, callIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	for _, chunk := range db.Chunk(callIDs, db.MaxKeysPerQuery) {
		rows, err := s.pool.Query(ctx, `SELECT call_id FROM calls WHERE call_id = ANY($1)`, chunk)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: existing call ids")
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, eris.Wrap(err, "postgres: scan call id")
			}
			existing[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, eris.Wrap(err, "postgres: existing call ids iterate")
		}
	}
	return existing, nil
}

const agentColumns = `id, email, first_name, last_name, team, role, created_at`

func (s *PostgresStore) FindAgentsByEmail(ctx context.Context, emails []string) (map[string]model.AgentIdentity, error) {
	found := make(map[string]model.AgentIdentity)
	for _, chunk := range db.Chunk(emails, db.MaxKeysPerQuery) {
		rows, err := s.pool.Query(ctx, `SELECT `+agentColumns+` FROM profiles WHERE lower(email) = ANY($1)`, chunk)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: find agents")
		}
		agents, err := collectAgents(rows)
		if err != nil {
			return nil, err
		}
		for _, a := range agents {
			found[model.NormalizeEmail(a.Email)] = a
		}
	}
	return found, nil
}

func (s *PostgresStore) ListAgents(ctx context.Context) ([]model.AgentIdentity, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+agentColumns+` FROM profiles ORDER BY email`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list agents")
	}
	return collectAgents(rows)
}

func collectAgents(rows pgx.Rows) ([]model.AgentIdentity, error) {
	defer rows.Close()
	var out []model.AgentIdentity
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan agent")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: agents iterate")
}

// CreateAgent inserts the account and profile for a new identity. A
// concurrent creator of the same email wins; its row is returned instead.
func (s *PostgresStore) CreateAgent(ctx context.Context, agent model.NewAgent) (*model.AgentIdentity, error) {
	email := model.NormalizeEmail(agent.Email)
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create agent begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var accountID string
	err = tx.QueryRow(ctx,
		`INSERT INTO agent_accounts (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT ((lower(email))) DO NOTHING RETURNING id`,
		newID(), email, agent.PasswordHash, now,
	).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx, `SELECT id FROM agent_accounts WHERE lower(email) = $1`, email).Scan(&accountID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create agent account %s", email)
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO profiles (id, email, first_name, last_name, role, team, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 'agent', $5, $6, $6)
		 ON CONFLICT ((lower(email))) DO UPDATE SET updated_at = profiles.updated_at
		 RETURNING `+agentColumns,
		accountID, email, agent.FirstName, agent.LastName, nullString(agent.Team), now,
	)
	created, err := scanAgent(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create agent profile %s", email)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: create agent commit")
	}
	return created, nil
}

const callColumns = `id, user_id, call_id, campaign_name, call_type, call_start_time, call_duration_seconds,
	recording_url, transcript_url, transcript_text, summary_url, summary_text,
	customer_phone, customer_name, disposition, status, created_at, updated_at`

func (s *PostgresStore) InsertCall(ctx context.Context, call *model.PersistedCall) error {
	if call.ID == "" {
		call.ID = newID()
	}
	now := time.Now().UTC()
	call.CreatedAt, call.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO calls (`+callColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		callArgs(call)...,
	)
	if db.IsUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "postgres: insert call %s", call.CallID)
	}
	return eris.Wrapf(err, "postgres: insert call %s", call.CallID)
}

// UpdateCallStatus moves a call forward. Audited calls are never updated
// again; ErrNotFound is returned when no eligible row matched.
func (s *PostgresStore) UpdateCallStatus(ctx context.Context, callRowID string, status model.CallStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE calls SET status = $1, updated_at = $2 WHERE id = $3 AND status <> 'audited'`,
		string(status), time.Now().UTC(), callRowID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update call status %s", callRowID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update call status %s", callRowID)
	}
	return nil
}

func (s *PostgresStore) ListUnauditedCalls(ctx context.Context, limit int) ([]model.PersistedCall, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+callColumns+` FROM calls
		 WHERE status IN ('pending', 'transcribed')
		   AND transcript_text IS NOT NULL AND transcript_text <> ''
		   AND NOT EXISTS (SELECT 1 FROM report_cards r WHERE r.call_id = calls.id)
		 ORDER BY created_at ASC LIMIT $1`,
		defaultLimit(limit, 25),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unaudited calls")
	}
	defer rows.Close()

	var out []model.PersistedCall
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan call")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list unaudited calls iterate")
}

func (s *PostgresStore) GetCacheEntry(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	var e model.CacheEntry
	var resultJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT transcript_hash, audit_result, ai_provider, ai_model, hit_count, created_at, updated_at
		 FROM audit_cache WHERE transcript_hash = $1`,
		fingerprint,
	).Scan(&e.Fingerprint, &resultJSON, &e.Provider, &e.Model, &e.HitCount, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cache entry")
	}
	if err := json.Unmarshal(resultJSON, &e.Result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cache entry")
	}
	return &e, nil
}

// UpsertCacheEntry creates or overwrites the entry for a fingerprint.
func (s *PostgresStore) UpsertCacheEntry(ctx context.Context, entry model.CacheEntry) error {
	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cache entry")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_cache (transcript_hash, audit_result, ai_provider, ai_model, hit_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $5)
		 ON CONFLICT (transcript_hash) DO UPDATE SET
		   audit_result = EXCLUDED.audit_result,
		   ai_provider = EXCLUDED.ai_provider,
		   ai_model = EXCLUDED.ai_model,
		   updated_at = EXCLUDED.updated_at`,
		entry.Fingerprint, resultJSON, entry.Provider, entry.Model, now,
	)
	return eris.Wrap(err, "postgres: upsert cache entry")
}

func (s *PostgresStore) IncrementCacheHit(ctx context.Context, fingerprint string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE audit_cache SET hit_count = hit_count + 1, updated_at = $2 WHERE transcript_hash = $1`,
		fingerprint, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: increment cache hit")
}

const reportColumns = `id, user_id, call_id, source_file, source_type, overall_score,
	communication_score, compliance_score, accuracy_score, tone_score, empathy_score, resolution_score,
	feedback, strengths, areas_for_improvement, recommendations, criteria_results,
	ai_provider, ai_model, from_cache, created_at`

func (s *PostgresStore) InsertReport(ctx context.Context, report *model.ReportRecord) error {
	args, err := reportArgs(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO report_cards (`+reportColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		args...,
	)
	if db.IsUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "postgres: insert report for call %s", report.CallRowID)
	}
	return eris.Wrapf(err, "postgres: insert report for call %s", report.CallRowID)
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.ReportRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM report_cards WHERE created_at >= $1 ORDER BY created_at DESC LIMIT $2`,
		filter.Since.UTC(), defaultLimit(filter.Limit, 1000),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var out []model.ReportRecord
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list reports iterate")
}

// LoadDefaultCriteria returns the criteria of the default audit template,
// or nil when none is configured.
func (s *PostgresStore) LoadDefaultCriteria(ctx context.Context) ([]model.Criterion, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT criteria FROM audit_templates WHERE is_default = true ORDER BY updated_at DESC LIMIT 1`,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load default criteria")
	}
	var criteria []model.Criterion
	if err := json.Unmarshal(raw, &criteria); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal criteria")
	}
	return criteria, nil
}

func (s *PostgresStore) StartRun(ctx context.Context, kind string) (*model.SyncRun, error) {
	run := &model.SyncRun{
		ID:        newID(),
		Kind:      kind,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_runs (id, kind, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Kind, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run summary")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE sync_runs SET status = $1, summary = $2, completed_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), summaryJSON, time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "postgres: complete run %s", runID)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE sync_runs SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "postgres: fail run %s", runID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, since time.Time, limit int) ([]model.SyncRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, status, summary, error, started_at, completed_at FROM sync_runs
		 WHERE started_at >= $1 ORDER BY started_at DESC LIMIT $2`,
		since.UTC(), defaultLimit(limit, 100),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) LogCallEvent(ctx context.Context, event model.CallEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO call_sync_logs (id, run_id, call_id, stage, status, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		newID(), nullString(event.RunID), event.CallID, event.Stage, string(event.Status),
		nullString(event.Message), event.CreatedAt,
	)
	return eris.Wrap(err, "postgres: log call event")
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	st := &model.Stats{CallsByStatus: make(map[model.CallStatus]int)}

	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM calls GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats calls")
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan stats")
		}
		st.CallsByStatus[model.CallStatus(status)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: stats calls iterate")
	}

	err = s.pool.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM profiles),
		        (SELECT count(*) FROM report_cards),
		        (SELECT count(*) FROM audit_cache),
		        (SELECT COALESCE(sum(hit_count), 0) FROM audit_cache)`,
	).Scan(&st.Agents, &st.Reports, &st.CacheEntries, &st.CacheHits)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats totals")
	}
	return st, nil
}
