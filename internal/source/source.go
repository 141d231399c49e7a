// Package source extracts call candidates from the Five9 recording log
// kept on SQL Server.
package source

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/braxsimmons/Cliopa/internal/config"
	"github.com/braxsimmons/Cliopa/internal/model"
)

// Source yields call candidates uploaded at or after a point in time.
type Source interface {
	Extract(ctx context.Context, since time.Time) ([]model.CallCandidate, error)
	Close() error
}

// Options tunes the extraction query and URL derivation.
type Options struct {
	NASBaseURL           string
	MinDurationSecs      int
	ExcludedDispositions []string
	QueryTimeout         time.Duration
}

// OptionsFromConfig maps the source config section to Options.
func OptionsFromConfig(cfg config.SourceConfig) Options {
	return Options{
		NASBaseURL:           cfg.NASBaseURL,
		MinDurationSecs:      cfg.MinDurationSecs,
		ExcludedDispositions: cfg.ExcludedDispositions,
		QueryTimeout:         time.Duration(cfg.QueryTimeoutSecs) * time.Second,
	}
}

const extractQuery = `SELECT recording_id, call_id, upload_timestamp, call_timestamp, length_seconds,
	call_type, disposition, campaign, number1, email, first_name, last_name, inf_cust_id,
	agent_name, agent_email, agent_group, server_name, file_path, file_name
FROM fivenine.call_recording_logs
WHERE upload_timestamp >= @since
	AND deleted = 0
	AND agent_email IS NOT NULL
	AND agent_email <> ''
	AND length_seconds >= @min_duration
ORDER BY upload_timestamp DESC`

// SQLSource reads the recording log through database/sql.
type SQLSource struct {
	db   *sql.DB
	opts Options
}

// NewMSSQL opens the recording log on SQL Server. The connection is
// verified lazily on the first Extract.
func NewMSSQL(dsn string, opts Options) (*SQLSource, error) {
	if dsn == "" {
		return nil, eris.New("source: dsn is required")
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "source: open sqlserver")
	}
	return NewFromDB(db, opts), nil
}

// NewFromDB wraps an already opened handle.
func NewFromDB(db *sql.DB, opts Options) *SQLSource {
	return &SQLSource{db: db, opts: opts}
}

// Close releases the underlying handle.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// Extract runs the recording log query, drops excluded dispositions and
// derives the NAS URLs of every remaining row.
func (s *SQLSource) Extract(ctx context.Context, since time.Time) ([]model.CallCandidate, error) {
	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(ctx, extractQuery,
		sql.Named("since", since.UTC()),
		sql.Named("min_duration", s.opts.MinDurationSecs),
	)
	if err != nil {
		return nil, eris.Wrap(err, "source: query recording log")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CallCandidate
	for rows.Next() {
		var r record
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, eris.Wrap(err, "source: scan recording row")
		}
		out = append(out, r.candidate())
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: iterate recording rows")
	}

	kept, excluded := FilterDispositions(out, s.opts.ExcludedDispositions)
	for i := range kept {
		DeriveURLs(&kept[i], s.opts.NASBaseURL)
	}

	zap.L().Info("source: extracted calls",
		zap.Time("since", since),
		zap.Int("rows", len(out)),
		zap.Int("excluded_dispositions", excluded),
		zap.Int("candidates", len(kept)),
	)
	return kept, nil
}

// record mirrors one row of the recording log. Every column is nullable
// upstream.
type record struct {
	recordingID sql.NullString
	callID      sql.NullString
	uploadedAt  sql.NullTime
	calledAt    sql.NullTime
	length      sql.NullInt64
	callType    sql.NullString
	disposition sql.NullString
	campaign    sql.NullString
	phone       sql.NullString
	email       sql.NullString
	firstName   sql.NullString
	lastName    sql.NullString
	customerID  sql.NullString
	agentName   sql.NullString
	agentEmail  sql.NullString
	agentGroup  sql.NullString
	serverName  sql.NullString
	filePath    sql.NullString
	fileName    sql.NullString
}

func (r *record) dest() []any {
	return []any{
		&r.recordingID, &r.callID, &r.uploadedAt, &r.calledAt, &r.length,
		&r.callType, &r.disposition, &r.campaign, &r.phone, &r.email, &r.firstName, &r.lastName, &r.customerID,
		&r.agentName, &r.agentEmail, &r.agentGroup, &r.serverName, &r.filePath, &r.fileName,
	}
}

func (r *record) candidate() model.CallCandidate {
	str := func(ns sql.NullString) string {
		if !ns.Valid {
			return ""
		}
		return strings.TrimSpace(ns.String)
	}
	c := model.CallCandidate{
		RecordingID:       str(r.recordingID),
		CallID:            str(r.callID),
		AgentEmail:        str(r.agentEmail),
		AgentName:         str(r.agentName),
		AgentGroup:        str(r.agentGroup),
		CallTypeRaw:       str(r.callType),
		Disposition:       str(r.disposition),
		Campaign:          str(r.campaign),
		CustomerPhone:     str(r.phone),
		CustomerEmail:     str(r.email),
		CustomerFirstName: str(r.firstName),
		CustomerLastName:  str(r.lastName),
		CustomerID:        str(r.customerID),
		SourceSystem:      str(r.serverName),
		FilePath:          str(r.filePath),
		FileName:          str(r.fileName),
	}
	if r.uploadedAt.Valid {
		c.UploadedAt = r.uploadedAt.Time
	}
	if r.calledAt.Valid {
		c.CallStartedAt = r.calledAt.Time
	}
	if r.length.Valid {
		c.DurationSeconds = int(r.length.Int64)
	}
	return c
}
