package store

import (
	"encoding/json"
	"time"

	"github.com/braxsimmons/Cliopa/internal/model"
)

// scannable is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func scanAgent(row scannable) (*model.AgentIdentity, error) {
	var a model.AgentIdentity
	var team *string
	if err := row.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &team, &a.Role, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Team = derefString(team)
	return &a, nil
}

func callArgs(c *model.PersistedCall) []any {
	return []any{
		c.ID, c.UserID, c.CallID, nullString(c.CampaignName), string(c.CallType), nullTime(c.CallStartTime),
		c.CallDurationSeconds, nullString(c.RecordingURL), nullString(c.TranscriptURL), nullString(c.TranscriptText),
		nullString(c.SummaryURL), nullString(c.SummaryText), nullString(c.CustomerPhone), nullString(c.CustomerName),
		nullString(c.Disposition), string(c.Status), c.CreatedAt, c.UpdatedAt,
	}
}

func scanCall(row scannable) (*model.PersistedCall, error) {
	var c model.PersistedCall
	var campaign, recording, transcriptURL, transcript, summaryURL, summary, phone, customer, disposition *string
	var start *time.Time
	var callType, status string
	err := row.Scan(&c.ID, &c.UserID, &c.CallID, &campaign, &callType, &start, &c.CallDurationSeconds,
		&recording, &transcriptURL, &transcript, &summaryURL, &summary,
		&phone, &customer, &disposition, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.CampaignName = derefString(campaign)
	c.CallType = model.CallType(callType)
	if start != nil {
		c.CallStartTime = *start
	}
	c.RecordingURL = derefString(recording)
	c.TranscriptURL = derefString(transcriptURL)
	c.TranscriptText = derefString(transcript)
	c.SummaryURL = derefString(summaryURL)
	c.SummaryText = derefString(summary)
	c.CustomerPhone = derefString(phone)
	c.CustomerName = derefString(customer)
	c.Disposition = derefString(disposition)
	c.Status = model.CallStatus(status)
	return &c, nil
}

func jsonList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func reportArgs(r *model.ReportRecord) ([]any, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	strengths, err := jsonList(r.Strengths)
	if err != nil {
		return nil, err
	}
	areas, err := jsonList(r.AreasForImprovement)
	if err != nil {
		return nil, err
	}
	recs, err := jsonList(r.Recommendations)
	if err != nil {
		return nil, err
	}
	criteria, err := jsonList(r.CriteriaResults)
	if err != nil {
		return nil, err
	}
	return []any{
		r.ID, r.UserID, r.CallRowID, r.SourceFile, r.SourceType, r.OverallScore,
		r.CommunicationScore, r.ComplianceScore, r.AccuracyScore, r.ToneScore, r.EmpathyScore, r.ResolutionScore,
		nullString(r.Feedback), strengths, areas, recs, criteria,
		r.AIProvider, r.AIModel, r.FromCache, r.CreatedAt,
	}, nil
}

func scanReport(row scannable) (*model.ReportRecord, error) {
	var r model.ReportRecord
	var feedback *string
	var strengths, areas, recs, criteria []byte
	err := row.Scan(&r.ID, &r.UserID, &r.CallRowID, &r.SourceFile, &r.SourceType, &r.OverallScore,
		&r.CommunicationScore, &r.ComplianceScore, &r.AccuracyScore, &r.ToneScore, &r.EmpathyScore, &r.ResolutionScore,
		&feedback, &strengths, &areas, &recs, &criteria,
		&r.AIProvider, &r.AIModel, &r.FromCache, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Feedback = derefString(feedback)
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{strengths, &r.Strengths},
		{areas, &r.AreasForImprovement},
		{recs, &r.Recommendations},
		{criteria, &r.CriteriaResults},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func scanRun(row scannable) (*model.SyncRun, error) {
	var r model.SyncRun
	var status string
	var summary []byte
	var errMsg *string
	if err := row.Scan(&r.ID, &r.Kind, &status, &summary, &errMsg, &r.StartedAt, &r.CompletedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	r.Error = derefString(errMsg)
	if len(summary) > 0 {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(summary, r.Summary); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
