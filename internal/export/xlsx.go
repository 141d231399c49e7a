// Package export writes report cards to an Excel workbook.
package export

import (
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/braxsimmons/Cliopa/internal/model"
)

// Sheet names in the exported workbook.
const (
	ReportsSheet  = "Reports"
	CriteriaSheet = "Criteria"
)

var reportHeader = []string{
	"Report ID", "Call", "Agent Email", "Agent", "Team",
	"Overall", "Communication", "Compliance", "Accuracy", "Tone", "Empathy", "Resolution",
	"Provider", "Model", "From Cache", "Created At",
	"Feedback", "Strengths", "Areas For Improvement", "Recommendations",
}

var criteriaHeader = []string{"Report ID", "Call", "Criterion", "Result", "Score", "Explanation", "Recommendation"}

// Workbook builds report workbooks. Agents are looked up by user id to
// fill the agent columns.
type Workbook struct {
	agents map[string]model.AgentIdentity
}

// NewWorkbook indexes agents by id.
func NewWorkbook(agents []model.AgentIdentity) *Workbook {
	byID := make(map[string]model.AgentIdentity, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}
	return &Workbook{agents: byID}
}

// Build renders reports into a new workbook.
func (w *Workbook) Build(reports []model.ReportRecord) (*xlsx.File, error) {
	f := xlsx.NewFile()
	rs, err := f.AddSheet(ReportsSheet)
	if err != nil {
		return nil, eris.Wrap(err, "export: add reports sheet")
	}
	cs, err := f.AddSheet(CriteriaSheet)
	if err != nil {
		return nil, eris.Wrap(err, "export: add criteria sheet")
	}

	addStrings(rs, reportHeader)
	addStrings(cs, criteriaHeader)

	for _, r := range reports {
		w.addReport(rs, r)
		for _, c := range r.CriteriaResults {
			row := cs.AddRow()
			row.AddCell().SetString(r.ID)
			row.AddCell().SetString(r.SourceFile)
			row.AddCell().SetString(c.ID)
			row.AddCell().SetString(string(c.Result))
			row.AddCell().SetFloat(c.Score)
			row.AddCell().SetString(c.Explanation)
			row.AddCell().SetString(c.Recommendation)
		}
	}
	return f, nil
}

func (w *Workbook) addReport(sheet *xlsx.Sheet, r model.ReportRecord) {
	agent := w.agents[r.UserID]
	row := sheet.AddRow()
	row.AddCell().SetString(r.ID)
	row.AddCell().SetString(r.SourceFile)
	row.AddCell().SetString(agent.Email)
	row.AddCell().SetString(strings.TrimSpace(agent.FirstName + " " + agent.LastName))
	row.AddCell().SetString(agent.Team)
	row.AddCell().SetFloat(r.OverallScore)
	for _, s := range []*float64{
		r.CommunicationScore, r.ComplianceScore, r.AccuracyScore,
		r.ToneScore, r.EmpathyScore, r.ResolutionScore,
	} {
		cell := row.AddCell()
		if s != nil {
			cell.SetFloat(*s)
		}
	}
	row.AddCell().SetString(r.AIProvider)
	row.AddCell().SetString(r.AIModel)
	row.AddCell().SetBool(r.FromCache)
	row.AddCell().SetString(r.CreatedAt.UTC().Format(time.RFC3339))
	row.AddCell().SetString(r.Feedback)
	row.AddCell().SetString(strings.Join(r.Strengths, "\n"))
	row.AddCell().SetString(strings.Join(r.AreasForImprovement, "\n"))
	row.AddCell().SetString(strings.Join(r.Recommendations, "\n"))
}

// Save writes the workbook for reports to path.
func (w *Workbook) Save(path string, reports []model.ReportRecord) error {
	f, err := w.Build(reports)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// Write streams the workbook for reports to out.
func (w *Workbook) Write(out io.Writer, reports []model.ReportRecord) error {
	f, err := w.Build(reports)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(out), "export: write workbook")
}

func addStrings(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
