package evaluator

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/braxsimmons/Cliopa/internal/model"
)

// MaxListItems caps strengths, areas for improvement and recommendations.
const MaxListItems = 5

//go:embed schema/evaluation.schema.json
var evaluationSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(evaluationSchema))
	})
	return schema, schemaErr
}

// Parse turns raw provider output into an Evaluation. Code fences and
// prose around the JSON object are tolerated; anything that fails the
// schema is ErrMalformed.
func Parse(raw string) (*model.Evaluation, error) {
	body := stripFence(raw)
	if body == "" {
		return nil, eris.Wrap(ErrMalformed, "empty output")
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "decode: %v", err)
	}
	normalizeVerdicts(doc)

	s, err := compiledSchema()
	if err != nil {
		return nil, eris.Wrap(err, "evaluator: compile schema")
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, eris.Wrapf(ErrMalformed, "validate: %v", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return nil, eris.Wrapf(ErrMalformed, "schema: %s", strings.Join(msgs, "; "))
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "evaluator: re-encode")
	}
	var ev model.Evaluation
	if err := json.Unmarshal(normalized, &ev); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "decode evaluation: %v", err)
	}
	fillLists(&ev)
	return &ev, nil
}

// stripFence removes a surrounding markdown code fence and any text
// outside the outermost JSON object.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func normalizeVerdicts(doc map[string]any) {
	items, ok := doc["criteria"].([]any)
	if !ok {
		return
	}
	for _, it := range items {
		c, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := c["result"].(string); ok {
			v = strings.ToUpper(strings.TrimSpace(v))
			if v == "NA" {
				v = string(model.VerdictNotApplicable)
			}
			c["result"] = v
		}
	}
}

// fillLists derives missing list fields from the per-criterion results
// and caps every list at MaxListItems.
func fillLists(ev *model.Evaluation) {
	if len(ev.Strengths) == 0 {
		for _, c := range ev.Criteria {
			if c.Result == model.VerdictPass && c.Explanation != "" {
				ev.Strengths = append(ev.Strengths, c.Explanation)
			}
		}
	}
	if len(ev.AreasForImprovement) == 0 {
		for _, c := range ev.Criteria {
			if needsWork(c) && c.Explanation != "" {
				ev.AreasForImprovement = append(ev.AreasForImprovement, c.Explanation)
			}
		}
	}
	if len(ev.Recommendations) == 0 {
		for _, c := range ev.Criteria {
			if needsWork(c) && c.Recommendation != "" {
				ev.Recommendations = append(ev.Recommendations, c.Recommendation)
			}
		}
	}
	ev.Strengths = capList(ev.Strengths)
	ev.AreasForImprovement = capList(ev.AreasForImprovement)
	ev.Recommendations = capList(ev.Recommendations)
}

func needsWork(c model.CriterionResult) bool {
	return c.Result == model.VerdictPartial || c.Result == model.VerdictFail
}

func capList(v []string) []string {
	if len(v) > MaxListItems {
		return v[:MaxListItems]
	}
	return v
}
