package pipeline

import (
	"context"
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/braxsimmons/Cliopa/internal/model"
)

//go:embed criteria.yaml
var fallbackCriteriaYAML []byte

// Criteria sources reported by LoadCriteria.
const (
	CriteriaFromFile     = "file"
	CriteriaFromTemplate = "template"
	CriteriaFromBuiltin  = "builtin"
)

// TemplateLoader reads the default audit template.
type TemplateLoader interface {
	LoadDefaultCriteria(ctx context.Context) ([]model.Criterion, error)
}

// LoadCriteria returns the rubric for one run: the criteria file when set,
// else the default audit template, else the built-in set. A configured
// file that cannot be read is an error; a failed template lookup falls
// back to the built-in set.
func LoadCriteria(ctx context.Context, path string, templates TemplateLoader) ([]model.Criterion, string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", eris.Wrapf(err, "pipeline: read criteria file %s", path)
		}
		criteria, err := ParseCriteria(data)
		if err != nil {
			return nil, "", eris.Wrapf(err, "pipeline: criteria file %s", path)
		}
		return criteria, CriteriaFromFile, nil
	}

	if templates != nil {
		criteria, err := templates.LoadDefaultCriteria(ctx)
		switch {
		case err != nil:
			zap.L().Warn("pipeline: default audit template unavailable, using built-in criteria", zap.Error(err))
		case len(criteria) > 0:
			return criteria, CriteriaFromTemplate, nil
		}
	}

	criteria, err := BuiltinCriteria()
	if err != nil {
		return nil, "", err
	}
	return criteria, CriteriaFromBuiltin, nil
}

// BuiltinCriteria returns the embedded rubric.
func BuiltinCriteria() ([]model.Criterion, error) {
	return ParseCriteria(fallbackCriteriaYAML)
}

// ParseCriteria decodes a YAML list of criteria. Every criterion needs a
// unique id and a name.
func ParseCriteria(data []byte) ([]model.Criterion, error) {
	var criteria []model.Criterion
	if err := yaml.Unmarshal(data, &criteria); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse criteria")
	}
	if len(criteria) == 0 {
		return nil, eris.New("pipeline: criteria list is empty")
	}

	seen := make(map[string]bool, len(criteria))
	for i := range criteria {
		c := &criteria[i]
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		if c.ID == "" || c.Name == "" {
			return nil, eris.Errorf("pipeline: criterion %d needs an id and a name", i+1)
		}
		if seen[c.ID] {
			return nil, eris.Errorf("pipeline: duplicate criterion id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return criteria, nil
}
