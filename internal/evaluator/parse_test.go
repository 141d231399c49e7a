package evaluator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braxsimmons/Cliopa/internal/model"
)

const validOutput = `{
  "overall_score": 84,
  "communication_score": 90,
  "compliance_score": 70,
  "accuracy_score": 88,
  "tone_score": 92,
  "empathy_score": 80,
  "resolution_score": 85,
  "summary": "Agent handled the billing dispute well.",
  "strengths": ["Warm greeting", "Clear explanation"],
  "areas_for_improvement": ["Verify identity earlier"],
  "recommendations": ["Ask for the account PIN up front"],
  "criteria": [
    {"id": "QQ", "result": "PASS", "score": 90, "explanation": "Asked all qualifying questions", "recommendation": ""},
    {"id": "VCI", "result": "PARTIAL", "score": 60, "explanation": "Verified name only", "recommendation": "Confirm address"}
  ]
}`

func TestParse_Valid(t *testing.T) {
	ev, err := Parse(validOutput)
	require.NoError(t, err)

	assert.InDelta(t, 84, ev.OverallScore, 0.001)
	require.NotNil(t, ev.ComplianceScore)
	assert.InDelta(t, 70, *ev.ComplianceScore, 0.001)
	assert.Equal(t, "Agent handled the billing dispute well.", ev.Summary)
	assert.Equal(t, []string{"Warm greeting", "Clear explanation"}, ev.Strengths)
	require.Len(t, ev.Criteria, 2)
	assert.Equal(t, model.VerdictPartial, ev.Criteria[1].Result)
	assert.Equal(t, "Confirm address", ev.Criteria[1].Recommendation)
}

func TestParse_CodeFence(t *testing.T) {
	ev, err := Parse("```json\n" + validOutput + "\n```")
	require.NoError(t, err)
	assert.InDelta(t, 84, ev.OverallScore, 0.001)

	ev, err = Parse("```\n{\"overall_score\": 50}\n```")
	require.NoError(t, err)
	assert.InDelta(t, 50, ev.OverallScore, 0.001)
}

func TestParse_SurroundingProse(t *testing.T) {
	ev, err := Parse("Here is the audit:\n{\"overall_score\": 61, \"summary\": \"ok\"}\nThanks!")
	require.NoError(t, err)
	assert.InDelta(t, 61, ev.OverallScore, 0.001)
	assert.Nil(t, ev.ToneScore)
}

func TestParse_NullSubScores(t *testing.T) {
	ev, err := Parse(`{"overall_score": 40, "tone_score": null, "strengths": null}`)
	require.NoError(t, err)
	assert.Nil(t, ev.ToneScore)
	assert.Empty(t, ev.Strengths)
}

func TestParse_NormalizesVerdictCase(t *testing.T) {
	ev, err := Parse(`{"overall_score": 70, "criteria": [{"id": "QQ", "result": "pass"}, {"id": "VCI", "result": "na"}]}`)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictPass, ev.Criteria[0].Result)
	assert.Equal(t, model.VerdictNotApplicable, ev.Criteria[1].Result)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "I could not evaluate this call."},
		{"truncated", `{"overall_score": 80, "summary": "cut off`},
		{"missing overall", `{"summary": "no score"}`},
		{"overall out of range", `{"overall_score": 140}`},
		{"overall wrong type", `{"overall_score": "high"}`},
		{"sub-score out of range", `{"overall_score": 80, "tone_score": -5}`},
		{"bad verdict", `{"overall_score": 80, "criteria": [{"id": "QQ", "result": "MAYBE"}]}`},
		{"criterion without id", `{"overall_score": 80, "criteria": [{"result": "PASS"}]}`},
		{"list of numbers", `{"overall_score": 80, "strengths": [1, 2]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestParse_DerivesListsFromCriteria(t *testing.T) {
	ev, err := Parse(`{
	  "overall_score": 55,
	  "criteria": [
	    {"id": "QQ", "result": "PASS", "explanation": "Asked QQs"},
	    {"id": "VCI", "result": "FAIL", "explanation": "Skipped verification", "recommendation": "Verify DOB"},
	    {"id": "WHY_SMILE", "result": "PARTIAL", "explanation": "Flat tone"},
	    {"id": "WHERE_RESOLUTION", "result": "N/A", "explanation": "No issue raised", "recommendation": "n/a"}
	  ]
	}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Asked QQs"}, ev.Strengths)
	assert.Equal(t, []string{"Skipped verification", "Flat tone"}, ev.AreasForImprovement)
	assert.Equal(t, []string{"Verify DOB"}, ev.Recommendations)
}

func TestParse_CapsLists(t *testing.T) {
	ev, err := Parse(`{"overall_score": 90, "strengths": ["a","b","c","d","e","f","g"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ev.Strengths)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("  {\"a\":1}  "))
	assert.Equal(t, "no braces", stripFence("no braces"))
}
