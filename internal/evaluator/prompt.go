package evaluator

import (
	"fmt"
	"strings"

	"github.com/braxsimmons/Cliopa/internal/model"
)

// Prompt is the rendered request: the rubric goes in the system
// instruction, the transcript excerpt in the user turn.
type Prompt struct {
	System string
	User   string
}

const auditorPreamble = "You are an expert call quality auditor. Analyze the call transcript provided by the user."

const responseShape = `Return ONLY valid JSON with this structure:
{
  "overall_score": 0-100,
  "communication_score": 0-100,
  "compliance_score": 0-100,
  "accuracy_score": 0-100,
  "tone_score": 0-100,
  "empathy_score": 0-100,
  "resolution_score": 0-100,
  "summary": "2-3 sentence assessment",
  "strengths": ["strength1", "strength2"],
  "areas_for_improvement": ["area1", "area2"],
  "recommendations": ["rec1", "rec2"],
  "criteria": [
    {"id": "CRITERION_ID", "result": "PASS|PARTIAL|FAIL|N/A", "score": 0-100, "explanation": "...", "recommendation": "..."}
  ]
}`

// BuildPrompt renders the rubric and a transcript excerpt of at most
// maxChars characters.
func BuildPrompt(criteria []model.Criterion, transcript string, maxChars int) Prompt {
	var b strings.Builder
	b.WriteString(auditorPreamble)
	b.WriteString("\n\nCRITERIA TO EVALUATE:\n")
	for _, c := range criteria {
		fmt.Fprintf(&b, "- %s: %s - %s\n", c.ID, c.Name, c.Description)
	}
	b.WriteString("\n")
	b.WriteString(responseShape)

	return Prompt{
		System: b.String(),
		User:   "TRANSCRIPT:\n" + Excerpt(transcript, maxChars),
	}
}

// Excerpt truncates s to at most n characters without splitting a rune.
func Excerpt(s string, n int) string {
	if n <= 0 {
		n = DefaultMaxTranscriptChars
	}
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
