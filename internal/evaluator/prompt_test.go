package evaluator

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/braxsimmons/Cliopa/internal/model"
)

var testCriteria = []model.Criterion{
	{ID: "QQ", Name: "Qualifying Questions", Description: "Were QQs asked and documented?", Dimension: "compliance"},
	{ID: "VCI", Name: "Verify Customer Info", Description: "Was customer info verified?", Dimension: "compliance"},
	{ID: "WHY_SMILE", Name: "Tone & Friendliness", Description: "Was agent friendly and professional?", Dimension: "tone"},
	{ID: "WHAT_EMPATHY", Name: "Empathy", Description: "Did agent show empathy?", Dimension: "empathy"},
	{ID: "WHERE_RESOLUTION", Name: "Resolution", Description: "Was issue resolved or next steps clear?", Dimension: "resolution"},
}

const testTranscript = "Agent: Thank you for calling TLC, this is Jane. May I have your account number?\n" +
	"Customer: Sure, it's 55512. I was double charged last month."

func TestBuildPrompt_Golden(t *testing.T) {
	p := BuildPrompt(testCriteria, testTranscript, DefaultMaxTranscriptChars)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "audit_prompt", []byte(p.System+"\n\n"+p.User))
}

func TestBuildPrompt_TruncatesTranscript(t *testing.T) {
	long := strings.Repeat("a", 20000)
	p := BuildPrompt(testCriteria, long, 12000)
	assert.Equal(t, len("TRANSCRIPT:\n")+12000, len(p.User))
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than cap", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"truncated", "hello world", 5, "hello"},
		{"multibyte kept whole", "héllo wörld", 7, "héllo w"},
		{"default cap", "abc", 0, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Excerpt(tt.in, tt.n))
		})
	}
}
