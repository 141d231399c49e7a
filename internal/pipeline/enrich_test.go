package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/braxsimmons/Cliopa/internal/fetcher"
	"github.com/braxsimmons/Cliopa/internal/model"
)

func TestEnrich_PartialFailureIsolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "fail") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(longTranscript))
	}))
	defer srv.Close()

	var cands []model.CallCandidate
	for _, name := range []string{"ok1", "fail1", "ok2", "fail2", "ok3"} {
		c := candidate(name, "a@tlc.com")
		c.TranscriptURL = srv.URL + "/transcripts/" + name + ".txt"
		cands = append(cands, c)
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second})
	out := Enrich(context.Background(), f, cands, 2)

	require.Len(t, out, 5)
	with := 0
	for i, e := range out {
		assert.Equal(t, cands[i].CallID, e.CallID, "order preserved")
		if e.HasTranscript() {
			with++
			assert.Equal(t, longTranscript, e.TranscriptText)
		} else {
			assert.Contains(t, e.CallID, "fail")
		}
	}
	assert.Equal(t, 3, with)
}

func TestEnrich_SkipsMissingURLs(t *testing.T) {
	m := new(mockFetcher)
	m.On("FetchText", mock.Anything, "https://nas/s.txt").Return("summary of the call", nil).Once()

	c := candidate("1", "a@tlc.com")
	c.SummaryURL = "https://nas/s.txt"

	out := Enrich(context.Background(), m, []model.CallCandidate{c}, 1)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].TranscriptText)
	assert.Equal(t, "summary of the call", out[0].SummaryText)
	m.AssertExpectations(t)
}

func TestEnrich_IndependentFetches(t *testing.T) {
	m := new(mockFetcher)
	m.On("FetchText", mock.Anything, "https://nas/t.txt").Return("", fetcher.ErrShortBody).Once()
	m.On("FetchText", mock.Anything, "https://nas/s.txt").Return("summary of the call", nil).Once()

	c := candidate("1", "a@tlc.com")
	c.TranscriptURL = "https://nas/t.txt"
	c.SummaryURL = "https://nas/s.txt"

	out := Enrich(context.Background(), m, []model.CallCandidate{c}, 1)
	assert.False(t, out[0].HasTranscript())
	assert.Equal(t, "summary of the call", out[0].SummaryText)
	m.AssertExpectations(t)
}

func TestEnrich_Empty(t *testing.T) {
	assert.Empty(t, Enrich(context.Background(), mapFetcher{}, nil, 4))
}
