package source

import (
	"path"
	"strings"

	"github.com/braxsimmons/Cliopa/internal/model"
)

// five9Share is the NAS folder holding the Five9 backup tree.
const five9Share = "/Five9VmBackup/"

// DeriveURLs fills the recording, transcript and summary URLs of c.
//
// Five9 rows live under the backup share, with transcripts and summaries
// in sibling folders named "<stem>_<agent email>_transcript.txt" and
// "..._summary.txt". Every other source uses the legacy layout, which only
// carries the recording.
func DeriveURLs(c *model.CallCandidate, nasBaseURL string) {
	base := strings.TrimRight(nasBaseURL, "/")

	if !strings.EqualFold(c.SourceSystem, model.SourceFive9) {
		c.RecordingURL = base + c.FilePath + c.FileName
		c.TranscriptURL = ""
		c.SummaryURL = ""
		return
	}

	share := base + five9Share
	stem := fileStem(c.CallID, c.FileName)
	c.RecordingURL = share + c.FilePath + c.FileName
	if stem == "" {
		return
	}
	c.TranscriptURL = share + strings.ReplaceAll(c.FilePath, "recordings", "transcripts") +
		stem + "_" + c.AgentEmail + "_transcript.txt"
	c.SummaryURL = share + strings.ReplaceAll(c.FilePath, "recordings", "summaries") +
		stem + "_" + c.AgentEmail + "_summary.txt"
}

// fileStem names the per-call text files: the call id when known, else the
// recording file name up to its first underscore, else the file name
// without extension.
func fileStem(callID, fileName string) string {
	if callID != "" {
		return callID
	}
	if i := strings.IndexByte(fileName, '_'); i > 0 {
		return fileName[:i]
	}
	return strings.TrimSuffix(fileName, path.Ext(fileName))
}
