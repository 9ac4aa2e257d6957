package verdict

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/assertp4/assertp4/internal/errors"
)

// Report is the single structured document emitted per invocation.
// AssertionErrors is present if and only if at least one evidence file was
// found; it carries each file's full text. ErrorCode is set only when the
// pipeline itself failed and names the failure with a stable code; an error
// verdict classified from the engine's own exit carries none.
type Report struct {
	RunID           string      `json:"run_id"`
	Verdict         Verdict     `json:"verdict"`
	ErrorCode       errors.Code `json:"error_code,omitempty"`
	TimeMS          int64       `json:"time_ms"`
	Details         string      `json:"details"`
	AssertionErrors []string    `json:"assertion_errors,omitempty"`
}

// encodeReport is swapped in tests to exercise the degradation path.
var encodeReport = json.Marshal

// Emit writes the report as one JSON document to w. It never fails: if the
// report cannot be encoded, a hand-built error document goes out instead,
// so the caller always gets exactly one document.
func Emit(w io.Writer, rep Report) {
	data, err := encodeReport(rep)
	if err != nil {
		degraded := Report{
			RunID:     rep.RunID,
			Verdict:   Error,
			ErrorCode: errors.EInternal,
			TimeMS:    rep.TimeMS,
			Details:   fmt.Sprintf("report assembly failed: %v", err),
		}
		// The degraded report contains only plain strings; this cannot fail.
		data, _ = json.Marshal(degraded)
	}
	_, _ = fmt.Fprintln(w, string(data))
}
