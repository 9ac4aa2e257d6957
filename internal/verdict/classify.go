// Package verdict turns the verification stage's raw outcome into one of
// four verdicts and assembles the final report document.
package verdict

import "strings"

// Verdict is the final answer about the assertion under test.
type Verdict string

const (
	// True: no violation found within the explored state space.
	True Verdict = "true"

	// False: a violation was found.
	False Verdict = "false"

	// Unknown: undecided within the time budget.
	Unknown Verdict = "unknown"

	// Error: the pipeline could not run to a decision.
	Error Verdict = "error"
)

// Markers the execution engine prints.
const (
	assertionFailMarker = "ASSERTION FAIL"
	abortFailureMarker  = "abort failure"
	completionMarker    = "KLEE: done:"
)

// Input is everything the classifier looks at: the verification stage's
// combined output, its timeout flag and exit status, and the scanned
// evidence texts.
type Input struct {
	// Output is the engine's combined stdout+stderr text.
	Output string

	// TimedOut is true if the engine was killed at the time budget.
	TimedOut bool

	// ExitCode is the engine's exit code; nil if it was signaled or
	// never produced one.
	ExitCode *int

	// Evidence holds the contents of any evidence files found.
	Evidence []string
}

// Rule is one entry in the ordered classification table.
type Rule struct {
	// Name identifies the rule in tests and diagnostics.
	Name string

	// Matches reports whether the rule applies to the input.
	Matches func(Input) bool

	// Verdict is assigned when the rule matches.
	Verdict Verdict
}

// Rules is the classification table, applied in order, first match wins.
// Violation evidence is the strongest signal and dominates even a timeout:
// a violation found just before the budget expired is still a violation.
// A timeout with no evidence is genuinely undecided. A clean exit with
// neither evidence nor an explicit completion marker is treated as a pass
// rather than an error, for engines that exit 0 without printing the marker.
var Rules = []Rule{
	{
		Name: "violation found",
		Matches: func(in Input) bool {
			return strings.Contains(in.Output, assertionFailMarker) ||
				strings.Contains(in.Output, abortFailureMarker) ||
				len(in.Evidence) > 0
		},
		Verdict: False,
	},
	{
		Name:    "budget exhausted",
		Matches: func(in Input) bool { return in.TimedOut },
		Verdict: Unknown,
	},
	{
		Name: "exploration exhausted",
		Matches: func(in Input) bool {
			return strings.Contains(in.Output, completionMarker) && len(in.Evidence) == 0
		},
		Verdict: True,
	},
	{
		Name: "engine failed",
		Matches: func(in Input) bool {
			return in.ExitCode == nil || *in.ExitCode != 0
		},
		Verdict: Error,
	},
}

// Classify applies the rule table and returns exactly one verdict.
// When no rule matches, the engine exited cleanly with nothing to report,
// which counts as a pass.
func Classify(in Input) Verdict {
	for _, rule := range Rules {
		if rule.Matches(in) {
			return rule.Verdict
		}
	}
	return True
}
