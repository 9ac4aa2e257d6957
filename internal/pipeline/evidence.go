package pipeline

import (
	"os"
	"path/filepath"
	"sort"
)

// EvidenceSuffix is the naming pattern the execution engine uses for
// per-violation evidence files inside its output directory.
const EvidenceSuffix = ".assert.err"

// ScanEvidence enumerates evidence files in the engine output directory and
// returns their full text contents in path order. The scan is best-effort:
// an absent directory yields nil, and files that cannot be read are skipped.
// Evidence content is opaque; it is never parsed.
func ScanEvidence(dir string) []string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*"+EvidenceSuffix))
	if err != nil {
		return nil
	}
	sort.Strings(matches)

	var evidence []string
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		evidence = append(evidence, string(data))
	}
	return evidence
}
