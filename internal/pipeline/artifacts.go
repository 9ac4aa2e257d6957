package pipeline

import (
	"path/filepath"
	"strings"
)

// ArtifactSet holds the per-run artifact paths, all rooted in the run's
// working directory and derived from the source file's base name. None of
// them outlive the working directory.
type ArtifactSet struct {
	// IRFile is the front-end compiler's JSON intermediate representation.
	IRFile string

	// CFile is the translator's generated C source.
	CFile string

	// BCFile is the LLVM bitcode produced from CFile.
	BCFile string

	// EngineOutDir is the symbolic execution engine's output directory.
	EngineOutDir string
}

// artifactsFor derives the artifact paths for a source file inside workDir.
func artifactsFor(workDir, sourcePath string) ArtifactSet {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return ArtifactSet{
		IRFile:       filepath.Join(workDir, base+".json"),
		CFile:        filepath.Join(workDir, base+".c"),
		BCFile:       filepath.Join(workDir, base+".bc"),
		EngineOutDir: filepath.Join(workDir, "klee-out"),
	}
}
