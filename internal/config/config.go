// Package config resolves the external tool chain used by the verification
// pipeline. Resolution order: built-in defaults, then an optional JSON config
// file, then ASSERTP4_* environment variables.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/assertp4/assertp4/internal/errors"
)

// Environment variable overrides.
const (
	EnvP4C        = "ASSERTP4_P4C"
	EnvPython     = "ASSERTP4_PYTHON"
	EnvTranslator = "ASSERTP4_TRANSLATOR"
	EnvClang      = "ASSERTP4_CLANG"
	EnvKLEE       = "ASSERTP4_KLEE"
)

// Tools holds the resolved commands for the four pipeline stages.
// Values are either bare names (PATH lookup) or absolute paths.
type Tools struct {
	// P4C is the front-end compiler command.
	P4C string `json:"p4c,omitempty"`

	// Python is the interpreter used to run the IR translator script.
	Python string `json:"python,omitempty"`

	// TranslatorScript is the path to the IR-to-C translator script.
	// The translator runs with its own directory as cwd.
	TranslatorScript string `json:"translator,omitempty"`

	// Clang is the native compiler command.
	Clang string `json:"clang,omitempty"`

	// KLEE is the symbolic execution engine command.
	KLEE string `json:"klee,omitempty"`
}

// Defaults returns the built-in tool chain, matching a standard assert-p4
// container layout.
func Defaults() Tools {
	return Tools{
		P4C:              "p4c-bm2-ss",
		Python:           "python",
		TranslatorScript: "/assert-p4/src/P4_to_C.py",
		Clang:            "clang",
		KLEE:             "klee",
	}
}

// TranslatorDir returns the directory the translator must run from.
func (t Tools) TranslatorDir() string {
	return filepath.Dir(t.TranslatorScript)
}

// Resolve builds the effective tool chain. configPath is optional; when
// non-empty the file must exist and parse.
func Resolve(configPath string) (Tools, error) {
	tools := Defaults()

	if configPath != "" {
		fileTools, err := loadFile(configPath)
		if err != nil {
			return Tools{}, err
		}
		tools = merge(tools, fileTools)
	}

	tools = merge(tools, fromEnv())
	return tools, nil
}

// loadFile reads a JSON tool config file.
func loadFile(path string) (Tools, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tools{}, errors.Wrap(errors.EInvalidConfig, "failed to read config file "+path, err)
	}
	var tools Tools
	if err := json.Unmarshal(data, &tools); err != nil {
		return Tools{}, errors.Wrap(errors.EInvalidConfig, "failed to parse config file "+path, err)
	}
	return tools, nil
}

// fromEnv collects ASSERTP4_* overrides. Empty values are ignored.
func fromEnv() Tools {
	return Tools{
		P4C:              os.Getenv(EnvP4C),
		Python:           os.Getenv(EnvPython),
		TranslatorScript: os.Getenv(EnvTranslator),
		Clang:            os.Getenv(EnvClang),
		KLEE:             os.Getenv(EnvKLEE),
	}
}

// merge overlays non-empty fields of over onto base.
func merge(base, over Tools) Tools {
	if over.P4C != "" {
		base.P4C = over.P4C
	}
	if over.Python != "" {
		base.Python = over.Python
	}
	if over.TranslatorScript != "" {
		base.TranslatorScript = over.TranslatorScript
	}
	if over.Clang != "" {
		base.Clang = over.Clang
	}
	if over.KLEE != "" {
		base.KLEE = over.KLEE
	}
	return base
}
