package manifest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrManifestMissing indicates the batch directory has no manifest file.
	ErrManifestMissing = errors.New("manifest file not found")

	// ErrManifestUnparseable indicates the manifest file is not valid JSON.
	ErrManifestUnparseable = errors.New("manifest file is not parseable")
)

// Problem describes one offending file discovered during validation.
type Problem struct {
	File   string
	Reason string
}

func (p Problem) String() string {
	return p.File + ": " + p.Reason
}

// ValidationError aggregates every problem found in a batch. Validation never
// stops at the first offending file, so an operator can fix an export in one
// pass.
type ValidationError struct {
	BatchDir string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "batch %s failed validation (%d problems):", e.BatchDir, len(e.Problems))
	for _, p := range e.Problems {
		sb.WriteString("\n  ")
		sb.WriteString(p.String())
	}
	return sb.String()
}
