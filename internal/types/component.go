// Package types provides the data model shared by the scanner, resolver,
// engines, build orchestrator and watch controller.
// This package contains shared types to avoid circular dependencies between packages.
package types

import (
	"encoding/json"
	"time"
)

// LayoutDeclaration is a single layout annotation found in a component source
// file, e.g. `// @layout('tabs.onboarding')`.
type LayoutDeclaration struct {
	// LayoutPath is the dot-delimited logical layout address
	LayoutPath string `json:"layoutPath"`
	// Line is the 1-based line of the annotation, 0 when unknown
	Line int `json:"line"`
	// Column is the 1-based column of the annotation, 0 when unknown
	Column int `json:"column"`
}

// ProcessedComponent tracks one component through resolution and rendering.
// OutputPath is derived once from SourcePath and never changes.
type ProcessedComponent struct {
	// SourcePath is the absolute path of the annotated component file
	SourcePath string `json:"sourcePath"`
	// OutputPath is where the generated HTML artifact is written
	OutputPath string `json:"outputPath"`
	// Layouts lists every declaration found; only the first is consumed
	Layouts []LayoutDeclaration `json:"layouts"`
	// ResolvedLayoutPath is the template file chosen by the resolver
	ResolvedLayoutPath string `json:"resolvedLayoutPath,omitempty"`
	// EngineType is the engine that owns ResolvedLayoutPath
	EngineType string `json:"engineType,omitempty"`
}

// PrimaryLayout returns the declaration that drives rendering.
func (c *ProcessedComponent) PrimaryLayout() (LayoutDeclaration, bool) {
	if len(c.Layouts) == 0 {
		return LayoutDeclaration{}, false
	}
	return c.Layouts[0], true
}

// ProcessingResult is the terminal outcome of one component. Exactly one of
// HTML and Error is set.
type ProcessingResult struct {
	Component ProcessedComponent `json:"component"`
	Success   bool               `json:"success"`
	HTML      string             `json:"html,omitempty"`
	Error     string             `json:"error,omitempty"`
	Duration  time.Duration      `json:"-"`
}

// DurationMs returns the processing duration in whole milliseconds.
func (r ProcessingResult) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// BuildSummary aggregates a batch build. SuccessCount+FailureCount equals
// ComponentsWithLayouts whenever processing ran.
type BuildSummary struct {
	TotalScanned          int                `json:"totalScanned"`
	ComponentsWithLayouts int                `json:"componentsWithLayouts"`
	SuccessCount          int                `json:"successCount"`
	FailureCount          int                `json:"failureCount"`
	Results               []ProcessingResult `json:"results"`
	Duration              time.Duration      `json:"-"`
}

// DurationMs returns the build duration in whole milliseconds.
func (s *BuildSummary) DurationMs() int64 {
	return s.Duration.Milliseconds()
}

// Add records a result and updates the counters.
func (s *BuildSummary) Add(result ProcessingResult) {
	s.Results = append(s.Results, result)
	if result.Success {
		s.SuccessCount++
	} else {
		s.FailureCount++
	}
}

// Failures returns the failed results in build order.
func (s *BuildSummary) Failures() []ProcessingResult {
	var failed []ProcessingResult
	for _, r := range s.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// CleanResult describes a clean run.
type CleanResult struct {
	FilesFound   int           `json:"filesFound"`
	FilesDeleted int           `json:"filesDeleted"`
	DeletedFiles []string      `json:"deletedFiles"`
	Duration     time.Duration `json:"-"`
}

// DurationMs returns the clean duration in whole milliseconds.
func (c *CleanResult) DurationMs() int64 {
	return c.Duration.Milliseconds()
}

// MarshalJSON adds a durationMs field.
func (r ProcessingResult) MarshalJSON() ([]byte, error) {
	type alias ProcessingResult
	return json.Marshal(struct {
		alias
		DurationMs int64 `json:"durationMs"`
	}{alias(r), r.DurationMs()})
}

// MarshalJSON adds a durationMs field.
func (s BuildSummary) MarshalJSON() ([]byte, error) {
	type alias BuildSummary
	return json.Marshal(struct {
		alias
		DurationMs int64 `json:"durationMs"`
	}{alias(s), s.Duration.Milliseconds()})
}

// MarshalJSON adds a durationMs field.
func (c CleanResult) MarshalJSON() ([]byte, error) {
	type alias CleanResult
	return json.Marshal(struct {
		alias
		DurationMs int64 `json:"durationMs"`
	}{alias(c), c.Duration.Milliseconds()})
}
