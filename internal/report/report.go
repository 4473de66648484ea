// Package report writes and reads the JSON run report: a snapshot of a
// run's inputs written at submission time, and a completion snapshot
// written once the root task finishes, with a stable run.json symlink
// always pointing at whichever is current.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	reporterDirname          = "json_reporter"
	initialReportFilename    = "initial_report.json"
	completionReportFilename = "completion_report.json"
	reportLinkFilename       = "run.json"
)

// RunData is the JSON shape of both the initial and completion reports.
// Results and Revoked are only meaningful on the completion report.
type RunData struct {
	Completed      bool              `json:"completed"`
	Chain          []string          `json:"chain"`
	RunID          string            `json:"run_id"`
	LogsPath       string            `json:"logs_path"`
	SubmissionHost string            `json:"submission_host"`
	SubmissionDir  string            `json:"submission_dir"`
	SubmissionCmd  []string          `json:"submission_cmd"`
	Viewers        map[string]string `json:"viewers"`
	Inputs         map[string]any    `json:"inputs"`
	Results        map[string]any    `json:"results,omitempty"`
	Revoked        bool              `json:"revoked"`
}

// InitialReportPath returns the path of the initial report under logsDir.
func InitialReportPath(logsDir string) string {
	return filepath.Join(logsDir, reporterDirname, initialReportFilename)
}

// CompletionReportPath returns the path of the completion report under logsDir.
func CompletionReportPath(logsDir string) string {
	return filepath.Join(logsDir, reporterDirname, completionReportFilename)
}

// ReportLinkPath returns the path of the run.json symlink under logsDir.
func ReportLinkPath(logsDir string) string {
	return filepath.Join(logsDir, reportLinkFilename)
}

// WriteInitialReport writes the initial run report and points run.json at
// it. data.Completed and data.Revoked are forced to false.
func WriteInitialReport(logsDir string, data RunData) error {
	data.Completed = false
	data.Revoked = false

	reportFile := InitialReportPath(logsDir)
	if err := writeReportFile(reportFile, data); err != nil {
		return err
	}

	return linkReport(reportFile, ReportLinkPath(logsDir))
}

// WriteCompletionReport writes the completion run report, seeded from the
// initial report when present (best effort; a missing initial report
// yields a minimal completion report built from fallback), and repoints
// run.json at it.
func WriteCompletionReport(logsDir string, revoked bool, results map[string]any, fallback RunData) error {
	data, err := readReportFile(InitialReportPath(logsDir))
	if err != nil {
		if log := zap.L(); log != nil {
			log.Debug("initial report unreadable, writing minimal completion report",
				zap.String("logs_dir", logsDir), zap.Error(err))
		}
		data = fallback
	}

	data.Completed = true
	data.Results = results
	data.Revoked = revoked

	reportFile := CompletionReportPath(logsDir)
	if err := writeReportFile(reportFile, data); err != nil {
		return err
	}

	return linkReport(reportFile, ReportLinkPath(logsDir))
}

// GetCompletionReportData reads and decodes the completion report for logsDir.
func GetCompletionReportData(logsDir string) (RunData, error) {
	return readReportFile(CompletionReportPath(logsDir))
}

// GetCurrentReportData reads and decodes whichever report run.json
// currently points at, initial or completion.
func GetCurrentReportData(logsDir string) (RunData, error) {
	return readReportFile(ReportLinkPath(logsDir))
}

// IsCompletedReport reports whether jsonFile resolves (following symlinks)
// to a completion report, as opposed to an initial one.
func IsCompletedReport(jsonFile string) bool {
	resolved, err := filepath.EvalSymlinks(jsonFile)
	if err != nil {
		resolved = jsonFile
	}
	return filepath.Base(resolved) == completionReportFilename
}

func writeReportFile(reportFile string, data RunData) error {
	if err := os.MkdirAll(filepath.Dir(reportFile), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	encoded, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	encoded = append(encoded, '\n')

	if err := os.WriteFile(reportFile, encoded, 0o644); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}

func readReportFile(reportFile string) (RunData, error) {
	raw, err := os.ReadFile(reportFile)
	if err != nil {
		return RunData{}, err
	}
	var data RunData
	if err := json.Unmarshal(raw, &data); err != nil {
		return RunData{}, fmt.Errorf("decode report: %w", err)
	}
	return data, nil
}

// linkReport points linkPath at target, replacing any existing link.
func linkReport(target, linkPath string) error {
	rel, err := filepath.Rel(filepath.Dir(linkPath), target)
	if err != nil {
		rel = target
	}

	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale report link: %w", err)
	}
	if err := os.Symlink(rel, linkPath); err != nil {
		return fmt.Errorf("link report: %w", err)
	}
	return nil
}
