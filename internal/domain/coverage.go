package domain

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	m "failpass.dev/pkg/failpass/internal/model"
)

// CoverageSeparator divides test output from the coverage report.
const CoverageSeparator = "COVERAGE_REPORT_STARTING_HERE"

// CoverageReport holds line coverage percentages extracted from one run.
// A nil field was not reported.
type CoverageReport struct {
	Suite *float64
	File  *float64
}

type llvmCovExport struct {
	Data []struct {
		Totals llvmCovSummary `json:"totals"`
		Files  []struct {
			Filename string         `json:"filename"`
			Summary  llvmCovSummary `json:"summary"`
		} `json:"files"`
	} `json:"data"`
}

type llvmCovSummary struct {
	Lines struct {
		Percent float64 `json:"percent"`
	} `json:"lines"`
}

// ParseCoverageOutput splits output at CoverageSeparator and reads the
// llvm-cov JSON export that follows it.
func ParseCoverageOutput(output string, file m.Path) (CoverageReport, error) {
	_, report, found := strings.Cut(output, CoverageSeparator)
	if !found {
		return CoverageReport{}, errors.New("coverage separator not found in output")
	}

	var export llvmCovExport
	if err := json.Unmarshal([]byte(strings.TrimSpace(report)), &export); err != nil {
		return CoverageReport{}, fmt.Errorf("failed to decode coverage report: %w", err)
	}

	if len(export.Data) == 0 {
		return CoverageReport{}, nil
	}

	data := export.Data[0]
	suite := data.Totals.Lines.Percent
	out := CoverageReport{Suite: &suite}

	for _, f := range data.Files {
		name := strings.ReplaceAll(f.Filename, "\\", "/")
		if name == string(file) || strings.HasSuffix(name, "/"+string(file)) {
			pct := f.Summary.Lines.Percent
			out.File = &pct

			break
		}
	}

	return out, nil
}

// Sample combines reports taken with and without the generated test.
func Sample(with, without CoverageReport) *m.CoverageSample {
	return &m.CoverageSample{
		FileLinesWith:     with.File,
		FileLinesWithout:  without.File,
		SuiteLinesWith:    with.Suite,
		SuiteLinesWithout: without.Suite,
	}
}
