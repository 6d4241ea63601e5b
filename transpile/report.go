package transpile

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-analyze/charts"
)

// ReportMetrics summarizes a transpile run.
type ReportMetrics struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	RunDuration   int64          `json:"run_ms"`
	SolcVersion   string         `json:"solc_version,omitempty"`
	Cached        bool           `json:"cached"`
	Files         []string       `json:"files"`
	FileCount     int            `json:"file_count"`
	Excluded      []string       `json:"excluded"`
	ExcludedCount int            `json:"excluded_count"`
	EditCounts    map[string]int `json:"edit_counts"`
	TotalEdits    int            `json:"total_edits"`
}

// NewReportMetrics builds the report for a result.
func NewReportMetrics(startTime time.Time, result *TranspileResult) ReportMetrics {
	return ReportMetrics{
		GeneratedAt:   time.Now().UTC(),
		RunDuration:   time.Since(startTime).Milliseconds(),
		SolcVersion:   result.SolcVersion,
		Cached:        result.Cached,
		Files:         result.Paths(),
		FileCount:     len(result.Files),
		Excluded:      result.Excluded,
		ExcludedCount: len(result.Excluded),
		EditCounts:    result.EditCounts,
		TotalEdits:    result.TotalEdits(),
	}
}

// WriteToFile writes the report as indented JSON.
func (rm ReportMetrics) WriteToFile(path string) error {
	encoded, err := json.MarshalIndent(rm, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	} else if err := os.WriteFile(path, encoded, 0644); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}

// ReadReportMetrics loads a report written by WriteToFile.
func ReadReportMetrics(path string) (ReportMetrics, error) {
	var rm ReportMetrics
	data, err := os.ReadFile(path)
	if err != nil {
		return rm, err
	}
	err = json.Unmarshal(data, &rm)
	return rm, err
}

func chartOutputType(path string) (string, error) {
	switch {
	case strings.HasSuffix(path, ".png"):
		return charts.ChartOutputPNG, nil
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return charts.ChartOutputJPG, nil
	case strings.HasSuffix(path, ".svg"):
		return charts.ChartOutputSVG, nil
	}
	return "", fmt.Errorf("unhandled chart file type: %s", path)
}

// RenderReportCharts renders the edits per kind of a report as a horizontal bar chart.
func RenderReportCharts(report ReportMetrics, outputType string) ([]byte, error) {
	kinds := slices.Sorted(maps.Keys(report.EditCounts))
	if len(kinds) == 0 {
		return nil, fmt.Errorf("report has no edits to chart")
	}
	values := make([]float64, len(kinds))
	for i, k := range kinds {
		values[i] = float64(report.EditCounts[k])
	}

	p := charts.NewPainter(charts.PainterOptions{
		OutputFormat: outputType,
		Width:        1024,
		Height:       max(240, 96+48*len(kinds)),
	})
	opt := charts.NewHorizontalBarChartOptionWithData([][]float64{values})
	opt.Title.Text = fmt.Sprintf("Edits by kind (%d files, %d edits)", report.FileCount, report.TotalEdits)
	opt.YAxis.Labels = kinds
	opt.SeriesList[0].Label.Show = charts.Ptr(true)
	if err := p.HorizontalBarChart(opt); err != nil {
		return nil, fmt.Errorf("error rendering chart: %w", err)
	}
	return p.Bytes()
}

// WriteReportCharts renders the chart to path, the output format follows the file extension.
func WriteReportCharts(path string, report ReportMetrics) error {
	outputType, err := chartOutputType(path)
	if err != nil {
		return err
	}
	buf, err := RenderReportCharts(report, outputType)
	if err != nil {
		return fmt.Errorf("render charts failed: %w", err)
	} else if err = os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("write chart file failed: %w", err)
	}
	return nil
}
