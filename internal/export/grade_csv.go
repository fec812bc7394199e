package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"emprendo-intake/internal/domain"
	"emprendo-intake/internal/grading"
)

// Row is one input record of a bulk grading sheet keyed by header.
type Row struct {
	Key    string
	Values map[string]string
}

// ReadRows parses a CSV with a header line. Blank lines are skipped.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty csv")
	}
	if err != nil {
		return nil, err
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		values := make(map[string]string, len(header))
		blank := true
		for i, h := range header {
			if i < len(rec) {
				values[h] = strings.TrimSpace(rec[i])
				if values[h] != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}
		rows = append(rows, Row{Key: fmt.Sprintf("row=%d", line), Values: values})
	}
	return rows, nil
}

// GradeCSV grades every row of r with grader and writes the grader's columns
// to w in input order. When ctx is cancelled the rows graded so far are still
// written and the context error is returned.
func GradeCSV(ctx context.Context, r io.Reader, w io.Writer, grader grading.BulkGrader, runLog *grading.RunLog, opts grading.BatchOptions) (domain.RunProgress, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return domain.RunProgress{}, err
	}
	if runLog == nil {
		runLog = grading.NewRunLog("", "csv", len(rows))
	}

	index := make(map[string]int, len(rows))
	for i, row := range rows {
		index[row.Key] = i
	}
	graded := make([]grading.Graded, len(rows))
	done := make([]bool, len(rows))
	batchErr := grading.RunBatch(ctx, runLog, rows, func(row Row) string { return row.Key },
		func(ctx context.Context, row Row) error {
			i := index[row.Key]
			graded[i] = grader.Grade(ctx, row.Key, row.Values)
			done[i] = true
			return nil
		},
		opts,
	)

	cw := csv.NewWriter(w)
	if err := cw.Write(grader.Columns()); err != nil {
		return runLog.Snapshot(), err
	}
	for i, g := range graded {
		if !done[i] {
			continue
		}
		if err := cw.Write(g.Values); err != nil {
			return runLog.Snapshot(), err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return runLog.Snapshot(), err
	}
	return runLog.Snapshot(), batchErr
}
