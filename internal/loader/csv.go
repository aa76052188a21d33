// Package loader reads depth logs from delimited text files.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/welltie/internal/series"
)

// ErrNoSamples is returned when a file holds no readable samples
var ErrNoSamples = errors.New("no depth samples found")

// ReadCSV reads "depth,value" records. Lines whose first two fields are not
// both numbers (headers, comments, LAS null markers) are skipped. The result
// is sorted by depth with duplicate depths collapsed, last value winning.
func ReadCSV(r io.Reader) ([]series.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var samples []series.Sample
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if len(rec) < 2 {
			continue
		}

		depth, ok := parseField(rec[0])
		if !ok {
			continue
		}
		value, ok := parseField(rec[1])
		if !ok {
			continue
		}
		samples = append(samples, series.Sample{Depth: depth, Value: value})
	}

	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	return series.Normalize(samples), nil
}

// ReadCSVFile reads a CSV file from disk
func ReadCSVFile(path string) ([]series.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	samples, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// lasNull is the conventional LAS "no reading" value
const lasNull = -999.25

func parseField(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v == lasNull {
		return 0, false
	}
	return v, true
}
