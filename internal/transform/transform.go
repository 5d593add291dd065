// Package transform holds the per-stage content transformations. The
// shipped transformations pass content through unchanged.
package transform

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/savaki/stage-pipeline/internal/errors"
)

// Transformer converts one decoded input document into the stage output.
type Transformer interface {
	Transform(ctx context.Context, content string) (string, error)
}

// New returns the transformer registered under name. An empty name selects
// the CSV pass-through.
func New(name string) (Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "csv":
		return CSVPassThrough{}, nil
	case "identity":
		return Identity{}, nil
	default:
		return nil, fmt.Errorf("unknown transform %q", name)
	}
}

// CSVPassThrough parses content as a CSV table and writes the same table
// back out. Rows shorter than the header are padded with empty fields; rows
// longer than the header are an error. A bare quote inside an unquoted field
// is read literally.
type CSVPassThrough struct{}

func (CSVPassThrough) Transform(_ context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: no columns to parse from empty input", errors.ErrTransform)
	}

	records, err := readCSV(content, false)
	if errors.Is(err, csv.ErrBareQuote) {
		records, err = readCSV(content, true)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrTransform, err)
	}

	width := len(records[0])
	for i, row := range records[1:] {
		if len(row) > width {
			return "", fmt.Errorf("%w: expected %d fields in line %d, saw %d", errors.ErrTransform, width, i+2, len(row))
		}
		for len(row) < width {
			row = append(row, "")
		}
		records[i+1] = row
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrTransform, err)
	}
	return buf.String(), nil
}

// readCSV reads every record, allowing rows of any width. lazyQuotes is only
// enabled after a strict read trips on a bare quote, so an unterminated
// quoted field is still rejected in ordinary input.
func readCSV(content string, lazyQuotes bool) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = lazyQuotes
	return r.ReadAll()
}

// Identity returns content unchanged. Empty content is still an error.
type Identity struct{}

func (Identity) Transform(_ context.Context, content string) (string, error) {
	if content == "" {
		return "", fmt.Errorf("%w: empty input", errors.ErrTransform)
	}
	return content, nil
}
