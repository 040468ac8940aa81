// Package export serializes cells to downloadable CSV and JSON files and
// reads them back.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/cellsim/pkg/cell"
)

// Format is a download format.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

// ParseFormat converts a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case CSV, JSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// MIME returns the content type of the format.
func (f Format) MIME() string {
	if f == JSON {
		return "application/json"
	}
	return "text/csv"
}

// TimestampLayout is the layout of the timestamp in download file names.
const TimestampLayout = "20060102_150405"

// Filename returns cells_<YYYYMMDD_HHMMSS>.<ext> for the given moment.
func Filename(f Format, at time.Time) string {
	return fmt.Sprintf("cells_%s.%s", at.Format(TimestampLayout), f)
}

// Encode serializes cells in format f.
func Encode(f Format, cells []cell.Cell) ([]byte, error) {
	switch f {
	case CSV:
		return ToCSV(cells)
	case JSON:
		return ToJSON(cells)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// Decode parses cells in format f.
func Decode(f Format, r io.Reader) ([]cell.Cell, error) {
	switch f {
	case CSV:
		return FromCSV(r)
	case JSON:
		return FromJSON(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// ToCSV writes a header row followed by one row per cell, in cell.Columns
// order. Empty input produces the header only.
func ToCSV(cells []cell.Cell) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cell.Columns); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to write csv header")
	}
	record := make([]string, len(cell.Columns))
	for _, c := range cells {
		record[0] = string(c.Type)
		for i, a := range cell.Attributes {
			record[i+1] = strconv.FormatFloat(c.Get(a), 'f', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to flush csv")
	}
	return buf.Bytes(), nil
}

// ToJSON writes a JSON array of cell objects indented by two spaces. Empty
// input produces [].
func ToJSON(cells []cell.Cell) ([]byte, error) {
	if cells == nil {
		cells = []cell.Cell{}
	}
	b, err := json.MarshalIndent(cells, "", "  ")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to marshal cells")
	}
	return b, nil
}

// FromCSV parses a CSV file with a header row. Columns are matched by name and
// may appear in any order; extra columns are ignored.
func FromCSV(r io.Reader) ([]cell.Cell, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrNoHeader
		}
		return nil, pkgerrors.Wrap(err, "failed to read csv header")
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	for _, col := range cell.Columns {
		if _, ok := pos[col]; !ok {
			return nil, pkgerrors.Wrapf(ErrMissingColumn, "%q", col)
		}
	}

	out := []cell.Cell{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to read csv line %d", line)
		}

		var c cell.Cell
		c.Type = cell.Chemistry(rec[pos[cell.TypeColumn]])
		for _, a := range cell.Attributes {
			v, err := strconv.ParseFloat(rec[pos[string(a)]], 64)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "line %d: %s", line, a)
			}
			c.Set(a, v)
		}
		if err := c.Validate(); err != nil {
			return nil, pkgerrors.Wrapf(err, "line %d", line)
		}
		out = append(out, c)
	}
	return out, nil
}

// FromJSON parses a JSON array of cell objects.
func FromJSON(r io.Reader) ([]cell.Cell, error) {
	var raw []map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to decode json")
	}

	out := make([]cell.Cell, 0, len(raw))
	for i, obj := range raw {
		for _, col := range cell.Columns {
			if _, ok := obj[col]; !ok {
				return nil, pkgerrors.Wrapf(ErrMissingColumn, "object %d: %q", i, col)
			}
		}
		var c cell.Cell
		if err := json.Unmarshal(obj[cell.TypeColumn], &c.Type); err != nil {
			return nil, pkgerrors.Wrapf(err, "object %d: type", i)
		}
		for _, a := range cell.Attributes {
			var v *float64
			if err := json.Unmarshal(obj[string(a)], &v); err != nil {
				return nil, pkgerrors.Wrapf(err, "object %d: %s", i, a)
			}
			if v == nil {
				return nil, pkgerrors.Wrapf(cell.ErrMissingValue, "object %d: %s", i, a)
			}
			c.Set(a, *v)
		}
		out = append(out, c)
	}
	return out, nil
}
