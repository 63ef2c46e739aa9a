// Package ingestion implements the TSV upload pipelines: parse,
// validate, resolve, then persist. Per-row problems are accumulated and
// reported; only structural problems (bad header, oversized file) abort
// a parse.
package ingestion

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Upload file headers, exact names and order. The first line of every
// upload must match one of these sets verbatim.
var (
	StylesHeaders = []string{"style", "brand", "category", "sub_category", "mrp", "gender"}
	SkusHeaders   = []string{"sku", "style", "size"}
	StoresHeaders = []string{"branch", "city"}
	SalesHeaders  = []string{"day", "sku", "channel", "quantity", "discount", "revenue"}
)

// ErrEmptyFile is returned when the upload has no header line
var ErrEmptyFile = errors.New("file is empty")

// ErrHeaderMismatch is returned when the first non-empty line does not
// match the expected header set exactly.
type ErrHeaderMismatch struct {
	Want []string
	Got  []string
}

func (e *ErrHeaderMismatch) Error() string {
	return fmt.Sprintf("header mismatch: expected [%s], got [%s]",
		strings.Join(e.Want, ", "), strings.Join(e.Got, ", "))
}

// ErrFileTooLarge is returned when the data rows exceed the configured limit
type ErrFileTooLarge struct {
	Limit int
}

func (e *ErrFileTooLarge) Error() string {
	return fmt.Sprintf("file exceeds the maximum of %d data rows", e.Limit)
}

// Row is one parsed data line. Number is the physical line number in
// the file (the header is line 1, so data starts at 2) and is carried
// through to error reports. Extra counts columns beyond the header set;
// pipelines flag such rows as validation errors.
type Row struct {
	Number int
	Cells  map[string]string
	Extra  int
}

// Value returns the trimmed cell under the given header, "" when the
// line was short.
func (r Row) Value(header string) string {
	return r.Cells[header]
}

// ParsedFile is the ordered output of one parse
type ParsedFile struct {
	Headers []string
	Rows    []Row
}

// ParseTSV reads a tab-separated upload and returns its data rows keyed
// by header. The first non-empty line must equal want exactly (tab-split,
// case and order). Cells are whitespace-trimmed but otherwise untouched;
// key canonicalisation is the pipelines' job via NormalizeKey. Short
// lines pad missing columns with "" so field validation reports them as
// empty rather than the whole parse failing.
func ParseTSV(r io.Reader, want []string, maxRows int) (*ParsedFile, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	headerSeen := false
	parsed := &ParsedFile{Headers: want}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		cells := strings.Split(line, "\t")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}

		if !headerSeen {
			if !equalHeaders(cells, want) {
				return nil, &ErrHeaderMismatch{Want: want, Got: cells}
			}
			headerSeen = true
			continue
		}

		if len(parsed.Rows) >= maxRows {
			return nil, &ErrFileTooLarge{Limit: maxRows}
		}

		row := Row{
			Number: lineNo,
			Cells:  make(map[string]string, len(want)),
		}
		for i, h := range want {
			if i < len(cells) {
				row.Cells[h] = cells[i]
			} else {
				row.Cells[h] = ""
			}
		}
		if len(cells) > len(want) {
			row.Extra = len(cells) - len(want)
		}
		parsed.Rows = append(parsed.Rows, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if !headerSeen {
		return nil, ErrEmptyFile
	}
	return parsed, nil
}

// NormalizeKey canonicalises a natural key (styleCode, sku, branch,
// channel) for both storage and lookup. One policy, one place: master
// rows store the normalised key, and every later resolution normalises
// the same way, so case differences between files never manifest as
// missing dependencies.
func NormalizeKey(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

func equalHeaders(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
