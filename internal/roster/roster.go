// Package roster loads and rewrites the delimited student roster that drives
// a distribution run. Columns the package does not model, including values
// beyond the declared header, are preserved verbatim on rewrite.
package roster

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Student is one roster entry, keyed by its identification number.
type Student struct {
	Number  string
	Name    string
	Surname string
	Group   string
	Email   string
	Account string // ownCloud/Nextcloud account; an "@" marks a federated address

	Quiz      string // local path of the matched quiz file, bound by the matcher
	Link      string // public link of the student folder
	ShortLink string
}

// ColumnMap names the roster columns the store understands. Number and Name
// are mandatory; the rest are optional and default to empty when absent.
type ColumnMap struct {
	Number    string
	Name      string
	Surname   string
	Group     string
	Email     string
	Account   string
	Link      string
	ShortLink string
}

// DefaultColumns returns the column names used by the stock AMC roster export.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		Number:    "number",
		Name:      "name",
		Surname:   "surname",
		Group:     "group",
		Email:     "email",
		Account:   "owncloud",
		Link:      "link",
		ShortLink: "shortlink",
	}
}

// Options configures parsing of the roster file.
type Options struct {
	Delimiter rune   // field separator, default ':'
	Comment   string // lines starting with this prefix are skipped, default "#"
	Columns   ColumnMap
}

// DefaultOptions returns the parsing defaults matching the AMC export format.
func DefaultOptions() Options {
	return Options{
		Delimiter: ':',
		Comment:   "#",
		Columns:   DefaultColumns(),
	}
}

// withDefaults fills zero fields so a zero Options behaves like
// DefaultOptions().
func (o Options) withDefaults() Options {
	if o.Delimiter == 0 {
		o.Delimiter = ':'
	}
	if o.Comment == "" {
		o.Comment = "#"
	}
	if o.Columns == (ColumnMap{}) {
		o.Columns = DefaultColumns()
	}
	return o
}

// FormatError reports a roster whose header cannot be interpreted.
type FormatError struct {
	Path    string
	Message string
	Cause   error
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("roster format error in %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("roster format error in %s: %s", e.Path, e.Message)
}

func (e *FormatError) Unwrap() error { return e.Cause }

// RowError reports a data row that was skipped during load.
type RowError struct {
	Line    int // 1-based line number in the filtered (comment-free) input
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Message)
}

// Roster holds the loaded student set plus enough source information to
// rewrite the file without disturbing columns it does not model.
type Roster struct {
	Students map[string]*Student // keyed by Student.Number
	Order    []string            // numbers in file order
	Skipped  []RowError          // rows dropped during load

	path string
	opts Options
}

// Load reads the roster at path. Rows starting with the comment prefix are
// skipped; rows missing the number or name column are recorded in Skipped and
// do not fail the load. A header missing the mandatory columns is a
// *FormatError.
func Load(path string, opts Options) (*Roster, error) {
	opts = opts.withDefaults()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	header, rows, err := readRows(f, opts)
	if err != nil {
		return nil, &FormatError{Path: path, Message: "cannot parse header", Cause: err}
	}

	idx := headerIndex(header)
	numberCol, okNumber := idx[opts.Columns.Number]
	nameCol, okName := idx[opts.Columns.Name]
	if !okNumber || !okName {
		return nil, &FormatError{
			Path:    path,
			Message: fmt.Sprintf("header is missing mandatory column %q or %q", opts.Columns.Number, opts.Columns.Name),
		}
	}

	r := &Roster{
		Students: make(map[string]*Student),
		path:     path,
		opts:     opts,
	}
	for i, row := range rows {
		number := cell(row, numberCol)
		name := cell(row, nameCol)
		if number == "" || name == "" {
			r.Skipped = append(r.Skipped, RowError{
				Line:    i + 2, // header is line 1
				Message: "student without name or number",
			})
			continue
		}
		s := &Student{
			Number:    number,
			Name:      name,
			Surname:   lookup(row, idx, opts.Columns.Surname),
			Group:     lookup(row, idx, opts.Columns.Group),
			Email:     lookup(row, idx, opts.Columns.Email),
			Account:   lookup(row, idx, opts.Columns.Account),
			Link:      lookup(row, idx, opts.Columns.Link),
			ShortLink: lookup(row, idx, opts.Columns.ShortLink),
		}
		if _, seen := r.Students[number]; !seen {
			r.Order = append(r.Order, number)
		}
		r.Students[number] = s
	}
	return r, nil
}

// Path returns the file the roster was loaded from.
func (r *Roster) Path() string { return r.path }

// Save rewrites the roster with each matched student's link and short-link
// columns updated, preserving every other column and any overflow values
// positionally. Comment lines are not carried over. The result is written to
// a derived "<base>_updated<ext>" file unless replace is true, in which case
// the original is overwritten. Returns the path written.
func (r *Roster) Save(replace bool) (string, error) {
	src, err := os.Open(r.path)
	if err != nil {
		return "", fmt.Errorf("failed to reopen roster %s: %w", r.path, err)
	}
	defer func() { _ = src.Close() }()

	out := r.path
	if !replace {
		ext := filepath.Ext(r.path)
		out = strings.TrimSuffix(r.path, ext) + "_updated" + ext
	}

	var buf strings.Builder
	if err := r.rewrite(src, &buf); err != nil {
		return "", err
	}
	if err := os.WriteFile(out, []byte(buf.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write roster %s: %w", out, err)
	}
	return out, nil
}

// rewrite streams the original rows to w, updating only the link and
// short-link cells of rows whose number matches a known student.
func (r *Roster) rewrite(src io.Reader, w io.Writer) error {
	header, rows, err := readRows(src, r.opts)
	if err != nil {
		return &FormatError{Path: r.path, Message: "cannot parse header", Cause: err}
	}

	idx := headerIndex(header)
	numberCol, ok := idx[r.opts.Columns.Number]
	if !ok {
		return &FormatError{Path: r.path, Message: fmt.Sprintf("header is missing column %q", r.opts.Columns.Number)}
	}

	// Declare the link columns if the original header does not.
	linkCol, ok := idx[r.opts.Columns.Link]
	if !ok {
		linkCol = len(header)
		header = append(header, r.opts.Columns.Link)
	}
	shortCol, ok := idx[r.opts.Columns.ShortLink]
	if !ok {
		shortCol = len(header)
		header = append(header, r.opts.Columns.ShortLink)
	}

	cw := csv.NewWriter(w)
	cw.Comma = r.opts.Delimiter
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write roster header: %w", err)
	}
	for _, row := range rows {
		if s, ok := r.Students[cell(row, numberCol)]; ok {
			row = setCell(row, linkCol, s.Link)
			row = setCell(row, shortCol, s.ShortLink)
		}
		row = trimTrailingEmpty(row, len(header))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write roster row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// readRows parses the delimited input into a header plus data rows, dropping
// comment-prefixed lines first. Rows keep their original cell count so values
// beyond the header round-trip in place.
func readRows(src io.Reader, opts Options) (header []string, rows [][]string, err error) {
	var filtered strings.Builder
	sc := bufio.NewScanner(src)
	for sc.Scan() {
		line := sc.Text()
		if opts.Comment != "" && strings.HasPrefix(line, opts.Comment) {
			continue
		}
		filtered.WriteString(line)
		filtered.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}

	cr := csv.NewReader(strings.NewReader(filtered.String()))
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err = cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("empty file: no header row found")
		}
		return nil, nil, err
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func lookup(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok {
		return ""
	}
	return cell(row, i)
}

// setCell grows the row as needed so the value lands at the header position.
// Writing an empty value past the end of a short row is a no-op, so rows the
// run did not touch keep their original width.
func setCell(row []string, i int, value string) []string {
	if i >= len(row) && value == "" {
		return row
	}
	for len(row) <= i {
		row = append(row, "")
	}
	row[i] = value
	return row
}

// trimTrailingEmpty drops empty overflow cells past the declared header, so
// padding added for short rows never widens the file.
func trimTrailingEmpty(row []string, headerLen int) []string {
	for len(row) > headerLen && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}
