package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"

	"github.com/torosent/fluvial/internal/record"
	tabular "github.com/torosent/fluvial/internal/table"
	"github.com/torosent/fluvial/internal/window"
)

// flatBatchRows is how many flat records the table writer collects before it
// renders them as one table.
const flatBatchRows = 20

// nullCell is printed for null values; go-pretty renders empty strings as
// blank cells, which are easy to miss.
const nullCell = "null"

// Writer emits stream items in one output format.
type Writer interface {
	WriteInstance(inst window.Instance) error
	WriteRecord(rec record.Record) error
	Flush() error
}

// NewWriter returns the writer for format ("json" or "table").
func NewWriter(format string, w io.Writer) (Writer, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return NewJSONWriter(w), nil
	case "table":
		return NewTableWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	enc *json.Encoder
}

func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(w)}
}

func (j *JSONWriter) WriteInstance(inst window.Instance) error {
	return j.enc.Encode(inst)
}

func (j *JSONWriter) WriteRecord(rec record.Record) error {
	return j.enc.Encode(rec)
}

func (j *JSONWriter) Flush() error { return nil }

// TableWriter renders each instance as a table of its past window, with the
// target in the footer. Flat records are rendered in batches.
type TableWriter struct {
	w       io.Writer
	mem     memory.Allocator
	pending []record.Record
}

func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{w: w, mem: memory.NewGoAllocator()}
}

func (t *TableWriter) WriteInstance(inst window.Instance) error {
	rec, err := tabular.FromFeatures(t.mem, inst.Past)
	if err != nil {
		return fmt.Errorf("instance %d: %w", inst.Seq, err)
	}
	defer rec.Release()

	if _, err := fmt.Fprintf(t.w, "#%d %s\n", inst.Seq, inst.ID); err != nil {
		return err
	}
	tw := t.newTable()
	tw.AppendHeader(toRow(append([]string{"t"}, tabular.Header(rec)...)))
	for i, cells := range tabular.Rows(rec) {
		tw.AppendRow(toRow(append([]string{fmt.Sprintf("-%d", len(inst.Past)-i)}, nullify(cells, rec, i)...)))
	}
	tw.AppendFooter(table.Row{"target", targetText(inst.Target)})
	tw.Render()
	_, err = io.WriteString(t.w, "\n")
	return err
}

func (t *TableWriter) WriteRecord(rec record.Record) error {
	t.pending = append(t.pending, rec)
	if len(t.pending) >= flatBatchRows {
		return t.Flush()
	}
	return nil
}

// Flush renders buffered flat records.
func (t *TableWriter) Flush() error {
	if len(t.pending) == 0 {
		return nil
	}
	rows := make([]record.Features, len(t.pending))
	for i, rec := range t.pending {
		rows[i] = rec.Features
	}
	rec, err := tabular.FromFeatures(t.mem, rows)
	if err != nil {
		return err
	}
	defer rec.Release()

	tw := t.newTable()
	tw.AppendHeader(toRow(append(tabular.Header(rec), "y")))
	for i, cells := range tabular.Rows(rec) {
		tw.AppendRow(toRow(append(nullify(cells, rec, i), targetText(t.pending[i].Target))))
	}
	tw.Render()
	t.pending = t.pending[:0]
	_, err = io.WriteString(t.w, "\n")
	return err
}

func (t *TableWriter) newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(t.w)
	// Don't uppercase column names.
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault
	return tw
}

func nullify(cells []string, rec arrow.Record, row int) []string {
	for c := range cells {
		if rec.Column(c).IsNull(row) {
			cells[c] = nullCell
		}
	}
	return cells
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func targetText(t record.Target) string {
	if !t.IsMulti() {
		if t.Value().IsNull() {
			return nullCell
		}
		return t.Value().String()
	}
	parts := make([]string, len(t.Named()))
	for i, f := range t.Named() {
		val := f.Value.String()
		if f.Value.IsNull() {
			val = nullCell
		}
		parts[i] = f.Name + "=" + val
	}
	return strings.Join(parts, " ")
}
