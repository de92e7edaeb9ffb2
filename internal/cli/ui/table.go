// Package ui renders coloured tables and messages for the recruitops CLI.
package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table is a column-aligned table with a bold header row
type Table struct {
	w       io.Writer
	headers []string
	rows    [][]string
	noColor bool
	right   map[int]bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{w: w, headers: headers, noColor: noColor, right: map[int]bool{}}
}

// AlignRight right-aligns the numbered columns
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

// AddRow appends a row; missing cells render empty
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len is the number of data rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(cell))
			}
		}
	}

	head := newColor(t.noColor, color.Bold, color.FgCyan)
	rule := newColor(t.noColor, color.FgHiBlack)

	for i, h := range t.headers {
		head.Fprint(t.w, t.pad(i, h, widths[i]))
		t.gap(i)
	}
	fmt.Fprintln(t.w)
	for i, wd := range widths {
		rule.Fprint(t.w, strings.Repeat("─", wd))
		t.gap(i)
	}
	fmt.Fprintln(t.w)

	for _, row := range t.rows {
		for i := range t.headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			fmt.Fprint(t.w, t.pad(i, cell, widths[i]))
			t.gap(i)
		}
		fmt.Fprintln(t.w)
	}
}

func (t *Table) gap(i int) {
	if i < len(t.headers)-1 {
		fmt.Fprint(t.w, "  ")
	}
}

// pad aligns a cell. The last left-aligned column is not padded so lines
// carry no trailing spaces.
func (t *Table) pad(col int, s string, width int) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	if t.right[col] {
		return strings.Repeat(" ", n) + s
	}
	if col == len(t.headers)-1 {
		return s
	}
	return s + strings.Repeat(" ", n)
}

// KeyValue renders aligned "key: value" lines
type KeyValue struct {
	w       io.Writer
	keys    []string
	values  []string
	noColor bool
}

// NewKeyValue creates a key/value block
func NewKeyValue(w io.Writer, noColor bool) *KeyValue {
	return &KeyValue{w: w, noColor: noColor}
}

// Add appends a pair
func (kv *KeyValue) Add(key string, value any) {
	kv.keys = append(kv.keys, key)
	kv.values = append(kv.values, fmt.Sprint(value))
}

// Render writes the block
func (kv *KeyValue) Render() {
	width := 0
	for _, k := range kv.keys {
		width = max(width, utf8.RuneCountInString(k)+1)
	}
	c := newColor(kv.noColor, color.FgCyan)
	for i, k := range kv.keys {
		label := k + ":"
		c.Fprint(kv.w, label+strings.Repeat(" ", width-utf8.RuneCountInString(label)))
		fmt.Fprintf(kv.w, " %s\n", kv.values[i])
	}
}

// Header writes a bold title underlined with a rule
func Header(w io.Writer, title string, noColor bool) {
	newColor(noColor, color.Bold, color.FgCyan).Fprintln(w, title)
	newColor(noColor, color.FgHiBlack).Fprintln(w, strings.Repeat("─", utf8.RuneCountInString(title)))
}

func newColor(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}
