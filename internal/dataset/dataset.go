// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

// Package dataset provides the in-memory tabular representation consumed
// by the validation engine and the domain analysis engines.
//
// A Dataset is columnar: named columns of loosely-typed cells. Loaders
// hand over whatever cell types the source produced (strings from CSV,
// numbers from JSON); accessors coerce on read via spf13/cast and report
// whether the coercion succeeded. Nil cells represent missing values.
package dataset

import (
	"math"
	"sort"
	"time"

	"github.com/spf13/cast"
)

// Dataset is an ordered collection of named columns with equal row counts.
// Not safe for concurrent mutation; analysis reads a dataset snapshot.
type Dataset struct {
	order []string
	cells map[string][]any
	rows  int
}

// New creates an empty dataset with the given column order.
func New(columns ...string) *Dataset {
	d := &Dataset{
		order: make([]string, 0, len(columns)),
		cells: make(map[string][]any, len(columns)),
	}
	for _, c := range columns {
		d.addColumn(c)
	}
	return d
}

// FromRecords builds a dataset from row maps. Column order follows first
// appearance across the records; rows missing a column get nil cells.
func FromRecords(records []map[string]any) *Dataset {
	d := New()
	for _, rec := range records {
		d.AppendRow(rec)
	}
	return d
}

func (d *Dataset) addColumn(name string) {
	if _, ok := d.cells[name]; ok {
		return
	}
	d.order = append(d.order, name)
	col := make([]any, d.rows)
	d.cells[name] = col
}

// AppendRow appends one row. Columns absent from the row get nil;
// new columns are backfilled with nil for existing rows.
func (d *Dataset) AppendRow(row map[string]any) {
	for name := range row {
		d.addColumn(name)
	}
	for name, col := range d.cells {
		v, ok := row[name]
		if !ok {
			v = nil
		}
		d.cells[name] = append(col, v)
	}
	d.rows++
}

// Len returns the row count.
func (d *Dataset) Len() int {
	return d.rows
}

// Columns returns the column names in order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.cells[name]
	return ok
}

// Column returns the raw cells of a column, or nil if absent.
func (d *Dataset) Column(name string) []any {
	return d.cells[name]
}

// Value returns the raw cell at (column, row), or nil when out of range.
func (d *Dataset) Value(column string, row int) any {
	col, ok := d.cells[column]
	if !ok || row < 0 || row >= len(col) {
		return nil
	}
	return col[row]
}

// Row returns one row as a map. Shared cell values; treat as read-only.
func (d *Dataset) Row(i int) map[string]any {
	out := make(map[string]any, len(d.order))
	for _, name := range d.order {
		out[name] = d.cells[name][i]
	}
	return out
}

// Float coerces the cell at (column, row) to float64.
// Returns false for nil cells, absent columns, and failed coercion.
func (d *Dataset) Float(column string, row int) (float64, bool) {
	v := d.Value(column, row)
	if v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// String coerces the cell at (column, row) to a string.
// Returns false for nil cells and absent columns.
func (d *Dataset) String(column string, row int) (string, bool) {
	v := d.Value(column, row)
	if v == nil {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

// Time coerces the cell at (column, row) to a time.Time.
// Accepts time.Time values and the common textual layouts cast knows.
func (d *Dataset) Time(column string, row int) (time.Time, bool) {
	v := d.Value(column, row)
	if v == nil {
		return time.Time{}, false
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Select returns a new dataset containing the given rows in the given
// order. Out-of-range indices are skipped.
func (d *Dataset) Select(rows []int) *Dataset {
	out := New(d.order...)
	for _, i := range rows {
		if i < 0 || i >= d.rows {
			continue
		}
		out.AppendRow(d.Row(i))
	}
	return out
}

// GroupBy partitions rows by the string value of a column, preserving
// row order within each group. Rows with nil cells group under "".
func (d *Dataset) GroupBy(column string) map[string]*Dataset {
	groups := make(map[string]*Dataset)
	for i := 0; i < d.rows; i++ {
		key, _ := d.String(column, i)
		g, ok := groups[key]
		if !ok {
			g = New(d.order...)
			groups[key] = g
		}
		g.AppendRow(d.Row(i))
	}
	return groups
}

// SortByTime returns a new dataset sorted ascending by the timestamp
// column. Rows whose timestamps do not parse sort before all parsed
// rows, keeping their relative order.
func (d *Dataset) SortByTime(column string) *Dataset {
	idx := make([]int, d.rows)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ta, oka := d.Time(column, idx[a])
		tb, okb := d.Time(column, idx[b])
		if !oka || !okb {
			return !oka && okb
		}
		return ta.Before(tb)
	})
	return d.Select(idx)
}

// CountNonNull returns the number of non-nil cells in a column.
func (d *Dataset) CountNonNull(column string) int {
	n := 0
	for _, v := range d.cells[column] {
		if v != nil {
			n++
		}
	}
	return n
}

// floats collects the coercible numeric values of a column.
func (d *Dataset) floats(column string) []float64 {
	col, ok := d.cells[column]
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(col))
	for i := range col {
		if f, ok := d.Float(column, i); ok {
			out = append(out, f)
		}
	}
	return out
}

// Mean returns the mean of the numeric values in a column.
// Returns false when the column has no numeric values.
func (d *Dataset) Mean(column string) (float64, bool) {
	vals := d.floats(column)
	if len(vals) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true
}

// Std returns the sample standard deviation of the numeric values in a
// column. Returns 0 (true) for a single value, false for none.
func (d *Dataset) Std(column string) (float64, bool) {
	vals := d.floats(column)
	if len(vals) == 0 {
		return 0, false
	}
	if len(vals) == 1 {
		return 0, true
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(vals)-1)), true
}

// Min returns the minimum numeric value in a column.
func (d *Dataset) Min(column string) (float64, bool) {
	vals := d.floats(column)
	if len(vals) == 0 {
		return 0, false
	}
	min := vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
	}
	return min, true
}

// Max returns the maximum numeric value in a column.
func (d *Dataset) Max(column string) (float64, bool) {
	vals := d.floats(column)
	if len(vals) == 0 {
		return 0, false
	}
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max {
			max = v
		}
	}
	return max, true
}

// Sum returns the sum of the numeric values in a column.
func (d *Dataset) Sum(column string) float64 {
	sum := 0.0
	for _, v := range d.floats(column) {
		sum += v
	}
	return sum
}
