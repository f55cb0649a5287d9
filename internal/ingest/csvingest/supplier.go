// Package csvingest turns supplier CSV drops into normalized reservation
// events. Files arrive in an environment-specific inbox directory and are
// moved to a done directory only after the whole file has been processed.
package csvingest

import (
	"strings"
)

// Supplier identifies the CSV layout of an inbox file.
type Supplier string

const (
	SupplierITrip      Supplier = "itrip"
	SupplierEvolve     Supplier = "evolve"
	SupplierEvolveTab2 Supplier = "evolve_tab2"
)

// DetectSupplier applies the deterministic detection rules: a filename
// ending in _tab2.csv is the Evolve owner-block export; a header containing
// "Property Name" is iTrip; anything else is the Evolve main export.
func DetectSupplier(filename string, header []string) Supplier {
	if strings.HasSuffix(strings.ToLower(filename), "_tab2.csv") {
		return SupplierEvolveTab2
	}
	for _, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "Property Name") {
			return SupplierITrip
		}
	}
	return SupplierEvolve
}

// columnMap names the header candidates for each logical field. Suppliers
// rename columns between exports, so each field carries alternates tried
// in order.
type columnMap struct {
	property []string
	checkIn  []string
	checkOut []string
	guest    []string
	status   []string
	supplier []string
	sameDay  []string
}

var supplierColumns = map[Supplier]columnMap{
	SupplierITrip: {
		property: []string{"Property Name"},
		checkIn:  []string{"Checkin", "Check-in Date", "Checkin Date"},
		checkOut: []string{"Checkout", "Check-out Date", "Checkout Date"},
		guest:    []string{"Tenant Name", "Guest Name"},
		supplier: []string{"Contractor Info", "Supplier Info"},
		sameDay:  []string{"Same Day?"},
	},
	SupplierEvolve: {
		property: []string{"Listing #", "Listing", "Property"},
		checkIn:  []string{"Check-In", "Check In", "Checkin"},
		checkOut: []string{"Check-Out", "Check Out", "Checkout"},
		guest:    []string{"Guest Name", "Guest"},
		status:   []string{"Status"},
	},
	SupplierEvolveTab2: {
		property: []string{"Listing #", "Listing", "Property"},
		checkIn:  []string{"Check-In", "Check In", "Checkin"},
		checkOut: []string{"Check-Out", "Check Out", "Checkout"},
		guest:    []string{"Guest Name", "Guest"},
		status:   []string{"Status"},
	},
}

// rowReader resolves logical fields against a parsed header row.
type rowReader struct {
	index map[string]int
	cols  columnMap
}

func newRowReader(header []string, supplier Supplier) *rowReader {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return &rowReader{index: index, cols: supplierColumns[supplier]}
}

func (r *rowReader) get(row []string, candidates []string) string {
	for _, name := range candidates {
		if i, ok := r.index[strings.ToLower(name)]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
	}
	return ""
}

func (r *rowReader) Property(row []string) string { return r.get(row, r.cols.property) }
func (r *rowReader) CheckIn(row []string) string  { return r.get(row, r.cols.checkIn) }
func (r *rowReader) CheckOut(row []string) string { return r.get(row, r.cols.checkOut) }
func (r *rowReader) Guest(row []string) string    { return r.get(row, r.cols.guest) }
func (r *rowReader) Status(row []string) string   { return r.get(row, r.cols.status) }
func (r *rowReader) Supplier(row []string) string { return r.get(row, r.cols.supplier) }
func (r *rowReader) SameDay(row []string) string  { return r.get(row, r.cols.sameDay) }
