package detect

import "math"

// Reason codes a record can be rejected for.
type Reason string

const (
	ReasonOK            Reason = "ok"
	ReasonEmptyLabel    Reason = "empty-label"
	ReasonNotNumeric    Reason = "not-numeric"
	ReasonOutOfRange    Reason = "out-of-range"
	ReasonDegenerateBox Reason = "degenerate-box"
)

// CheckRecord validates the geometric and numeric invariants of a single
// record: all four box values finite, within [0, CoordMax], ymin < ymax,
// xmin < xmax, and a non-empty label. Zero-area and inverted boxes are
// rejected.
func CheckRecord(r Record) (bool, Reason) {
	if r.Label == "" {
		return false, ReasonEmptyLabel
	}
	for _, v := range r.Box {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false, ReasonNotNumeric
		}
		if v < 0 || v > CoordMax {
			return false, ReasonOutOfRange
		}
	}
	if r.Box.YMin() >= r.Box.YMax() || r.Box.XMin() >= r.Box.XMax() {
		return false, ReasonDegenerateBox
	}
	return true, ReasonOK
}

// FilterRecords drops records that fail CheckRecord and returns the survivors
// together with the rejection reasons of the dropped ones. Partial success is
// preferred over total failure: an all-invalid input yields an empty slice,
// never an error.
func FilterRecords(records []Record) ([]Record, []Reason) {
	valid := make([]Record, 0, len(records))
	var dropped []Reason
	for _, r := range records {
		if ok, reason := CheckRecord(r); ok {
			valid = append(valid, r)
		} else {
			dropped = append(dropped, reason)
		}
	}
	return valid, dropped
}
