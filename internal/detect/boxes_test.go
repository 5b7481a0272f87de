package detect

import (
	"math"
	"testing"
)

func TestCheckRecord_ValidBox(t *testing.T) {
	ok, reason := CheckRecord(Record{Label: "dog", Box: Box{100, 200, 300, 400}})
	if !ok {
		t.Errorf("expected valid record, got reason %q", reason)
	}
}

func TestCheckRecord_Invariants(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		reason Reason
	}{
		{"empty label", Record{Label: "", Box: Box{0, 0, 10, 10}}, ReasonEmptyLabel},
		{"negative coord", Record{Label: "dog", Box: Box{-5, 0, 10, 10}}, ReasonOutOfRange},
		{"above 1000", Record{Label: "dog", Box: Box{0, 0, 10, 1001}}, ReasonOutOfRange},
		{"inverted y", Record{Label: "dog", Box: Box{300, 100, 200, 400}}, ReasonDegenerateBox},
		{"inverted x", Record{Label: "dog", Box: Box{100, 400, 300, 200}}, ReasonDegenerateBox},
		{"zero width", Record{Label: "dog", Box: Box{100, 200, 300, 200}}, ReasonDegenerateBox},
		{"zero height", Record{Label: "dog", Box: Box{100, 200, 100, 400}}, ReasonDegenerateBox},
		{"nan coord", Record{Label: "dog", Box: Box{math.NaN(), 0, 10, 10}}, ReasonNotNumeric},
		{"inf coord", Record{Label: "dog", Box: Box{0, 0, math.Inf(1), 10}}, ReasonNotNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := CheckRecord(tt.record)
			if ok {
				t.Fatalf("expected rejection, record accepted")
			}
			if reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, reason)
			}
		})
	}
}

func TestCheckRecord_BoundaryValues(t *testing.T) {
	// Full-frame box touches both bounds and must pass.
	ok, reason := CheckRecord(Record{Label: "dog", Box: Box{0, 0, 1000, 1000}})
	if !ok {
		t.Errorf("full-frame box rejected with reason %q", reason)
	}
}

func TestFilterRecords_PartialSuccess(t *testing.T) {
	records := []Record{
		{Label: "dog", Box: Box{100, 100, 300, 300}},
		{Label: "dog", Box: Box{300, 100, 100, 300}}, // inverted
		{Label: "cat", Box: Box{50, 50, 900, 900}},
		{Label: "", Box: Box{0, 0, 10, 10}}, // no label
	}

	valid, dropped := FilterRecords(records)
	if len(valid) != 2 {
		t.Fatalf("expected 2 valid records, got %d", len(valid))
	}
	if len(dropped) != 2 {
		t.Fatalf("expected 2 dropped records, got %d", len(dropped))
	}
	if valid[0].Label != "dog" || valid[1].Label != "cat" {
		t.Errorf("unexpected survivors: %+v", valid)
	}
}

func TestFilterRecords_AllInvalid(t *testing.T) {
	records := []Record{
		{Label: "dog", Box: Box{300, 100, 100, 300}},
	}
	valid, dropped := FilterRecords(records)
	if len(valid) != 0 {
		t.Errorf("expected empty result, got %d records", len(valid))
	}
	if len(dropped) != 1 {
		t.Errorf("expected 1 dropped, got %d", len(dropped))
	}
}
