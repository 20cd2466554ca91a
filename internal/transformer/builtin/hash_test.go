package builtin

import (
	"math"
	"strconv"
	"testing"
	"time"

	"projector/pkg/records"
)

func TestHash_Deterministic_WithTrim(t *testing.T) {
	h := Hash{
		Fields:            []string{"species", "sepal_length", "measured_on"},
		TargetField:       "row_hash",
		IncludeFieldNames: true,
		TrimSpace:         true,
		Overwrite:         true,
	}

	day := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	r1 := records.Record{"species": " setosa ", "sepal_length": 5.1, "measured_on": day}
	r2 := records.Record{"species": "setosa", "sepal_length": 5.1, "measured_on": day}

	h.Apply([]records.Record{r1, r2})

	s1, ok := r1["row_hash"].(string)
	if !ok || len(s1) != 64 {
		t.Fatalf("row_hash = %T %v, want 64-char hex string", r1["row_hash"], r1["row_hash"])
	}
	if s2 := r2["row_hash"].(string); s1 != s2 {
		t.Fatalf("hashes differ after trimming: %q vs %q", s1, s2)
	}
}

func TestHash_ChangesWhenFieldChanges(t *testing.T) {
	h := Hash{Fields: []string{"a", "b"}, TargetField: "row_hash", Overwrite: true}

	a := records.Record{"a": 1.0, "b": "x"}
	b := records.Record{"a": 1.0, "b": "y"}
	h.Apply([]records.Record{a, b})

	if a["row_hash"] == b["row_hash"] {
		t.Fatalf("expected different hashes; both=%v", a["row_hash"])
	}
}

func TestHash_MissingVsEmptyDifferent(t *testing.T) {
	h := Hash{Fields: []string{"a", "b"}, TargetField: "row_hash", IncludeFieldNames: true, Overwrite: true}

	missing := records.Record{"a": 1.0}
	empty := records.Record{"a": 1.0, "b": ""}
	h.Apply([]records.Record{missing, empty})

	if missing["row_hash"] == empty["row_hash"] {
		t.Fatalf("missing and empty hashed the same: %v", missing["row_hash"])
	}
}

func TestHash_NaNIsStable(t *testing.T) {
	if HashValue(math.NaN(), false) != HashValue(math.NaN(), false) {
		t.Fatalf("NaN hash not deterministic")
	}
	if HashValue(math.NaN(), false) == HashValue(nil, false) {
		t.Fatalf("NaN and nil hashed the same")
	}
}

func TestHash_OverwriteFalsePreservesExisting(t *testing.T) {
	h := Hash{Fields: []string{"a"}, TargetField: "row_hash"}

	r := records.Record{"a": 1.0, "row_hash": "preexisting"}
	h.Apply([]records.Record{r})

	if got := r["row_hash"]; got != "preexisting" {
		t.Fatalf("row_hash = %v, want preexisting", got)
	}
}

func TestHash_DisabledIsNoop(t *testing.T) {
	r := records.Record{"a": 1.0}
	Hash{TargetField: "row_hash"}.Apply([]records.Record{r})
	if _, ok := r["row_hash"]; ok {
		t.Fatalf("hash without fields wrote a target")
	}
}

func BenchmarkHashApply(b *testing.B) {
	h := Hash{
		Fields:            []string{"sepal_length", "sepal_width", "petal_length", "petal_width", "species"},
		TargetField:       "row_hash",
		IncludeFieldNames: true,
		TrimSpace:         true,
		Overwrite:         true,
	}

	const n = 10_000
	recs := make([]records.Record, n)
	for i := 0; i < n; i++ {
		recs[i] = records.Record{
			"sepal_length": float64(i) / 10,
			"sepal_width":  3.5,
			"petal_length": 1.4,
			"petal_width":  0.2,
			"species":      " s-" + strconv.Itoa(i%3) + " ",
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Apply(recs)
	}
}
