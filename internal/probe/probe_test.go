package probe

import (
	"context"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"projector/internal/config"
	"projector/internal/dataset"
	"projector/internal/inference"
	"projector/internal/loader"
	"projector/pkg/records"
)

func irisPath(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("..", "..", "testdata", "iris.csv"))
	if err != nil {
		t.Fatalf("abs: %v", err)
	}
	return p
}

func TestNormalizeBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"postgres", "postgres"},
		{"PostgreSQL", "postgres"},
		{"mssql", "mssql"},
		{"sqlserver", "mssql"},
		{"SQLite", "sqlite"},
		{"  PoStGrEs  ", "postgres"},
		{"oracle", "postgres"},
		{"", "postgres"},
	}
	for _, tt := range tests {
		if got := NormalizeBackend(tt.in); got != tt.want {
			t.Fatalf("NormalizeBackend(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQualifyTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend, base, want string
	}{
		{"postgres", "iris", "public.iris"},
		{"mssql", "iris", "dbo.iris"},
		{"sqlite", "iris", "iris"},
		{"postgres", "  ", ""},
	}
	for _, tt := range tests {
		if got := QualifyTable(tt.backend, tt.base); got != tt.want {
			t.Fatalf("QualifyTable(%q, %q) = %q, want %q", tt.backend, tt.base, got, tt.want)
		}
	}
}

func TestUniqueSlugs(t *testing.T) {
	t.Parallel()

	got := uniqueSlugs([]string{"Sepal Length", "sepal-length", "", "Petal Width (cm)"})
	want := []string{"sepalLength", "sepalLength2", "col2", "petalWidthCm"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("uniqueSlugs = %v, want %v", got, want)
	}
}

func TestBaseName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"/data/iris.csv":        "iris",
		"/data/iris.csv.gz":     "iris",
		"/data/Sales Report.js": "salesReport",
		"/":                     "dataset",
	}
	for in, want := range tests {
		if got := baseName(in); got != want {
			t.Fatalf("baseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAnalyze_CountsAndTypes(t *testing.T) {
	t.Parallel()

	rows := []records.Record{
		{"id": "1", "color": "red", "note": ""},
		{"id": "2", "color": "red", "note": "x"},
		{"id": "3", "color": "red", "note": ""},
		{"id": "4", "color": "red", "note": ""},
		{"id": "5", "color": "blue", "note": ""},
	}
	ds := dataset.Create(rows, []string{"id", "color", "note"}, "/tmp/things.csv")

	res := Analyze(ds, 0, nil)
	if res.SampledRows != 5 || res.TotalRows != 5 {
		t.Fatalf("rows = %d/%d, want 5/5", res.SampledRows, res.TotalRows)
	}
	if len(res.Columns) != 3 {
		t.Fatalf("columns = %d, want 3", len(res.Columns))
	}

	id := res.Columns[0]
	if id.Type.Type != inference.KindNumber || id.Distinct != 5 || id.NonEmpty != 5 {
		t.Fatalf("id column = %+v", id)
	}
	color := res.Columns[1]
	if color.Type.Type != inference.KindString || color.Distinct != 2 {
		t.Fatalf("color column = %+v", color)
	}
	note := res.Columns[2]
	if note.NonEmpty != 1 || !note.Type.Null {
		t.Fatalf("note column = %+v", note)
	}
	if res.Key != "id" {
		t.Fatalf("Key = %q, want id", res.Key)
	}
}

func TestAnalyze_MaxRows(t *testing.T) {
	t.Parallel()

	var rows []records.Record
	for _, v := range []string{"a", "b", "c", "d"} {
		rows = append(rows, records.Record{"v": v})
	}
	ds := dataset.Create(rows, []string{"v"}, "")

	if got := Analyze(ds, 2, nil); got.SampledRows != 2 || got.Columns[0].Distinct != 2 {
		t.Fatalf("MaxRows=2 sampled %d rows, %d distinct", got.SampledRows, got.Columns[0].Distinct)
	}
	if got := Analyze(ds, -1, nil); got.SampledRows != 4 {
		t.Fatalf("MaxRows=-1 sampled %d rows, want 4", got.SampledRows)
	}
}

func TestCountDistinct_Caps(t *testing.T) {
	t.Parallel()

	values := make([]string, distinctCap+10)
	for i := range values {
		values[i] = "v" + strconv.Itoa(i)
	}
	nonEmpty, distinct, capped := countDistinct(values)
	if nonEmpty != len(values) {
		t.Fatalf("nonEmpty = %d, want %d", nonEmpty, len(values))
	}
	if distinct != distinctCap || !capped {
		t.Fatalf("distinct = %d capped = %t, want %d true", distinct, capped, distinctCap)
	}
}

func TestInferKeyColumn(t *testing.T) {
	t.Parallel()

	cols := []Column{
		{Slug: "a", Distinct: 3},
		{Slug: "b", Distinct: 7},
		{Slug: "c", Distinct: 7},
	}
	if got := InferKeyColumn(cols); got != "b" {
		t.Fatalf("InferKeyColumn = %q, want b", got)
	}
	if got := InferKeyColumn([]Column{{Slug: "a"}}); got != "" {
		t.Fatalf("InferKeyColumn(empty) = %q, want empty", got)
	}
}

func TestSelectBreakouts(t *testing.T) {
	t.Parallel()

	enum := inference.TypeDescriptor{Type: inference.KindEnum}
	cols := []Column{
		{Slug: "id", Type: inference.TypeDescriptor{Type: inference.KindNumber}, NonEmpty: 100, Distinct: 2},
		{Slug: "shape", Type: enum, NonEmpty: 100, Distinct: 10},
		{Slug: "color", Type: enum, NonEmpty: 100, Distinct: 5},
		{Slug: "size", Type: enum, NonEmpty: 100, Distinct: 5},
		{Slug: "tag", Type: enum, NonEmpty: 10, Distinct: 10},
		{Slug: "empty", Type: enum},
	}
	got := SelectBreakouts(cols)
	want := []string{"color", "size", "shape"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SelectBreakouts = %v, want %v", got, want)
	}
}

func TestFormatUniquenessReport(t *testing.T) {
	t.Parallel()

	if got := FormatUniquenessReport(Result{}); got != "uniqueness: no rows sampled" {
		t.Fatalf("empty report = %q", got)
	}

	r := Result{
		SampledRows: 4,
		Columns: []Column{
			{Slug: "id", NonEmpty: 4, Distinct: 4},
			{Slug: "kind", NonEmpty: 4, Distinct: 1},
			{Slug: "blank"},
		},
	}
	got := FormatUniquenessReport(r)
	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("report lines = %d, want 4:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "uniqueness report:\tsampled_rows=4") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "kind") || !strings.Contains(lines[2], "25.0%") {
		t.Fatalf("first row = %q, want kind at 25.0%%", lines[2])
	}
	if !strings.HasPrefix(lines[3], "id") || !strings.Contains(lines[3], "100.0%") {
		t.Fatalf("second row = %q, want id at 100.0%%", lines[3])
	}
}

func TestProbe_Iris(t *testing.T) {
	t.Parallel()

	path := irisPath(t)
	res, err := Probe(context.Background(), loader.Loader{}, Options{Source: config.Source{Path: path}})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.Name != "iris" {
		t.Fatalf("Name = %q, want iris", res.Name)
	}
	if res.SampledRows != 150 {
		t.Fatalf("SampledRows = %d, want 150", res.SampledRows)
	}
	if res.Key != "petalLength" {
		t.Fatalf("Key = %q, want petalLength", res.Key)
	}
	if !reflect.DeepEqual(res.Breakouts, []string{"species"}) {
		t.Fatalf("Breakouts = %v, want [species]", res.Breakouts)
	}

	summary := RenderSummary(res)
	for _, want := range []string{
		"sample_rows=150\n",
		"key=petalLength\n",
		"sepal length,sepalLength,number,false,\n",
		"species,species,enum,false,\n",
	} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestSuggestPipeline(t *testing.T) {
	t.Parallel()

	path := irisPath(t)
	res, err := Probe(context.Background(), loader.Loader{}, Options{
		Source: config.Source{Path: path},
		Name:   "flowers",
	})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	p := SuggestPipeline(res, config.Source{}, "sqlite")
	if p.Job != "flowers" || p.Source.Path != path {
		t.Fatalf("job/source = %q/%q", p.Job, p.Source.Path)
	}
	if p.Sink.Kind != "sqlite" || p.Sink.Table != "flowers" || p.Sink.DSN != DefaultDSN("sqlite") {
		t.Fatalf("sink = %+v", p.Sink)
	}
	if p.Sink.RowHash.TargetField != RowHashField || len(p.Sink.RowHash.Fields) != 5 {
		t.Fatalf("row hash = %+v", p.Sink.RowHash)
	}
	if len(p.Map) != 6 {
		t.Fatalf("map specs = %d, want 6", len(p.Map))
	}
	last := p.Map[5]
	if last.Input != "species" || last.Output != "speciesIndex" || last.Fn.Name() != "enum_index" {
		t.Fatalf("breakout spec = %+v", last)
	}
	if issues := config.ValidatePipeline(p); config.HasErrors(issues) {
		t.Fatalf("suggested pipeline does not validate: %v", issues)
	}
}
