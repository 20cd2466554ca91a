package html

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"projector/internal/config"
	apperrors "projector/internal/errors"
	"projector/pkg/records"
)

const page = `<html><body>
<table id="nav"><tr><td>menu</td></tr></table>
<table class="data">
  <thead><tr><th>Sepal Length</th><th>Species</th></tr></thead>
  <tbody>
    <tr><td> 5.1 </td><td>setosa</td></tr>
    <tr><td>7.0</td><td>
        versicolor
    </td></tr>
    <tr><td colspan="2">n/a</td></tr>
    <tr><td>1<table><tr><td>nested</td></tr></table></td><td>x</td></tr>
  </tbody>
</table>
</body></html>`

func TestParse_SelectsTableWithTHead(t *testing.T) {
	t.Parallel()

	got, err := Parse(context.Background(), strings.NewReader(page), config.Options{
		"table_selector":    "table.data",
		"normalize_headers": true,
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := records.Table{
		Fields: []string{"sepal_length", "species"},
		Rows: [][]string{
			{"5.1", "setosa"},
			{"7.0", "versicolor"},
			{"n/a", "n/a"},
			{"1nested", "x"},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse = %#v, want %#v", got, want)
	}
}

func TestParse_FirstRowHeaderAndIndex(t *testing.T) {
	t.Parallel()

	doc := `<table><tr><td>a</td></tr></table>
<table><tr><th>x</th><th>y</th></tr><tr><td>1</td><td>2</td><td>3</td></tr></table>`

	got, err := Parse(context.Background(), strings.NewReader(doc), config.Options{"table_index": 1})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := records.Table{Fields: []string{"x", "y", ""}, Rows: [][]string{{"1", "2", "3"}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse = %#v, want %#v", got, want)
	}
}

func TestParse_NoHeader(t *testing.T) {
	t.Parallel()

	doc := `<table><tr><td>1</td><td>2</td></tr></table>`
	got, err := Parse(context.Background(), strings.NewReader(doc), config.Options{"has_header": false})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := records.Table{Fields: []string{"", ""}, Rows: [][]string{{"1", "2"}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse = %#v, want %#v", got, want)
	}
}

func TestParse_MissingTable(t *testing.T) {
	t.Parallel()

	_, err := Parse(context.Background(), strings.NewReader("<p>no tables</p>"), nil)
	if !errors.Is(err, apperrors.ErrParse) {
		t.Fatalf("err = %v, want parse error", err)
	}
}
