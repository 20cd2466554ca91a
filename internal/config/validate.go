package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path uses the document's key names,
// e.g. "map[1].output".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// ValidatePipeline checks struct constraints and cross-field rules.
// It never fails; problems come back as issues, errors first.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if err := structValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fieldPath(fe.Namespace()),
					Message:  describe(fe),
				})
			}
		} else {
			issues = append(issues, Issue{Severity: SeverityError, Path: "", Message: err.Error()})
		}
	}

	for i, m := range p.Map {
		if m.Fn.IsZero() && len(m.Args) > 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("map[%d].args", i),
				Message:  "args given without fn; the identity mapping takes none",
			})
		}
	}

	seen := make(map[string]int, len(p.Map))
	for i, m := range p.Map {
		if m.Output == "" {
			continue
		}
		if j, dup := seen[m.Output]; dup {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("map[%d].output", i),
				Message:  fmt.Sprintf("output %q also produced by map[%d]; the later entry wins", m.Output, j),
			})
			continue
		}
		seen[m.Output] = i
	}

	if p.Output.Path != "" && p.Output.Format == "" && OutputFormat(p.Output) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.format",
			Message:  fmt.Sprintf("cannot infer format from %q; set csv or json", p.Output.Path),
		})
	}

	if !p.Sink.Enabled() && p.Sink.RowHash.Enabled() {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "sink.row_hash",
			Message:  "row_hash is ignored without a sink",
		})
	}

	if p.Output.Path == "" && !p.Sink.Enabled() {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output",
			Message:  "no output path or sink; the run only computes statistics",
		})
	}

	sortIssues(issues)
	return issues
}

// OutputFormat returns the configured format or the one implied by the path.
func OutputFormat(o Output) string {
	if o.Format != "" {
		return o.Format
	}
	switch strings.ToLower(filepath.Ext(o.Path)) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	}
	return ""
}

// fieldPath turns "Pipeline.map[1].output" into "map[1].output".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_with":
		return fmt.Sprintf("is required when %s is set", strings.ToLower(fe.Param()))
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "url":
		return fmt.Sprintf("must be a URL, got %q", fmt.Sprint(fe.Value()))
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func sortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity == SeverityError && issues[j].Severity != SeverityError
	})
}
