// Package config defines the pipeline document read by cmd/project, how it
// is loaded (YAML or JSON, then PROJECTOR_* environment overrides) and how it
// is validated.
package config

import (
	"time"

	"projector/internal/mapping"
	"projector/internal/stats"
	"projector/internal/transformer/builtin"
)

// Pipeline is one load → stats → cast → map → export/sink run.
type Pipeline struct {
	Job     string            `json:"job" yaml:"job"`
	Source  Source            `json:"source" yaml:"source"`
	Stats   stats.Config      `json:"stats" yaml:"stats"`
	Cast    *bool             `json:"cast,omitempty" yaml:"cast,omitempty"`
	Map     []mapping.MapSpec `json:"map,omitempty" yaml:"map,omitempty" validate:"dive"`
	Output  Output            `json:"output" yaml:"output"`
	Sink    Sink              `json:"sink" yaml:"sink"`
	Metrics Metrics           `json:"metrics" yaml:"metrics"`
	Logging Logging           `json:"logging" yaml:"logging"`
}

// CastEnabled reports whether the cast step runs. It defaults to true.
func (p Pipeline) CastEnabled() bool {
	return p.Cast == nil || *p.Cast
}

// Source locates the input dataset.
type Source struct {
	// Path is a file path, file:// URL or http(s) URL. .gz and .bz2 are
	// decompressed.
	Path string `json:"path" yaml:"path" validate:"required"`
	// Format overrides detection by extension.
	Format  string        `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=csv tsv json jsonl html xlsx"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gte=0"`
	Options Options       `json:"options,omitempty" yaml:"options,omitempty"`
}

// Output writes the projected dataset to a file.
type Output struct {
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=csv json"`
	// Stats also writes the statistics as JSON next to Path.
	Stats bool `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// Sink writes the projected dataset to a SQL table.
type Sink struct {
	Kind      string       `json:"kind,omitempty" yaml:"kind,omitempty" validate:"omitempty,oneof=sqlite postgres mssql"`
	DSN       string       `json:"dsn,omitempty" yaml:"dsn,omitempty" validate:"required_with=Kind"`
	Table     string       `json:"table,omitempty" yaml:"table,omitempty" validate:"required_with=Kind"`
	BatchSize int          `json:"batch_size,omitempty" yaml:"batch_size,omitempty" validate:"gte=0"`
	RowHash   builtin.Hash `json:"row_hash,omitempty" yaml:"row_hash,omitempty"`
}

// Enabled reports whether a sink is configured.
func (s Sink) Enabled() bool { return s.Kind != "" }

// Metrics selects a metrics backend.
type Metrics struct {
	Backend        string        `json:"backend,omitempty" yaml:"backend,omitempty" validate:"omitempty,oneof=none datadog pushgateway"`
	Tags           []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	PushgatewayURL string        `json:"pushgateway_url,omitempty" yaml:"pushgateway_url,omitempty" split_words:"true" validate:"omitempty,url"`
	FlushEvery     time.Duration `json:"flush_every,omitempty" yaml:"flush_every,omitempty" split_words:"true"`
}

// Logging configures the slog handler.
type Logging struct {
	Level    string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	Format   string `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=json text"`
	Output   string `json:"output,omitempty" yaml:"output,omitempty" validate:"omitempty,oneof=stdout stderr file both"`
	FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty" split_words:"true"`
}
