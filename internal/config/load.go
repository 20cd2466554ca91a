package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	apperrors "projector/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. PROJECTOR_LOG_LEVEL.
const EnvPrefix = "PROJECTOR"

// env lists the settings that may be overridden from the environment.
// Keys come from field names only; a tagged key would also match the
// unprefixed variable.
type env struct {
	Job        string
	SourcePath string `split_words:"true"`
	OutputPath string `split_words:"true"`
	SinkDSN    string `split_words:"true"`
	Metrics    Metrics
	Log        Logging
}

// Load reads a pipeline document and applies environment overrides.
// Files ending in .json are decoded as JSON, anything else as YAML.
func Load(path string) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, apperrors.NewConfigError("read config "+path, err)
	}
	p, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return Pipeline{}, err
	}
	if err := ApplyEnv(&p); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

// Decode parses a pipeline document. Unknown keys are rejected.
func Decode(data []byte, ext string) (Pipeline, error) {
	var p Pipeline
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, apperrors.NewConfigError("decode json config", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, apperrors.NewConfigError("decode yaml config", err)
		}
	}
	return p, nil
}

// ApplyEnv overlays PROJECTOR_* variables that are set onto p.
func ApplyEnv(p *Pipeline) error {
	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("read %s_* environment", EnvPrefix), err)
	}

	setString(&p.Job, e.Job)
	setString(&p.Source.Path, e.SourcePath)
	setString(&p.Output.Path, e.OutputPath)
	setString(&p.Sink.DSN, e.SinkDSN)

	setString(&p.Metrics.Backend, e.Metrics.Backend)
	setString(&p.Metrics.PushgatewayURL, e.Metrics.PushgatewayURL)
	if len(e.Metrics.Tags) > 0 {
		p.Metrics.Tags = e.Metrics.Tags
	}
	if e.Metrics.FlushEvery > 0 {
		p.Metrics.FlushEvery = e.Metrics.FlushEvery
	}

	setString(&p.Logging.Level, e.Log.Level)
	setString(&p.Logging.Format, e.Log.Format)
	setString(&p.Logging.Output, e.Log.Output)
	setString(&p.Logging.FilePath, e.Log.FilePath)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
