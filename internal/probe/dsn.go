package probe

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"projector/internal/config"
	apperrors "projector/internal/errors"
)

// DSNEnvPrefix prefixes the component overrides, e.g. PROJECTOR_PROBE_DSN_HOST.
const DSNEnvPrefix = config.EnvPrefix + "_PROBE_DSN"

// DSNParts overrides pieces of a backend's default DSN. Empty fields keep
// the default.
//
// Fields carry no envconfig tags: a tagged key such as USER would fall back
// to the unprefixed shell variable.
type DSNParts struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string

	// Params is an encoded query string without the leading '?'.
	Params string

	// SQLite is a file path or a full sqlite DSN.
	SQLite string
}

// IsZero reports whether no part is set.
func (p DSNParts) IsZero() bool {
	return p == DSNParts{}
}

// DSNPartsFromEnv reads PROJECTOR_PROBE_DSN_* variables.
func DSNPartsFromEnv() (DSNParts, error) {
	var p DSNParts
	if err := envconfig.Process(DSNEnvPrefix, &p); err != nil {
		return DSNParts{}, apperrors.NewConfigError("read "+DSNEnvPrefix+"_* environment", err)
	}
	return p, nil
}

// ResolveDSN picks the sink DSN for a suggested pipeline.
//
// An explicit DSN wins, then PROJECTOR_SINK_DSN, then the default DSN of
// backend with any PROJECTOR_PROBE_DSN_* parts applied. ok is false when
// nothing overrides the default.
func ResolveDSN(backend, explicit string) (dsn string, ok bool, err error) {
	if s := strings.TrimSpace(explicit); s != "" {
		return s, true, nil
	}
	var e struct {
		SinkDSN string `split_words:"true"`
	}
	if err := envconfig.Process(config.EnvPrefix, &e); err != nil {
		return "", false, apperrors.NewConfigError("read "+config.EnvPrefix+"_SINK_DSN", err)
	}
	if s := strings.TrimSpace(e.SinkDSN); s != "" {
		return s, true, nil
	}

	parts, err := DSNPartsFromEnv()
	if err != nil {
		return "", false, err
	}
	if parts.IsZero() {
		return "", false, nil
	}
	dsn, err = BuildDSN(backend, parts)
	if err != nil {
		return "", false, err
	}
	return dsn, true, nil
}

// BuildDSN applies parts to DefaultDSN(backend).
//
// For postgres and mssql the default URL keeps every component parts leaves
// empty. For sqlite, parts.SQLite is a path (wrapped as file:<path>) or, if it
// contains ':', a DSN used as is. Params are appended in every case.
func BuildDSN(backend string, parts DSNParts) (string, error) {
	backend = NormalizeBackend(backend)
	if backend == "sqlite" {
		return sqliteDSN(parts), nil
	}

	u, err := url.Parse(DefaultDSN(backend))
	if err != nil {
		return "", apperrors.NewConfigError("parse default dsn", err)
	}

	host, port := u.Hostname(), u.Port()
	if parts.Host != "" {
		host = parts.Host
	}
	if parts.Port != "" {
		port = parts.Port
	}
	u.Host = host + ":" + port

	user := u.User.Username()
	pass, _ := u.User.Password()
	if parts.User != "" {
		user = parts.User
	}
	if parts.Password != "" {
		pass = parts.Password
	}
	u.User = url.UserPassword(user, pass)

	q := u.Query()
	if parts.DB != "" {
		if backend == "mssql" {
			q.Set("database", parts.DB)
		} else {
			u.Path = "/" + parts.DB
		}
	}
	if err := mergeParams(q, parts.Params); err != nil {
		return "", err
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sqliteDSN(parts DSNParts) string {
	base := strings.TrimSpace(parts.SQLite)
	switch {
	case base == "":
		base = DefaultDSN("sqlite")
	case !strings.Contains(base, ":"):
		base = "file:" + base
	}
	params := strings.TrimSpace(parts.Params)
	if params == "" {
		return base
	}
	if strings.Contains(base, "?") {
		return base + "&" + params
	}
	return base + "?" + params
}

// mergeParams sets every key of raw on q, replacing defaults of the same name.
func mergeParams(q url.Values, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := url.ParseQuery(raw)
	if err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("dsn params %q", raw), err)
	}
	for k, vals := range parsed {
		if strings.TrimSpace(k) == "" {
			continue
		}
		q[k] = vals
	}
	return nil
}
