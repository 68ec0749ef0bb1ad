package store

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// DataBackendType names a supported database backend.
type DataBackendType string

const (
	BackendSQLite DataBackendType = "sqlite"
	BackendTurso  DataBackendType = "turso"
)

// DataBackend abstracts where the session database lives: a local SQLite
// file (or in-memory, for tests) or a remote Turso database.
type DataBackend interface {
	Type() DataBackendType
	Connect() (*sql.DB, error)

	// Description is logged at startup so operators can tell which
	// backend a running instance picked.
	Description() string
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend DataBackendType `json:"backend"`

	// SQLite only. A file path or ":memory:".
	SQLitePath string `json:"sqlitePath,omitempty"`

	// Turso only.
	TursoURL   string `json:"tursoUrl,omitempty"`
	TursoToken string `json:"tursoToken,omitempty"`
}

// ConfigFromEnv reads DB_BACKEND ("sqlite" or "turso"), SQLITE_PATH,
// TURSO_DATABASE_URL and TURSO_AUTH_TOKEN. With DB_BACKEND unset, the
// presence of a Turso URL selects turso, otherwise sqlite.
func ConfigFromEnv() Config {
	backend := DataBackendType(os.Getenv("DB_BACKEND"))
	if backend == "" {
		if os.Getenv("TURSO_DATABASE_URL") != "" {
			backend = BackendTurso
		} else {
			backend = BackendSQLite
		}
	}

	cfg := Config{Backend: backend}
	switch backend {
	case BackendTurso:
		cfg.TursoURL = os.Getenv("TURSO_DATABASE_URL")
		cfg.TursoToken = os.Getenv("TURSO_AUTH_TOKEN")
	case BackendSQLite:
		cfg.SQLitePath = os.Getenv("SQLITE_PATH")
		if cfg.SQLitePath == "" {
			cfg.SQLitePath = "sentimetrics.db"
		}
	}
	return cfg
}

// NewDataBackend builds the backend a Config names.
func NewDataBackend(cfg Config) (DataBackend, error) {
	switch cfg.Backend {
	case BackendSQLite:
		return &SQLiteBackend{Path: cfg.SQLitePath}, nil
	case BackendTurso:
		return &TursoBackend{URL: cfg.TursoURL, Token: cfg.TursoToken}, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// SQLiteBackend stores session state in a local file via modernc.org/sqlite.
type SQLiteBackend struct {
	Path string
}

func (b *SQLiteBackend) Type() DataBackendType {
	return BackendSQLite
}

func (b *SQLiteBackend) Connect() (*sql.DB, error) {
	path := b.Path
	if path == "" {
		path = "sentimetrics.db"
	}
	return sql.Open("sqlite", path)
}

func (b *SQLiteBackend) Description() string {
	if b.Path == ":memory:" || b.Path == "file::memory:" {
		return "SQLite (in-memory)"
	}
	return fmt.Sprintf("SQLite (%s)", b.Path)
}

// TursoBackend stores session state in a Turso database over libsql, so
// several gateway replicas can share one session.
type TursoBackend struct {
	URL   string
	Token string
}

func (b *TursoBackend) Type() DataBackendType {
	return BackendTurso
}

func (b *TursoBackend) Connect() (*sql.DB, error) {
	if b.URL == "" {
		return nil, fmt.Errorf("turso URL is required")
	}
	dsn := b.URL
	if b.Token != "" {
		dsn += "?authToken=" + b.Token
	}
	return sql.Open("libsql", dsn)
}

func (b *TursoBackend) Description() string {
	return fmt.Sprintf("Turso (%s)", b.URL)
}
