// Package all links every storage backend into the binary.
package all

import (
	_ "projector/internal/storage/mssql"
	_ "projector/internal/storage/postgres"
	_ "projector/internal/storage/sqlite"
)
