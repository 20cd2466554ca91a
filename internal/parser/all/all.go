// Package all registers every parser format.
package all

import (
	_ "projector/internal/parser/csv"
	_ "projector/internal/parser/html"
	_ "projector/internal/parser/json"
	_ "projector/internal/parser/xlsx"
)
