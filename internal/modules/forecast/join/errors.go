package join

import (
	"fmt"
	"strings"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
)

// MissingColumnsError is a fatal configuration error: a source table lacks
// columns later stages depend on.
type MissingColumnsError struct {
	Table    domain.Table
	Physical string
	Columns  []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("table %s (%s) is missing required columns: %s", e.Table, e.Physical, strings.Join(e.Columns, ", "))
}
