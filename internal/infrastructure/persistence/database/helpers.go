package database

import (
	"strings"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
)

// CheckAndLogSlowQuery logs query on the slow query path when it took longer
// than threshold. Schema and seed statements get a wider allowance.
func CheckAndLogSlowQuery(logger *logging.ChanneledLogger, threshold time.Duration, query string, duration time.Duration) {
	if threshold <= 0 {
		return
	}
	if strings.HasPrefix(query, "CREATE ") || strings.HasPrefix(query, "INSERT OR IGNORE") {
		threshold *= 3
	}
	if duration > threshold {
		logger.LogSlowQuery(query, duration)
	}
}
