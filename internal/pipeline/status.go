package pipeline

import (
	"strings"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
)

// NormalizeStatus maps a raw status string to one of the three canonical
// states, ignoring case. Unrecognized and empty input resolves to Successful:
// upstream records are treated as settled unless they say otherwise, and the
// receipt/error screens depend on that default.
func NormalizeStatus(raw string) domain.Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "successful", "success":
		return domain.StatusSuccessful
	case "pending":
		return domain.StatusPending
	case "failed", "fail":
		return domain.StatusFailed
	default:
		return domain.StatusSuccessful
	}
}
