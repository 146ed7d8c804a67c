package search

import (
	"strings"

	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/pkg/utils"
)

const (
	defaultTopK = 5
	maxTopK     = 50
)

// ProcessQuery validates a question and resolves its result count. It returns
// the trimmed query and k defaulted to cfg.DefaultTopK and clamped to cfg.MaxTopK.
func ProcessQuery(ownerID, query string, k int, cfg *config.SearchConfig) (string, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", 0, models.ErrEmptyQuery
	}
	if strings.TrimSpace(ownerID) == "" {
		return "", 0, models.ErrOwnerRequired
	}
	def, limit := cfg.DefaultTopK, cfg.MaxTopK
	if def <= 0 {
		def = defaultTopK
	}
	if limit <= 0 {
		limit = maxTopK
	}
	if k <= 0 {
		k = def
	}
	return query, utils.ClampInt(k, 1, limit), nil
}
