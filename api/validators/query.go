package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/bidfinderz-backend/pkg/errors"
)

// Pagination reads limit/offset query params with sane bounds.
func Pagination(r *http.Request) (limit, offset int, err error) {
	limit = 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, convErr := strconv.Atoi(raw)
		if convErr != nil || value <= 0 {
			return 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer")
		}
		limit = value
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		value, convErr := strconv.Atoi(raw)
		if convErr != nil || value < 0 {
			return 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "offset must be a non-negative integer")
		}
		offset = value
	}
	return limit, offset, nil
}
