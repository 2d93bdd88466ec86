package http

import (
	"bookingsync/pkg/config"
	"net/http"
	"net/url"
	"strconv"

	apperrors "bookingsync/pkg/errors"
)

// ExtractLimitOffset reads the page window of a list request. Missing values
// fall back to the defaults and out-of-range ones are clamped.
func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit, err := queryInt(query, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(query, "offset")
	if err != nil {
		return 0, 0, err
	}

	return config.NormalizePaginationLimit(int(limit)), config.NormalizeOffset(offset), nil
}

func queryInt(query url.Values, name string) (int64, error) {
	raw := query.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.InvalidInput("invalid " + name + " parameter: " + raw)
	}
	return v, nil
}
