package web

import (
	"fmt"
	"net/http"
	"strconv"
)

// QueryBool parses a boolean query parameter. A missing parameter yields false.
func QueryBool(r *http.Request, key string) (bool, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s value: %s", key, value)
	}
	return b, nil
}
