package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	apperrors "roombook/pkg/errors"
)

// DecodeJSON decodes a request body into v, rejecting unknown fields and
// trailing data.
func DecodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("Request body is empty")
		}
		return apperrors.InvalidInput("Invalid request body: " + err.Error())
	}
	if decoder.More() {
		return apperrors.InvalidInput("Request body must contain a single JSON object")
	}
	return nil
}

func QueryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.InvalidInput("invalid " + key + " parameter: " + raw)
	}
	return v, nil
}
