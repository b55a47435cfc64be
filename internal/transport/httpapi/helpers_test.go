package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

func zeroLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}
