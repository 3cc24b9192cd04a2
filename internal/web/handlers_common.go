package web

// Shared request helpers used across handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxJSONBody bounds JSON request bodies. Row replacement bodies carry a
// whole file, so the bound follows the upload limit.
const maxJSONBody = 32 << 20

// parseIntParam parses a non-negative integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// decodeJSON reads a JSON body into v and runs struct validation on it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", errBadRequest, describeValidation(err))
	}
	return nil
}

// describeValidation turns validator errors into "field: rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			parts[i] = fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			parts[i] = fmt.Sprintf("%s: %s", fe.Field(), fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}

// jsonCells converts decoded JSON cells to the parser's cell types: numbers
// become float64, booleans their text, and everything else stays as is.
func jsonCells(rows [][]any) [][]any {
	for _, row := range rows {
		for i, v := range row {
			row[i] = jsonCell(v)
		}
	}
	return rows
}

func jsonCell(v any) any {
	switch val := v.(type) {
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return v
	}
}
