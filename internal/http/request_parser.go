// Package http serves the gig tracker JSON API.
//
// This file holds the request parsing helpers shared by the handlers: path
// values, date selectors from the query string and bounded JSON bodies.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gigtracker/internal/core"
	"gigtracker/internal/services"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// errBadRequest marks input that could not be read at all, as opposed to
// input that was read but failed validation.
var errBadRequest = errors.New("bad request")

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid gig id %q", errBadRequest, raw)
	}
	return id, nil
}

// pathDate parses the {date} path value.
func pathDate(r *http.Request) (core.Date, error) {
	return core.ParseDate(r.PathValue("date"))
}

// ParseSelector reads date, or from and to, from a query string. None of
// them yields the zero Selector. A reversed range is swapped.
func ParseSelector(q url.Values) (services.Selector, error) {
	if v := strings.TrimSpace(q.Get("date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return services.Selector{}, err
		}
		return services.NewDateSelector(d), nil
	}

	fromRaw := strings.TrimSpace(q.Get("from"))
	toRaw := strings.TrimSpace(q.Get("to"))
	if fromRaw == "" && toRaw == "" {
		return services.Selector{}, nil
	}
	if fromRaw == "" || toRaw == "" {
		return services.Selector{}, fmt.Errorf("%w: from and to must be given together", core.ErrInvalidDate)
	}
	from, err := core.ParseDate(fromRaw)
	if err != nil {
		return services.Selector{}, err
	}
	to, err := core.ParseDate(toRaw)
	if err != nil {
		return services.Selector{}, err
	}
	return services.NewRangeSelector(from, to), nil
}

// parseTypeFilter reads the optional type filter; blank means every type.
func parseTypeFilter(q url.Values) (core.GigType, error) {
	raw := strings.TrimSpace(q.Get("type"))
	if raw == "" {
		return "", nil
	}
	return core.ParseGigType(raw)
}

// decodeJSON reads a single JSON value from the body into dst. Syntax and
// type errors are wrapped in errBadRequest; errors raised by the domain
// types' own decoders (bad amount, bad date) keep their sentinel.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if services.IsValidationError(err) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// sanitizeInput removes control characters except tab and newlines and
// trims surrounding whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
