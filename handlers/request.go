package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DateLayout is the layout of date-only query parameters
const DateLayout = "2006-01-02"

// urlUUID parses a UUID route parameter
func urlUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s format", name)
	}
	return id, nil
}

// queryUUID parses an optional UUID query parameter
func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format", name)
	}
	return &id, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter as a UTC date
func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date in YYYY-MM-DD form", name)
	}
	return &d, nil
}

func errInvalidParam(name string) error {
	return fmt.Errorf("invalid %s", name)
}
