package catalog

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestHandlerRoutes(t *testing.T) {
	tests := []struct {
		name       string
		source     MenuSource
		path       string
		wantStatus int
	}{
		{
			name:       "prices",
			source:     &countingSource{menu: Menu{Dishes: []Dish{{Name: "Burger", Price: 5}}}},
			path:       "/menu/prices",
			wantStatus: http.StatusOK,
		},
		{
			name:       "dishes",
			source:     &countingSource{menu: Menu{Dishes: []Dish{{Name: "Burger", Price: 5}}}},
			path:       "/menu/dishes",
			wantStatus: http.StatusOK,
		},
		{
			name:       "pricesUnavailable",
			source:     &countingSource{err: errors.New("store down")},
			path:       "/menu/prices",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "dishesUnavailable",
			source:     &countingSource{err: errors.New("store down")},
			path:       "/menu/dishes",
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tt.source, nil).RegisterRoutes(r)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("GET %s status = %d, want %d", tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}
