package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gawulo-platform/services/api/internal/repo"
	"gawulo-platform/shared/pkg/models"
)

type LookupStore interface {
	Countries(ctx context.Context) ([]models.Country, error)
	CountryByAlpha2(ctx context.Context, iso string) (models.Country, error)
	Languages(ctx context.Context) ([]models.Language, error)
	Currencies(ctx context.Context) ([]models.Currency, error)
}

type LookupsHandler struct {
	Store LookupStore
	Log   zerolog.Logger
}

func (h *LookupsHandler) Countries(w http.ResponseWriter, r *http.Request) {
	out, err := h.Store.Countries(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("countries lookup failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LookupsHandler) Country(w http.ResponseWriter, r *http.Request) {
	iso := strings.ToUpper(chi.URLParam(r, "alpha2"))
	c, err := h.Store.CountryByAlpha2(r.Context(), iso)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "country not found", http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Msg("country lookup failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *LookupsHandler) Languages(w http.ResponseWriter, r *http.Request) {
	out, err := h.Store.Languages(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("languages lookup failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LookupsHandler) Currencies(w http.ResponseWriter, r *http.Request) {
	out, err := h.Store.Currencies(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("currencies lookup failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
