package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
)

// WineInput is the request body of PUT /wines/{id}. The id comes from the path.
type WineInput struct {
	Name          string `json:"name"`
	AlcoholType   string `json:"alcohol_type"`
	OriginCountry string `json:"origin_country"`
	Producer      string `json:"producer"`
}

// ListWines handles GET /wines.
// ?q= narrows the list to names containing q, ignoring case and accents.
func (s *Server) ListWines(w http.ResponseWriter, r *http.Request) {
	var q *string
	if err := runtime.BindQueryParameter("form", true, false, "q", r.URL.Query(), &q); err != nil {
		writeJSON(w, http.StatusBadRequest, requestBody("invalid parameter q"))
		return
	}
	text := ""
	if q != nil {
		text = *q
	}

	wines, err := s.wines.Filter(text)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if wines == nil {
		wines = []domain.Wine{}
	}
	writeJSON(w, http.StatusOK, wines)
}

// CreateWine handles POST /wines. The new entry has a fresh id and empty fields.
func (s *Server) CreateWine(w http.ResponseWriter, r *http.Request) {
	created, err := s.wines.Create(r.Context())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetWine handles GET /wines/{id}.
func (s *Server) GetWine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	wine, err := s.wines.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, notFoundBody("wine not found"))
			return
		}
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wine)
}

// SaveWine handles PUT /wines/{id}: an update when the entry exists, an
// insert on first save.
func (s *Server) SaveWine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var in WineInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		if isTooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, tooLargeBody())
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("request body is not valid JSON"))
		return
	}

	wine := domain.Wine{
		ID:            id,
		Name:          in.Name,
		AlcoholType:   in.AlcoholType,
		OriginCountry: in.OriginCountry,
		Producer:      in.Producer,
	}
	if err := s.wines.Save(r.Context(), wine); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeJSON(w, http.StatusUnprocessableEntity, validationBody(err))
			return
		}
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wine)
}

// DeleteWine handles DELETE /wines/{id}.
// The row goes first, then the photo file. Deleting a missing entry is not an
// error.
func (s *Server) DeleteWine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	wine := domain.Wine{ID: id}
	if err := s.wines.Delete(r.Context(), wine); err != nil {
		s.serviceError(w, r, err)
		return
	}
	if err := s.photos.Remove(wine); err != nil {
		// The row is already gone, so the request still succeeds.
		s.log.Warn("photo not removed", "wine_id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathID binds the {id} path parameter. On failure it writes a 400 and
// returns false.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, requestBody("invalid wine id"))
		return uuid.Nil, false
	}
	return id, true
}
