package handler

import (
	"errors"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
	"github.com/pkordes/wine-catalog/backend/internal/photo"
)

// PutWinePhoto handles PUT /wines/{id}/photo. The body is the image itself.
// The entry must have been saved first.
func (s *Server) PutWinePhoto(w http.ResponseWriter, r *http.Request) {
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

	if err := s.photos.Save(wine, r.Body); err != nil {
		switch {
		case isTooLarge(err):
			writeJSON(w, http.StatusRequestEntityTooLarge, tooLargeBody())
		case errors.Is(err, photo.ErrInvalidImage):
			writeJSON(w, http.StatusUnprocessableEntity, requestBody("body is not a supported image"))
		default:
			s.internalError(w, r, err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetWinePhoto handles GET /wines/{id}/photo.
// Without parameters the stored file is returned as is. With ?w= and ?h= the
// photo is downsampled for that display size and re-encoded as JPEG.
func (s *Server) GetWinePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var width, height *int
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "w", query, &width); err != nil {
		writeJSON(w, http.StatusBadRequest, requestBody("invalid parameter w"))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "h", query, &height); err != nil {
		writeJSON(w, http.StatusBadRequest, requestBody("invalid parameter h"))
		return
	}
	if (width == nil) != (height == nil) {
		writeJSON(w, http.StatusBadRequest, requestBody("w and h must be given together"))
		return
	}

	wine := domain.Wine{ID: id}
	if width != nil {
		s.scaledPhoto(w, r, wine, *width, *height)
		return
	}

	f, err := s.photos.Open(wine)
	if err != nil {
		s.photoError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeContent(w, r, wine.PhotoFilename(), info.ModTime(), f)
}

func (s *Server) scaledPhoto(w http.ResponseWriter, r *http.Request, wine domain.Wine, width, height int) {
	if width < 1 || height < 1 {
		writeJSON(w, http.StatusBadRequest, requestBody("w and h must be positive"))
		return
	}
	img, err := s.photos.Scaled(wine, width, height)
	if err != nil {
		s.photoError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	if err := photo.Encode(w, img); err != nil {
		s.log.Warn("photo encode failed", "wine_id", wine.ID, "error", err)
	}
}

func (s *Server) photoError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, photo.ErrNoPhoto) {
		writeJSON(w, http.StatusNotFound, notFoundBody("photo not found"))
		return
	}
	s.internalError(w, r, err)
}
