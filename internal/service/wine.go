// Package service contains the business logic for the wine catalogue.
// Services validate inputs and orchestrate store calls. No SQL and no file
// I/O lives here; photo files are the caller's concern.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
	"github.com/pkordes/wine-catalog/backend/internal/filter"
	"github.com/pkordes/wine-catalog/backend/internal/live"
	"github.com/pkordes/wine-catalog/backend/internal/photo"
	"github.com/pkordes/wine-catalog/backend/internal/store"
)

// wineRules carries the field constraints of a saved wine. The json names are
// what validation messages report. max counts characters, not bytes.
type wineRules struct {
	Name          string `json:"name" validate:"max=200"`
	AlcoholType   string `json:"alcohol_type" validate:"max=200"`
	OriginCountry string `json:"origin_country" validate:"max=200"`
	Producer      string `json:"producer" validate:"max=200"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// EntryStore is the subset of *store.Store the service depends on.
type EntryStore interface {
	ObserveAll() (*live.Subscription[[]domain.Wine], error)
	ObserveOne(id uuid.UUID) (*live.Subscription[store.Lookup], error)
	Snapshot() ([]domain.Wine, error)
	Get(id uuid.UUID) (store.Lookup, error)
	Add(ctx context.Context, w domain.Wine) *store.Op
	Save(ctx context.Context, w domain.Wine) *store.Op
	Delete(ctx context.Context, w domain.Wine) *store.Op
}

// WineService implements the catalogue's entry points on top of the store.
type WineService struct {
	store     EntryStore
	photoRoot string
}

// NewWineService constructs a WineService. photoRoot is the directory photo
// paths are derived under.
func NewWineService(s EntryStore, photoRoot string) *WineService {
	return &WineService{store: s, photoRoot: photoRoot}
}

// New returns a freshly identified wine with empty fields. It is not stored.
func (s *WineService) New() domain.Wine {
	return domain.NewWine()
}

// Create stores a new empty entry and returns it once committed.
func (s *WineService) Create(ctx context.Context) (domain.Wine, error) {
	w := s.New()
	if err := s.store.Add(ctx, w).Wait(ctx); err != nil {
		return domain.Wine{}, fmt.Errorf("service.WineService.Create: %w", err)
	}
	return w, nil
}

// Get returns the committed state of one entry, or domain.ErrNotFound.
func (s *WineService) Get(_ context.Context, id uuid.UUID) (domain.Wine, error) {
	l, err := s.store.Get(id)
	if err != nil {
		return domain.Wine{}, fmt.Errorf("service.WineService.Get: %w", err)
	}
	if !l.Found {
		return domain.Wine{}, fmt.Errorf("service.WineService.Get: %w", domain.ErrNotFound)
	}
	return l.Wine, nil
}

// Select returns the live single-entry observable for id.
func (s *WineService) Select(id uuid.UUID) (*live.Subscription[store.Lookup], error) {
	sub, err := s.store.ObserveOne(id)
	if err != nil {
		return nil, fmt.Errorf("service.WineService.Select: %w", err)
	}
	return sub, nil
}

// Observe returns the live full collection.
func (s *WineService) Observe() (*live.Subscription[[]domain.Wine], error) {
	sub, err := s.store.ObserveAll()
	if err != nil {
		return nil, fmt.Errorf("service.WineService.Observe: %w", err)
	}
	return sub, nil
}

// Save validates w and durably applies it: an update when the entry exists,
// an insert on first save.
func (s *WineService) Save(ctx context.Context, w domain.Wine) error {
	if err := validateWine(w); err != nil {
		return fmt.Errorf("service.WineService.Save: %w", err)
	}
	if err := s.store.Save(ctx, w).Wait(ctx); err != nil {
		return fmt.Errorf("service.WineService.Save: %w", err)
	}
	return nil
}

// Delete removes w's row. Removing the photo file is left to the caller.
func (s *WineService) Delete(ctx context.Context, w domain.Wine) error {
	if err := s.store.Delete(ctx, w).Wait(ctx); err != nil {
		return fmt.Errorf("service.WineService.Delete: %w", err)
	}
	return nil
}

// Filter returns the committed collection narrowed to names matching text.
func (s *WineService) Filter(text string) ([]domain.Wine, error) {
	all, err := s.store.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("service.WineService.Filter: %w", err)
	}
	return filter.Apply(all, text), nil
}

// PhotoPath returns where w's photo lives, whether or not it exists.
func (s *WineService) PhotoPath(w domain.Wine) string {
	return photo.Path(s.photoRoot, w)
}

func validateWine(w domain.Wine) error {
	if w.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	err := validate.Struct(wineRules{
		Name:          w.Name,
		AlcoholType:   w.AlcoholType,
		OriginCountry: w.OriginCountry,
		Producer:      w.Producer,
	})
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("%w: %s must be at most %s characters", domain.ErrValidation, fe.Field(), fe.Param())
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}
