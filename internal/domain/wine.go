// Package domain contains the core data types for the wine catalogue.
// This package has no dependencies beyond uuid and is imported by every other
// internal package (repo, store, service, handler).
package domain

import (
	"github.com/google/uuid"
)

// Wine is one catalogued wine entry.
// ID is assigned once by NewWine and never changes; every other field is free
// text that the user may edit at any time.
type Wine struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	AlcoholType   string    `json:"alcohol_type"`
	OriginCountry string    `json:"origin_country"`
	Producer      string    `json:"producer"`
}

// NewWine returns a wine with a freshly generated identifier and empty fields.
// It is not persisted until it is handed to the store.
func NewWine() Wine {
	return Wine{ID: uuid.New()}
}

// PhotoFilename returns the name of the file holding this entry's photo.
// It is derived from ID on every call and is never stored, so a photo stays
// attached to its entry no matter how the text fields change.
func (w Wine) PhotoFilename() string {
	return "IMG_" + w.ID.String() + ".jpg"
}
