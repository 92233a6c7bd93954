package api

import (
	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/collectionservice"
	"github.com/starford/munchie/internal/models"
)

// Collection is the collection response type (aliased from the domain layer).
type Collection = models.Collection

// CreateCollectionRequest is the request body for creating a collection.
type CreateCollectionRequest = collectionservice.CreateInput

// UpdateCollectionRequest is the request body for a partial collection update.
type UpdateCollectionRequest = collectionservice.UpdateInput

// ScanRequest is the request body for POST /collections/scan.
type ScanRequest = collectionservice.ScanRequest

// ScanResponse reports the outcome of a folder scan.
type ScanResponse = collectionservice.ScanResult

// ModelItem is one indexed model.
type ModelItem = collectionservice.ModelItem

// CollectionListResponse wraps the collection store.
type CollectionListResponse struct {
	Collections []Collection `json:"collections" validate:"required"`
	Total       int          `json:"total" example:"12" validate:"required"`
}

// ModelListResponse wraps paginated model listings.
type ModelListResponse struct {
	Models []ModelItem `json:"models" validate:"required"`
	Total  int         `json:"total" example:"42" validate:"required"`
}

// RestoreResponse summarizes a restore.
type RestoreResponse struct {
	Restored    int                `json:"restored" example:"10" validate:"required"`
	Skipped     int                `json:"skipped" example:"2" validate:"required"`
	Errors      []apperr.FileError `json:"errors" validate:"required"`
	Collections int                `json:"collections" example:"5"`
}
