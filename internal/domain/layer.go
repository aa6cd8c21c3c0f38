package domain

import "context"

// LayerDescriptor identifies one selectable raster dataset in the catalog.
// The catalog returns more fields; only these two are consumed.
type LayerDescriptor struct {
	Filename string `json:"filename"`
	S3URL    string `json:"s3_url"`
}

// CatalogSource lists the selectable raster datasets.
type CatalogSource interface {
	Fetch(ctx context.Context) ([]LayerDescriptor, error)
}
