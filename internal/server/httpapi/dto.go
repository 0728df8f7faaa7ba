package httpapi

import (
	"time"

	"github.com/arbolado/treeregistry/internal/server/models"
	"github.com/arbolado/treeregistry/internal/server/services"
)

type geoPointJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// treeJSON is the wire shape of a tree record. ImageURL is resolved per
// view: the permanent public URL for public records, a short-lived
// presigned URL for pending ones.
type treeJSON struct {
	ID           string       `json:"id"`
	SpeciesName  string       `json:"speciesName"`
	EstimatedAge int          `json:"estimatedAge"`
	HealthStatus string       `json:"healthStatus"`
	Notes        string       `json:"notes,omitempty"`
	Address      string       `json:"address,omitempty"`
	Location     geoPointJSON `json:"location"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	CreatedBy    string       `json:"createdBy"`
	CreatedAt    time.Time    `json:"createdAt"`
	Visibility   string       `json:"visibility"`
}

func treeFromRecord(t *models.TreeRecord, imageURL string) treeJSON {
	return treeJSON{
		ID:           t.ID,
		SpeciesName:  t.SpeciesName,
		EstimatedAge: t.EstimatedAge,
		HealthStatus: string(t.HealthStatus),
		Notes:        t.Notes,
		Address:      t.Address,
		Location:     geoPointJSON{Latitude: t.Location.Latitude, Longitude: t.Location.Longitude},
		ImageURL:     imageURL,
		CreatedBy:    t.CreatedBy,
		CreatedAt:    t.CreatedAt,
		Visibility:   string(t.Visibility),
	}
}

func treesFromViews(views []*services.TreeView) []treeJSON {
	result := make([]treeJSON, 0, len(views))
	for _, v := range views {
		result = append(result, treeFromRecord(v.Tree, v.ImageURL))
	}
	return result
}

type submitRequest struct {
	SpeciesName   string       `json:"speciesName"`
	EstimatedAge  int          `json:"estimatedAge"`
	HealthStatus  string       `json:"healthStatus"`
	Notes         string       `json:"notes"`
	Address       string       `json:"address"`
	Location      geoPointJSON `json:"location"`
	ImageFilename string       `json:"imageFilename"`
}

type submitResponse struct {
	Tree      treeJSON `json:"tree"`
	UploadURL string   `json:"uploadUrl"`
}

type treeListResponse struct {
	Trees []treeJSON `json:"trees"`
}

type approveResponse struct {
	Success bool `json:"success"`
}
