package models

import (
	"time"

	"github.com/google/uuid"
)

// LocationNotSet is shown in place of a missing asset location.
const LocationNotSet = "Not set"

// Asset is a physical item whose custody is tracked.
type Asset struct {
	ID              int64     `json:"id"`
	UniqueID        uuid.UUID `json:"unique_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	SerialNumber    string    `json:"serial_number"`
	SecurityTag     *int64    `json:"security_tag_number,omitempty"`
	AssetTypeID     *int64    `json:"asset_type_id,omitempty"`
	StatusCode      *string   `json:"status,omitempty"`
	LocationID      *int64    `json:"location_id,omitempty"`
	CurrentHolderID int64     `json:"current_holder_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	SoftDelete

	// Joined fields (not always populated).
	AssetTypeName  string  `json:"asset_type_name,omitempty"`
	LocationName   string  `json:"location_name,omitempty"`
	HolderUsername string  `json:"current_holder,omitempty"`
	Subscribers    []int64 `json:"subscribers,omitempty"`
}

// LocationDisplay returns the location name, or LocationNotSet.
func (a *Asset) LocationDisplay() string {
	if a.LocationID == nil || a.LocationName == "" {
		return LocationNotSet
	}
	return a.LocationName
}

// AssetType categorises assets.
type AssetType struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SoftDelete
}

// Location is where an asset is based.
type Location struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SoftDelete
}

// Status is a categorical asset state keyed by its code.
type Status struct {
	Code string `json:"status_type"`
	SoftDelete
}

// AssetMatch is an asset returned by trigram search with its similarity score.
type AssetMatch struct {
	Asset
	Similarity float64 `json:"similarity"`
}
