// Package models defines server-side data models persisted in the database.
package models

import (
	"strings"
	"time"
)

// Visibility is the single bit of moderation state a tree record carries.
// Every record starts Pending and may become Public exactly once; there is
// no transition back and no delete.
type Visibility string

const (
	VisibilityPending Visibility = "pending"
	VisibilityPublic  Visibility = "public"
)

// HealthStatus is the submitter's assessment of the tree's condition.
type HealthStatus string

const (
	HealthGood HealthStatus = "good"
	HealthFair HealthStatus = "fair"
	HealthPoor HealthStatus = "poor"
)

// ValidHealthStatus reports whether s is one of the known health values.
func ValidHealthStatus(s HealthStatus) bool {
	switch s {
	case HealthGood, HealthFair, HealthPoor:
		return true
	}
	return false
}

// GeoPoint is a WGS84 coordinate pair, immutable after creation.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Storage namespace prefixes for image references. The prefix is the only
// signal of the blob's visibility tier: a pending record's ImageRef must be
// under PrivatePrefix, a public record's under PublicPrefix.
const (
	PrivatePrefix = "private/"
	PublicPrefix  = "public/"
)

// TreeRecord is one geotagged tree observation.
type TreeRecord struct {
	// ID uniquely and permanently identifies the record.
	ID string
	// SpeciesName, EstimatedAge, HealthStatus, Notes and Address are
	// client-supplied descriptive fields, never validated beyond presence.
	SpeciesName  string
	EstimatedAge int
	HealthStatus HealthStatus
	Notes        string
	Address      string
	// Location is immutable after creation.
	Location GeoPoint

	// ImageRef is the object-storage key of the tree photo. Private
	// namespace while pending, public namespace once approved.
	ImageRef string

	// CreatedBy is the submitting principal's UID.
	CreatedBy string
	// CreatedAt is server-assigned and immutable.
	CreatedAt time.Time

	Visibility Visibility
}

// HasPrivateImageRef reports whether the record's image reference is a
// well-formed private reference (non-empty key under the private prefix).
func (t *TreeRecord) HasPrivateImageRef() bool {
	return strings.HasPrefix(t.ImageRef, PrivatePrefix) &&
		len(t.ImageRef) > len(PrivatePrefix)
}
