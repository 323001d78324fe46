package docsystem

import (
	"slices"
	"time"
)

// AssociationKey names a group of links in a submission ("waypoints",
// "routes", ...). The registry maps each key to a document type and a role.
type AssociationKey string

const (
	KeyWaypoints        AssociationKey = "waypoints"
	KeyWaypointChildren AssociationKey = "waypoint_children"
	KeyRoutes           AssociationKey = "routes"
	KeyUsers            AssociationKey = "users"
	KeyImages           AssociationKey = "images"
)

// AssociationRef points at another document.
type AssociationRef struct {
	DocumentID int64        `json:"document_id"`
	Type       DocumentType `json:"type,omitempty"`
}

// Associations groups links by key.
type Associations map[AssociationKey][]AssociationRef

// IDs returns the distinct ids listed under key, in submission order.
func (a Associations) IDs(key AssociationKey) []int64 {
	ids := make([]int64, 0, len(a[key]))
	for _, ref := range a[key] {
		if !slices.Contains(ids, ref.DocumentID) {
			ids = append(ids, ref.DocumentID)
		}
	}
	return ids
}

// Contains reports whether id is listed under key.
func (a Associations) Contains(key AssociationKey, id int64) bool {
	for _, ref := range a[key] {
		if ref.DocumentID == id {
			return true
		}
	}
	return false
}

// Association is a directed edge of the association graph.
type Association struct {
	ParentID int64 `json:"parent_document_id" db:"parent_document_id"`
	ChildID  int64 `json:"child_document_id" db:"child_document_id"`
}

// LinkedAssociation is an edge seen from one of its ends.
type LinkedAssociation struct {
	Association
	OtherID       int64        `db:"other_id"`
	OtherType     DocumentType `db:"other_type"`
	OtherIsParent bool         `db:"other_is_parent"`
}

// AssociationLogEntry records the creation of an edge.
type AssociationLogEntry struct {
	ID        int64     `json:"id" db:"id"`
	ParentID  int64     `json:"parent_document_id" db:"parent_document_id"`
	ChildID   int64     `json:"child_document_id" db:"child_document_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	WrittenAt time.Time `json:"written_at" db:"written_at"`
}

// AppliedAssociations reports what a reconciliation changed.
type AppliedAssociations struct {
	Added   []Association `json:"added"`
	Removed []Association `json:"removed"`
}

// IsEmpty reports whether nothing changed.
func (a AppliedAssociations) IsEmpty() bool {
	return len(a.Added) == 0 && len(a.Removed) == 0
}

// LinkedDocument is a lightweight reference used in read projections.
type LinkedDocument struct {
	DocumentID int64        `json:"document_id" db:"id"`
	Type       DocumentType `json:"type" db:"type"`
}
