package doctype

import (
	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
)

// FieldKind is the value shape of a figure field.
type FieldKind string

const (
	KindInt         FieldKind = "int"
	KindNumber      FieldKind = "number"
	KindBool        FieldKind = "bool"
	KindString      FieldKind = "string"
	KindDate        FieldKind = "date"
	KindEnum        FieldKind = "enum"
	KindEnumList    FieldKind = "enum_list"
	KindDocumentRef FieldKind = "document_ref"
)

// GeometryPolicy says whether a type carries a geometry.
type GeometryPolicy string

const (
	GeometryNone     GeometryPolicy = "none"
	GeometryOptional GeometryPolicy = "optional"
	GeometryRequired GeometryPolicy = "required"
)

// Role is the role of the linked document in an edge.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// FieldSpec declares one figure field.
type FieldSpec struct {
	Name     string    `yaml:"name"`
	Kind     FieldKind `yaml:"kind"`
	Required bool      `yaml:"required"`
	Min      *float64  `yaml:"min"`
	Max      *float64  `yaml:"max"`
	Values   []string  `yaml:"values"`
}

// AssociationRules lists which keys a type may submit and which it must.
type AssociationRules struct {
	Updatable []models.AssociationKey `yaml:"updatable"`
	Required  []models.AssociationKey `yaml:"required"`
}

// TypeConfig is the static configuration of one document type.
type TypeConfig struct {
	// Type is set from the YAML map key.
	Type models.DocumentType `yaml:"-"`

	Collection         string           `yaml:"collection"`
	Geometry           GeometryPolicy   `yaml:"geometry"`
	DeriveDefaultPoint bool             `yaml:"derive_default_point"`
	ModeratorOnly      bool             `yaml:"moderator_only"`
	OwnerOnly          bool             `yaml:"owner_only"`
	TitleOptional      bool             `yaml:"title_optional"`
	Figures            []FieldSpec      `yaml:"figures"`
	LocaleFields       []string         `yaml:"locale_fields"`
	Associations       AssociationRules `yaml:"associations"`
}

// Field returns the spec of a figure field.
func (c *TypeConfig) Field(name string) (FieldSpec, bool) {
	for _, f := range c.Figures {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// AssociationKeySpec declares a submission key.
type AssociationKeySpec struct {
	Key     models.AssociationKey `yaml:"-"`
	Type    models.DocumentType   `yaml:"type"`
	OtherIs Role                  `yaml:"other_is"`
}

// fileSpec mirrors document_types.yaml.
type fileSpec struct {
	Types             map[models.DocumentType]*TypeConfig           `yaml:"types"`
	AssociationKeys   map[models.AssociationKey]*AssociationKeySpec `yaml:"association_keys"`
	ValidAssociations [][]models.DocumentType                       `yaml:"valid_associations"`
}
