package doctype

import (
	"embed"
	"fmt"
	"slices"

	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

type typePair [2]models.DocumentType

// Registry maps the closed document-type enum to its configuration.
// It is built once at startup and read-only afterwards.
type Registry struct {
	types        map[models.DocumentType]*TypeConfig
	byCollection map[string]*TypeConfig
	keys         map[models.AssociationKey]*AssociationKeySpec
	valid        map[typePair]bool
}

// NewRegistry loads the embedded document type configuration.
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/document_types.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read document types: %w", err)
	}
	return Load(data)
}

// Load parses and checks a document type configuration.
func Load(data []byte) (*Registry, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document types: %w", err)
	}

	r := &Registry{
		types:        make(map[models.DocumentType]*TypeConfig, len(spec.Types)),
		byCollection: make(map[string]*TypeConfig, len(spec.Types)),
		keys:         make(map[models.AssociationKey]*AssociationKeySpec, len(spec.AssociationKeys)),
		valid:        make(map[typePair]bool, len(spec.ValidAssociations)),
	}

	for _, pair := range spec.ValidAssociations {
		if len(pair) != 2 || !pair[0].Valid() || !pair[1].Valid() {
			return nil, fmt.Errorf("invalid association pair %v", pair)
		}
		r.valid[typePair{pair[0], pair[1]}] = true
	}

	for key, ks := range spec.AssociationKeys {
		if ks == nil || !ks.Type.Valid() {
			return nil, fmt.Errorf("association key %q has an unknown type", key)
		}
		switch ks.OtherIs {
		case "", RoleParent, RoleChild:
		default:
			return nil, fmt.Errorf("association key %q has an unknown role %q", key, ks.OtherIs)
		}
		ks.Key = key
		r.keys[key] = ks
	}

	for _, t := range models.AllTypes {
		cfg, ok := spec.Types[t]
		if !ok || cfg == nil {
			return nil, fmt.Errorf("missing configuration for document type %q", t)
		}
		cfg.Type = t
		if cfg.Geometry == "" {
			cfg.Geometry = GeometryNone
		}
		if err := r.checkType(cfg); err != nil {
			return nil, err
		}
		r.types[t] = cfg
		r.byCollection[cfg.Collection] = cfg
	}
	for t := range spec.Types {
		if !t.Valid() {
			return nil, fmt.Errorf("unknown document type %q", t)
		}
	}

	return r, nil
}

func (r *Registry) checkType(cfg *TypeConfig) error {
	if cfg.Collection == "" {
		return fmt.Errorf("document type %q has no collection", cfg.Type)
	}
	if _, dup := r.byCollection[cfg.Collection]; dup {
		return fmt.Errorf("collection %q is used twice", cfg.Collection)
	}
	switch cfg.Geometry {
	case GeometryNone, GeometryOptional, GeometryRequired:
	default:
		return fmt.Errorf("document type %q has an unknown geometry policy %q", cfg.Type, cfg.Geometry)
	}
	for _, f := range cfg.Figures {
		switch f.Kind {
		case KindInt, KindNumber, KindBool, KindString, KindDate, KindDocumentRef:
		case KindEnum, KindEnumList:
			if len(f.Values) == 0 {
				return fmt.Errorf("%s.%s: enum without values", cfg.Type, f.Name)
			}
		default:
			return fmt.Errorf("%s.%s: unknown field kind %q", cfg.Type, f.Name, f.Kind)
		}
	}
	for _, key := range cfg.Associations.Updatable {
		if _, err := r.OtherRole(cfg.Type, key); err != nil {
			return fmt.Errorf("document type %q: %w", cfg.Type, err)
		}
	}
	for _, key := range cfg.Associations.Required {
		if !slices.Contains(cfg.Associations.Updatable, key) {
			return fmt.Errorf("document type %q requires non-updatable association %q", cfg.Type, key)
		}
	}
	return nil
}

// Get returns the configuration of a document type.
func (r *Registry) Get(t models.DocumentType) (*TypeConfig, error) {
	cfg, ok := r.types[t]
	if !ok {
		return nil, fmt.Errorf("unknown document type: %s", t)
	}
	return cfg, nil
}

// ByCollection resolves a URL collection name ("routes") to its type.
func (r *Registry) ByCollection(collection string) (*TypeConfig, bool) {
	cfg, ok := r.byCollection[collection]
	return cfg, ok
}

// Types returns every type configuration in enum order.
func (r *Registry) Types() []*TypeConfig {
	out := make([]*TypeConfig, 0, len(r.types))
	for _, t := range models.AllTypes {
		out = append(out, r.types[t])
	}
	return out
}

// AssociationKey returns the spec of a submission key.
func (r *Registry) AssociationKey(key models.AssociationKey) (*AssociationKeySpec, bool) {
	ks, ok := r.keys[key]
	return ks, ok
}

// IsValidAssociation reports whether a (parent, child) type pair is allowed.
func (r *Registry) IsValidAssociation(parent, child models.DocumentType) bool {
	return r.valid[typePair{parent, child}]
}

// OtherRole resolves the role of the documents linked under key from a
// document of type main. Without a forced role, main is the parent whenever
// the whitelist allows it. A forced role still has to be whitelisted.
func (r *Registry) OtherRole(main models.DocumentType, key models.AssociationKey) (Role, error) {
	ks, ok := r.keys[key]
	if !ok {
		return "", fmt.Errorf("unknown association key %q", key)
	}
	switch ks.OtherIs {
	case RoleParent:
		if r.IsValidAssociation(ks.Type, main) {
			return RoleParent, nil
		}
	case RoleChild:
		if r.IsValidAssociation(main, ks.Type) {
			return RoleChild, nil
		}
	default:
		if r.IsValidAssociation(main, ks.Type) {
			return RoleChild, nil
		}
		if r.IsValidAssociation(ks.Type, main) {
			return RoleParent, nil
		}
	}
	return "", fmt.Errorf("invalid association type %q for %s", key, main)
}

// KeyFor names the group an existing edge is shown under when reading a
// document of type main. Keys whose role matches are preferred; otherwise
// the first key of the other document's type is used.
func (r *Registry) KeyFor(main, other models.DocumentType, otherIsParent bool) (models.AssociationKey, bool) {
	var fallback models.AssociationKey
	for _, key := range sortedKeys(r.keys) {
		ks := r.keys[key]
		if ks.Type != other {
			continue
		}
		if fallback == "" {
			fallback = key
		}
		role, err := r.OtherRole(main, key)
		if err != nil {
			continue
		}
		if (role == RoleParent) == otherIsParent {
			return key, true
		}
	}
	return fallback, fallback != ""
}

func sortedKeys(m map[models.AssociationKey]*AssociationKeySpec) []models.AssociationKey {
	keys := make([]models.AssociationKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
