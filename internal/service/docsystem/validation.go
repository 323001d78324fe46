package docsystem

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/arnaud-morvan/v6-api/internal/config"
	"github.com/arnaud-morvan/v6-api/internal/doctype"
	"github.com/arnaud-morvan/v6-api/internal/domain"
	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/geometry"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Quality levels of a document, from worst to best.
var qualities = []any{"empty", "draft", "medium", "fine", "great"}

const defaultQuality = "draft"

// validateSubmission whitelists and checks a submitted document against its
// type configuration, normalizing it in place. Every problem is collected.
// The returned error is only set for internal failures.
func validateSubmission(cfg *doctype.TypeConfig, doc *models.Document, create bool) (*domain.ValidationError, error) {
	verr := &domain.ValidationError{}

	doc.Figures = whitelistFigures(cfg, doc.Figures)
	if err := collect(verr, "", validation.Validate(map[string]any(doc.Figures), figureRules(cfg))); err != nil {
		return nil, err
	}

	if create && doc.Quality == "" {
		doc.Quality = defaultQuality
	}
	if err := collect(verr, "", validation.Errors{
		"quality": validation.Validate(doc.Quality, validation.In(qualities...)),
	}.Filter()); err != nil {
		return nil, err
	}

	if err := validateLocales(cfg, doc, create, verr); err != nil {
		return nil, err
	}
	normalizeGeometry(cfg, doc, verr)

	return verr, nil
}

func whitelistFigures(cfg *doctype.TypeConfig, figures models.Figures) models.Figures {
	out := make(models.Figures, len(figures))
	for name, v := range figures {
		if _, ok := cfg.Field(name); ok && v != nil {
			out[name] = v
		}
	}
	return out
}

// figureRules builds the ozzo map rule of a document type.
func figureRules(cfg *doctype.TypeConfig) validation.MapRule {
	keys := make([]*validation.KeyRules, 0, len(cfg.Figures))
	for _, f := range cfg.Figures {
		rules := fieldRules(f)
		key := validation.Key(f.Name, rules...)
		if !f.Required {
			key = key.Optional()
		}
		keys = append(keys, key)
	}
	return validation.Map(keys...)
}

func fieldRules(f doctype.FieldSpec) []validation.Rule {
	var rules []validation.Rule
	if f.Required {
		switch f.Kind {
		case doctype.KindInt, doctype.KindNumber, doctype.KindBool, doctype.KindDocumentRef:
			rules = append(rules, validation.NotNil)
		default:
			rules = append(rules, validation.Required)
		}
	}

	switch f.Kind {
	case doctype.KindInt:
		rules = append(rules, validation.By(isInteger))
		rules = append(rules, bounds(f)...)
	case doctype.KindNumber:
		rules = append(rules, validation.By(isNumber))
		rules = append(rules, bounds(f)...)
	case doctype.KindBool:
		rules = append(rules, validation.By(isBool))
	case doctype.KindString:
		rules = append(rules, validation.By(isString))
		if f.Max != nil {
			rules = append(rules, validation.RuneLength(0, int(*f.Max)))
		}
	case doctype.KindDate:
		rules = append(rules, validation.By(isString), validation.Date("2006-01-02"))
	case doctype.KindEnum:
		rules = append(rules, validation.By(isString), validation.In(enumValues(f)...))
	case doctype.KindEnumList:
		rules = append(rules, validation.By(isStringList), validation.Each(validation.In(enumValues(f)...)))
	case doctype.KindDocumentRef:
		rules = append(rules, validation.By(isInteger), validation.Min(1.0))
	}
	return rules
}

func bounds(f doctype.FieldSpec) []validation.Rule {
	var rules []validation.Rule
	if f.Min != nil {
		rules = append(rules, validation.Min(*f.Min))
	}
	if f.Max != nil {
		rules = append(rules, validation.Max(*f.Max))
	}
	return rules
}

func enumValues(f doctype.FieldSpec) []any {
	values := make([]any, len(f.Values))
	for i, v := range f.Values {
		values[i] = v
	}
	return values
}

func isNumber(value any) error {
	if _, ok := value.(float64); !ok && value != nil {
		return errors.New("must be a number")
	}
	return nil
}

func isInteger(value any) error {
	if value == nil {
		return nil
	}
	if v, ok := value.(float64); !ok || v != math.Trunc(v) {
		return errors.New("must be an integer")
	}
	return nil
}

func isBool(value any) error {
	if _, ok := value.(bool); !ok && value != nil {
		return errors.New("must be a boolean")
	}
	return nil
}

func isString(value any) error {
	if _, ok := value.(string); !ok && value != nil {
		return errors.New("must be a string")
	}
	return nil
}

func isStringList(value any) error {
	list, ok := value.([]any)
	if !ok {
		if value == nil {
			return nil
		}
		return errors.New("must be a list")
	}
	for _, v := range list {
		if _, ok := v.(string); !ok {
			return errors.New("must be a list of strings")
		}
	}
	return nil
}

func validateLocales(cfg *doctype.TypeConfig, doc *models.Document, create bool, verr *domain.ValidationError) error {
	if create && len(doc.Locales) == 0 {
		verr.Add("locales", "at least one locale is required")
	}

	seen := make(map[string]bool, len(doc.Locales))
	for i := range doc.Locales {
		l := &doc.Locales[i]
		if seen[l.Lang] {
			verr.Add("locales", fmt.Sprintf("lang %q is given twice", l.Lang))
			continue
		}
		seen[l.Lang] = true

		if !models.IsSupportedLang(l.Lang) {
			verr.Add("locales.lang", fmt.Sprintf("invalid lang %q", l.Lang))
			continue
		}

		// derived from the main waypoint, never submitted
		l.TitlePrefix = ""
		maps.DeleteFunc(l.Fields, func(name, _ string) bool {
			return !slices.Contains(cfg.LocaleFields, name)
		})

		err := validation.ValidateStruct(l,
			validation.Field(&l.Title,
				validation.When(!cfg.TitleOptional, validation.Required),
				validation.RuneLength(0, config.MaxTitleLength),
			),
			validation.Field(&l.Summary, validation.RuneLength(0, config.MaxSummaryLength)),
			validation.Field(&l.Description, validation.RuneLength(0, config.MaxDescriptionLength)),
		)
		if err := collect(verr, "locales."+l.Lang+".", err); err != nil {
			return err
		}
	}
	return nil
}

// normalizeGeometry re-encodes submitted geometries. A geometry without any
// encoding counts as not submitted, so the stored one is kept on update.
func normalizeGeometry(cfg *doctype.TypeConfig, doc *models.Document, verr *domain.ValidationError) {
	if doc.Geometry == nil {
		return
	}
	if cfg.Geometry == doctype.GeometryNone || doc.Geometry.IsEmpty() {
		doc.Geometry = nil
		return
	}

	geom, err := geometry.Normalize(doc.Geometry.Geom)
	if err != nil {
		verr.Add("geometry.geom", err.Error())
	} else if geom != "" && !geometry.IsPoint(geom) {
		verr.Add("geometry.geom", "must be a point")
	}
	detail, err := geometry.Normalize(doc.Geometry.GeomDetail)
	if err != nil {
		verr.Add("geometry.geom_detail", err.Error())
	}
	doc.Geometry.Geom, doc.Geometry.GeomDetail = geom, detail
}

// checkGeometryRequired runs after default geometry derivation.
func checkGeometryRequired(cfg *doctype.TypeConfig, doc *models.Document) *domain.ValidationError {
	if cfg.Geometry == doctype.GeometryRequired && (doc.Geometry == nil || doc.Geometry.Geom == "") {
		return domain.NewValidationError("geometry.geom", "is required")
	}
	return nil
}

// collect copies ozzo field errors into verr under prefix. Internal
// validation failures are returned as is.
func collect(verr *domain.ValidationError, prefix string, err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return internal
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		verr.Add(prefix, err.Error())
		return nil
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		verr.Add(prefix+name, errs[name].Error())
	}
	return nil
}
