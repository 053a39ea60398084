package netdoc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct tags and then the cross-field rules tags cannot
// express. Reference errors, e.g. an unknown species, surface from Build.
func Validate(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, formatValidationError(err))
	}

	species := make(map[string]bool, len(doc.Species))
	for _, s := range doc.Species {
		if species[s.Name] {
			return fmt.Errorf("%w: duplicate species %s", ErrInvalidDocument, s.Name)
		}
		species[s.Name] = true
	}
	symbols := make(map[string]bool, len(doc.Symbols))
	for _, s := range doc.Symbols {
		if symbols[s.Name] {
			return fmt.Errorf("%w: duplicate symbol %s", ErrInvalidDocument, s.Name)
		}
		symbols[s.Name] = true
	}
	reactions := make(map[string]bool, len(doc.Reactions))
	for i, r := range doc.Reactions {
		name := reactionName(i, r)
		if reactions[name] {
			return fmt.Errorf("%w: duplicate reaction %s", ErrInvalidDocument, name)
		}
		reactions[name] = true
		if err := validateFormula(r.Formula); err != nil {
			return fmt.Errorf("%w: reaction %s: %w", ErrInvalidDocument, name, err)
		}
	}
	if doc.Search != nil {
		if err := validateSearch(doc.Search); err != nil {
			return fmt.Errorf("%w: search: %w", ErrInvalidDocument, err)
		}
	}
	return nil
}

func validateFormula(f FormulaDoc) error {
	switch f.Kind {
	case "transcription":
		if f.Target == "" {
			return errors.New("transcription needs a target")
		}
	case "translation", "degradation":
		if f.Species == "" {
			return fmt.Errorf("%s needs a species", f.Kind)
		}
	case "custom":
		if strings.TrimSpace(f.Law) == "" {
			return errors.New("custom formula needs a law")
		}
	}
	return nil
}

func validateSearch(s *SearchDoc) error {
	if len(s.Schedule) > 0 && s.LinearSchedule > 0 {
		return errors.New("schedule and linear_schedule are exclusive")
	}
	for i, m := range s.Mutables {
		if m.Lower > m.Upper {
			return fmt.Errorf("mutable %d (%s): lower %g exceeds upper %g", i, m.Handle, m.Lower, m.Upper)
		}
	}
	for i, c := range s.Constraints {
		forms := 0
		if c.Below != nil {
			forms++
		}
		if c.Above != nil {
			forms++
		}
		if len(c.Within) > 0 {
			forms++
			if c.Within[0] > c.Within[1] {
				return fmt.Errorf("constraint %d (%s): within bounds are reversed", i, c.Species)
			}
		}
		if c.Expression != "" {
			forms++
		}
		if forms != 1 {
			return fmt.Errorf("constraint %d (%s): set exactly one of below, above, within or expression", i, c.Species)
		}
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	for _, e := range validationErrs {
		field := strings.TrimPrefix(e.Namespace(), "Document.")
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must have at least %s entries", field, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s], got %v", field, e.Param(), e.Value())
		case "gte", "gt":
			return fmt.Errorf("%s: must be %s %s, got %v", field, e.Tag(), e.Param(), e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}

func reactionName(i int, r ReactionDoc) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("reaction_%d", i)
}
