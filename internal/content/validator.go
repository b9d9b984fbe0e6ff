package content

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ValidationMode selects the rule set applied to a project.
type ValidationMode int

const (
	// ModeLoose applies the rules every stored draft satisfies.
	ModeLoose ValidationMode = iota
	// ModeStrict adds the rules a project must satisfy to be public.
	ModeStrict
)

const (
	minParagraphs      = 2
	minParagraphLength = 80
	minMetaRows        = 3
	minGalleryImages   = 3
	maxGalleryImages   = 15
)

var yearPattern = regexp.MustCompile(`^\d{4}(-\d{2})?$`)

// scalarFields mirrors the single-valued project fields for tag validation.
type scalarFields struct {
	Title       string `validate:"required,max=120"`
	Slug        string `validate:"required,slug,max=60"`
	Category    string `validate:"required"`
	Location    string `validate:"required"`
	Year        string `validate:"required,projectyear"`
	HeroCaption string `validate:"max=140"`
	Excerpt     string `validate:"required,max=360"`
}

var scalarMessages = map[string]string{
	"Title.required":    "title required",
	"Title.max":         "title must be at most 120 characters",
	"Slug.required":     "slug required",
	"Slug.slug":         "slug must contain only lowercase letters, digits and hyphens",
	"Slug.max":          "slug must be at most 60 characters",
	"Category.required": "category required",
	"Location.required": "location required",
	"Year.required":     "year required",
	"Year.projectyear":  "year must match YYYY or YYYY-YY",
	"HeroCaption.max":   "hero caption must be at most 140 characters",
	"Excerpt.required":  "excerpt required",
	"Excerpt.max":       "excerpt must be at most 360 characters",
}

var scalarFieldNames = map[string]string{
	"Title":       "title",
	"Slug":        "slug",
	"Category":    "category",
	"Location":    "location",
	"Year":        "year",
	"HeroCaption": "hero.caption",
	"Excerpt":     "excerpt",
}

// Validator checks a normalized project against the content rules and
// collects every violation instead of stopping at the first.
type Validator struct {
	fields *validator.Validate
}

// NewValidator registers the custom tags and returns a Validator.
func NewValidator() *Validator {
	fields := validator.New(validator.WithRequiredStructEnabled())
	_ = fields.RegisterValidation("slug", func(level validator.FieldLevel) bool {
		return slugPattern.MatchString(level.Field().String())
	})
	_ = fields.RegisterValidation("projectyear", func(level validator.FieldLevel) bool {
		return yearPattern.MatchString(level.Field().String())
	})
	return &Validator{fields: fields}
}

// Validate returns every rule project breaks under mode. slugTaken reports
// that another live project already holds the slug.
func (v *Validator) Validate(project Project, mode ValidationMode, slugTaken bool) []Violation {
	violations := make([]Violation, 0)
	hero := project.Hero.Data()

	violations = append(violations, v.validateScalars(project, hero)...)
	if slugTaken {
		violations = append(violations, Violation{Field: "slug", Message: "slug already in use"})
	}

	if len(project.Description) < minParagraphs {
		violations = append(violations, Violation{Field: "description", Message: "at least 2 description paragraphs required"})
	}
	for index, paragraph := range project.Description {
		if utf8.RuneCountInString(paragraph.Text) < minParagraphLength {
			violations = append(violations, Violation{
				Field:   fmt.Sprintf("description[%d]", index),
				Message: fmt.Sprintf("description paragraph %d must be at least 80 characters", index+1),
			})
		}
	}

	if len(project.Meta) < minMetaRows {
		violations = append(violations, Violation{Field: "meta", Message: "at least 3 meta rows required"})
	}
	seenMeta := make(map[[2]string]struct{}, len(project.Meta))
	for index, row := range project.Meta {
		field := fmt.Sprintf("meta[%d]", index)
		if row.Label == "" || row.Value == "" {
			violations = append(violations, Violation{Field: field, Message: fmt.Sprintf("meta row %d label and value required", index+1)})
			continue
		}
		key := [2]string{foldText(row.Label), foldText(row.Value)}
		if _, duplicate := seenMeta[key]; duplicate {
			violations = append(violations, Violation{Field: field, Message: fmt.Sprintf("meta row %d duplicates another row", index+1)})
			continue
		}
		seenMeta[key] = struct{}{}
	}

	if len(project.Services) < 1 {
		violations = append(violations, Violation{Field: "services", Message: "at least 1 service required"})
	}
	if len(project.Collaborators) < 1 {
		violations = append(violations, Violation{Field: "collaborators", Message: "at least 1 collaborator required"})
	}
	if len(project.Gallery) > maxGalleryImages {
		violations = append(violations, Violation{Field: "gallery", Message: "gallery must contain at most 15 images"})
	}

	if mode != ModeStrict {
		return violations
	}

	if hero.AssetID == "" {
		violations = append(violations, Violation{Field: "hero", Message: "hero image required"})
	}
	if hero.Caption == "" {
		violations = append(violations, Violation{Field: "hero.caption", Message: "hero caption required"})
	}
	if len(project.Gallery) < minGalleryImages {
		violations = append(violations, Violation{Field: "gallery", Message: "gallery must contain at least 3 images"})
	}
	for index, item := range project.Gallery {
		field := fmt.Sprintf("gallery[%d]", index)
		if item.AssetID == "" {
			violations = append(violations, Violation{Field: field, Message: fmt.Sprintf("gallery item %d image required", index+1)})
		}
		if item.Caption == "" {
			violations = append(violations, Violation{Field: field, Message: fmt.Sprintf("gallery item %d caption required", index+1)})
		}
	}
	return violations
}

func (v *Validator) validateScalars(project Project, hero HeroImage) []Violation {
	err := v.fields.Struct(scalarFields{
		Title:       project.Title,
		Slug:        project.Slug,
		Category:    project.CategoryLabel,
		Location:    project.Location,
		Year:        project.Year,
		HeroCaption: hero.Caption,
		Excerpt:     project.Excerpt,
	})
	if err == nil {
		return nil
	}
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []Violation{{Field: "payload", Message: err.Error()}}
	}
	violations := make([]Violation, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		message, known := scalarMessages[fieldErr.Field()+"."+fieldErr.Tag()]
		if !known {
			message = fmt.Sprintf("%s is invalid", scalarFieldNames[fieldErr.Field()])
		}
		violations = append(violations, Violation{Field: scalarFieldNames[fieldErr.Field()], Message: message})
	}
	return violations
}
