package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// applyPayload normalizes payload onto project inside tx. Lookup rows and
// asset rows are resolved on the way; image references that cannot be bound
// come back as violations.
func (s *Service) applyPayload(tx *gorm.DB, project *Project, payload ProjectPayload, actor Actor, now time.Time) ([]Violation, error) {
	violations := make([]Violation, 0)

	project.Title = strings.Join(strings.Fields(payload.Title), " ")
	project.TitleSort = SortTitle(project.Title)

	// An explicit slug is kept as submitted so the validator can reject it;
	// a slug derived from the title is suffixed until free.
	if explicit := strings.TrimSpace(payload.Slug); explicit != "" {
		project.Slug = explicit
	} else if base := Slugify(project.Title); base != "" && !slugDerivesFrom(project.Slug, base) {
		slug, err := allocateSlug(tx, base, project.ID, now)
		if err != nil {
			return nil, err
		}
		project.Slug = slug
	}

	category, found, err := s.references.ensureCategory(tx, payload.Category, now)
	if err != nil {
		return nil, err
	}
	if found {
		project.CategoryID = category.ID
		project.CategoryLabel = category.Label
	} else {
		project.CategoryID = ""
		project.CategoryLabel = ""
	}
	project.Location = strings.TrimSpace(payload.Location)
	project.Year = strings.TrimSpace(payload.Year)
	project.Excerpt = strings.TrimSpace(payload.Excerpt)

	hero, heroViolations, err := s.applyHero(tx, project.ID, payload.Hero, actor)
	if err != nil {
		return nil, err
	}
	project.Hero = datatypes.NewJSONType(hero)
	violations = append(violations, heroViolations...)

	description, err := s.applyDescription(project.Description, payload.Description)
	if err != nil {
		return nil, err
	}
	project.Description = description

	meta, err := s.applyMeta(project.Meta, payload.Meta)
	if err != nil {
		return nil, err
	}
	project.Meta = meta

	services, err := s.applyServices(tx, project.Services, payload.Services, now)
	if err != nil {
		return nil, err
	}
	project.Services = services

	collaborators, err := s.applyCollaborators(tx, project.Collaborators, payload.Collaborators, now)
	if err != nil {
		return nil, err
	}
	project.Collaborators = collaborators

	gallery, galleryViolations, err := s.applyGallery(tx, project.ID, project.Gallery, payload.Gallery, actor)
	if err != nil {
		return nil, err
	}
	project.Gallery = gallery
	violations = append(violations, galleryViolations...)

	project.SearchTokens = datatypes.JSONSlice[string](projectSearchTokens(*project))
	return violations, nil
}

func (s *Service) applyHero(tx *gorm.DB, projectID string, input *ImageInput, actor Actor) (HeroImage, []Violation, error) {
	if input == nil {
		return HeroImage{}, nil, nil
	}
	hero := HeroImage{Caption: strings.TrimSpace(input.Caption)}
	if !input.hasImage() {
		return hero, nil, nil
	}
	asset, bound, err := s.binder.bind(tx, *input, media.KindHero, projectID, actor)
	if err != nil {
		return HeroImage{}, nil, err
	}
	if !bound {
		return hero, []Violation{{Field: "hero", Message: "hero image not found"}}, nil
	}
	hero.AssetID = asset.ID
	hero.URL = asset.PublicURL
	hero.Width = pickDimension(input.Width, asset.Width)
	hero.Height = pickDimension(input.Height, asset.Height)
	return hero, nil, nil
}

func (s *Service) applyDescription(existing []Paragraph, inputs []ParagraphInput) (datatypes.JSONSlice[Paragraph], error) {
	ids := newSubdocumentIDs(s.idProvider, paragraphIDs(existing))
	arranged := arrange(inputs, func(input ParagraphInput) *int { return input.Order })
	paragraphs := make([]Paragraph, 0, len(arranged))
	for _, input := range arranged {
		text := strings.TrimSpace(input.Text)
		if text == "" {
			continue
		}
		id, err := ids.next(input.ID)
		if err != nil {
			return nil, err
		}
		paragraphs = append(paragraphs, Paragraph{ID: id, Text: text, Order: len(paragraphs)})
	}
	return datatypes.JSONSlice[Paragraph](paragraphs), nil
}

func (s *Service) applyMeta(existing []MetaRow, inputs []MetaInput) (datatypes.JSONSlice[MetaRow], error) {
	ids := newSubdocumentIDs(s.idProvider, metaIDs(existing))
	arranged := arrange(inputs, func(input MetaInput) *int { return input.Order })
	rows := make([]MetaRow, 0, len(arranged))
	for _, input := range arranged {
		label := strings.TrimSpace(input.Label)
		value := strings.TrimSpace(input.Value)
		if label == "" && value == "" {
			continue
		}
		id, err := ids.next(input.ID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, MetaRow{ID: id, Label: label, Value: value, Order: len(rows)})
	}
	return datatypes.JSONSlice[MetaRow](rows), nil
}

func (s *Service) applyServices(tx *gorm.DB, existing []ServiceRef, inputs []LabelInput, now time.Time) (datatypes.JSONSlice[ServiceRef], error) {
	ids := newSubdocumentIDs(s.idProvider, serviceIDs(existing))
	arranged := arrange(inputs, func(input LabelInput) *int { return input.Order })
	refs := make([]ServiceRef, 0, len(arranged))
	seen := make(map[string]struct{}, len(arranged))
	for _, input := range arranged {
		service, found, err := s.references.ensureService(tx, input.Label, now)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if _, duplicate := seen[service.ID]; duplicate {
			continue
		}
		seen[service.ID] = struct{}{}
		id, err := ids.next(input.ID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ServiceRef{ID: id, ServiceID: service.ID, Label: service.Label, Order: len(refs)})
	}
	return datatypes.JSONSlice[ServiceRef](refs), nil
}

func (s *Service) applyCollaborators(tx *gorm.DB, existing []CollaboratorRef, inputs []LabelInput, now time.Time) (datatypes.JSONSlice[CollaboratorRef], error) {
	ids := newSubdocumentIDs(s.idProvider, collaboratorIDs(existing))
	arranged := arrange(inputs, func(input LabelInput) *int { return input.Order })
	refs := make([]CollaboratorRef, 0, len(arranged))
	seen := make(map[string]struct{}, len(arranged))
	for _, input := range arranged {
		collaborator, found, err := s.references.ensureCollaborator(tx, input.Label, now)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if _, duplicate := seen[collaborator.ID]; duplicate {
			continue
		}
		seen[collaborator.ID] = struct{}{}
		id, err := ids.next(input.ID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, CollaboratorRef{
			ID:             id,
			CollaboratorID: collaborator.ID,
			Name:           collaborator.DisplayName,
			Organization:   collaborator.Organization,
			Order:          len(refs),
		})
	}
	return datatypes.JSONSlice[CollaboratorRef](refs), nil
}

func (s *Service) applyGallery(tx *gorm.DB, projectID string, existing []GalleryItem, inputs []ImageInput, actor Actor) (datatypes.JSONSlice[GalleryItem], []Violation, error) {
	ids := newSubdocumentIDs(s.idProvider, galleryIDs(existing))
	arranged := arrange(inputs, func(input ImageInput) *int { return input.Order })
	items := make([]GalleryItem, 0, len(arranged))
	violations := make([]Violation, 0)
	for _, input := range arranged {
		if input.blank() {
			continue
		}
		id, err := ids.next(input.ID)
		if err != nil {
			return nil, nil, err
		}
		item := GalleryItem{ID: id, Caption: strings.TrimSpace(input.Caption), Order: len(items)}
		if input.hasImage() {
			asset, bound, err := s.binder.bind(tx, input, media.KindGallery, projectID, actor)
			if err != nil {
				return nil, nil, err
			}
			if bound {
				item.AssetID = asset.ID
				item.URL = asset.PublicURL
				item.Width = pickDimension(input.Width, asset.Width)
				item.Height = pickDimension(input.Height, asset.Height)
			} else {
				violations = append(violations, Violation{
					Field:   fmt.Sprintf("gallery[%d]", item.Order),
					Message: fmt.Sprintf("gallery item %d image not found", item.Order+1),
				})
			}
		}
		items = append(items, item)
	}
	return datatypes.JSONSlice[GalleryItem](items), violations, nil
}

func projectSearchTokens(project Project) []string {
	values := []string{project.Title, project.CategoryLabel, project.Location, project.Year, project.Excerpt}
	for _, service := range project.Services {
		values = append(values, service.Label)
	}
	for _, collaborator := range project.Collaborators {
		values = append(values, collaborator.Name, collaborator.Organization)
	}
	return searchTokens(values...)
}
