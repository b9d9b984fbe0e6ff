package content

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

var collaboratorSeparators = []string{" — ", " – ", " - ", "—", "–"}

// referenceResolver maps free-text labels onto deduplicated lookup rows,
// creating rows on first sight. Rows it creates are attributed to the
// system actor rather than the editor.
type referenceResolver struct {
	idProvider  IDProvider
	systemActor Actor
}

func (r referenceResolver) ensureCategory(tx *gorm.DB, label string, now time.Time) (Category, bool, error) {
	label = strings.Join(strings.Fields(label), " ")
	slug := Slugify(label)
	if slug == "" {
		return Category{}, false, nil
	}
	var existing Category
	err := tx.Where("slug = ?", slug).Take(&existing).Error
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Category{}, false, err
	}
	id, err := r.idProvider.NewID()
	if err != nil {
		return Category{}, false, err
	}
	category := Category{ID: id, Slug: slug, Label: label, CreatedBy: r.systemActor.String(), CreatedAt: now}
	if err := tx.Create(&category).Error; err != nil {
		return Category{}, false, err
	}
	return category, true, nil
}

func (r referenceResolver) ensureService(tx *gorm.DB, label string, now time.Time) (ServiceOffering, bool, error) {
	label = strings.Join(strings.Fields(label), " ")
	slug := Slugify(label)
	if slug == "" {
		return ServiceOffering{}, false, nil
	}
	var existing ServiceOffering
	err := tx.Where("slug = ?", slug).Take(&existing).Error
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return ServiceOffering{}, false, err
	}
	id, err := r.idProvider.NewID()
	if err != nil {
		return ServiceOffering{}, false, err
	}
	service := ServiceOffering{ID: id, Slug: slug, Label: label, CreatedBy: r.systemActor.String(), CreatedAt: now}
	if err := tx.Create(&service).Error; err != nil {
		return ServiceOffering{}, false, err
	}
	return service, true, nil
}

func (r referenceResolver) ensureCollaborator(tx *gorm.DB, label string, now time.Time) (Collaborator, bool, error) {
	name, organization := splitCollaboratorLabel(label)
	key := collaboratorIdentity(name, organization)
	if key == "" {
		return Collaborator{}, false, nil
	}
	var existing Collaborator
	err := tx.Where("identity_key = ?", key).Take(&existing).Error
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Collaborator{}, false, err
	}
	id, err := r.idProvider.NewID()
	if err != nil {
		return Collaborator{}, false, err
	}
	collaborator := Collaborator{
		ID:           id,
		IdentityKey:  key,
		DisplayName:  name,
		Organization: organization,
		CreatedBy:    r.systemActor.String(),
		CreatedAt:    now,
	}
	if err := tx.Create(&collaborator).Error; err != nil {
		return Collaborator{}, false, err
	}
	return collaborator, true, nil
}

// splitCollaboratorLabel reads "Name - Organization" labels, with any dash. The first
// matching separator wins; a label without one is a bare name.
func splitCollaboratorLabel(label string) (string, string) {
	trimmed := strings.Join(strings.Fields(label), " ")
	for _, separator := range collaboratorSeparators {
		if index := strings.Index(trimmed, separator); index >= 0 {
			name := strings.TrimSpace(trimmed[:index])
			organization := strings.TrimSpace(trimmed[index+len(separator):])
			if name == "" {
				return organization, ""
			}
			return name, organization
		}
	}
	return trimmed, ""
}

func collaboratorIdentity(name, organization string) string {
	nameSlug := Slugify(name)
	if nameSlug == "" {
		return ""
	}
	return nameSlug + "|" + Slugify(organization)
}
