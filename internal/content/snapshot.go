package content

import (
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// buildSnapshot flattens a project into its public form.
func buildSnapshot(project Project) PublishedProject {
	hero := project.Hero.Data()
	description := make([]string, 0, len(project.Description))
	for _, paragraph := range project.Description {
		description = append(description, paragraph.Text)
	}
	meta := make([]PublishedMeta, 0, len(project.Meta))
	for _, row := range project.Meta {
		meta = append(meta, PublishedMeta{Label: row.Label, Value: row.Value})
	}
	services := make([]string, 0, len(project.Services))
	for _, service := range project.Services {
		services = append(services, service.Label)
	}
	collaborators := make([]PublishedCollaborator, 0, len(project.Collaborators))
	for _, collaborator := range project.Collaborators {
		collaborators = append(collaborators, PublishedCollaborator{Name: collaborator.Name, Organization: collaborator.Organization})
	}
	gallery := make([]PublishedImage, 0, len(project.Gallery))
	for _, item := range project.Gallery {
		gallery = append(gallery, PublishedImage{
			AssetID: item.AssetID,
			URL:     item.URL,
			Caption: item.Caption,
			Width:   item.Width,
			Height:  item.Height,
		})
	}

	snapshot := PublishedProject{
		ProjectID: project.ID,
		Slug:      project.Slug,
		Title:     project.Title,
		TitleSort: project.TitleSort,
		Category:  project.CategoryLabel,
		Location:  project.Location,
		Year:      project.Year,
		Excerpt:   project.Excerpt,
		Hero: datatypes.NewJSONType(PublishedImage{
			AssetID: hero.AssetID,
			URL:     hero.URL,
			Caption: hero.Caption,
			Width:   hero.Width,
			Height:  hero.Height,
		}),
		Description:   datatypes.JSONSlice[string](description),
		Meta:          datatypes.JSONSlice[PublishedMeta](meta),
		Services:      datatypes.JSONSlice[string](services),
		Collaborators: datatypes.JSONSlice[PublishedCollaborator](collaborators),
		Gallery:       datatypes.JSONSlice[PublishedImage](gallery),
		SearchText:    strings.Join(project.SearchTokens, " "),
		Revision:      project.Revision,
		PublishedBy:   project.PublishedBy,
	}
	if project.PublishedAt != nil {
		snapshot.PublishedAt = *project.PublishedAt
	}
	return snapshot
}

func upsertSnapshot(tx *gorm.DB, snapshot PublishedProject) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		UpdateAll: true,
	}).Create(&snapshot).Error
}

func removeSnapshot(tx *gorm.DB, projectID string) error {
	return tx.Where("project_id = ?", projectID).Delete(&PublishedProject{}).Error
}
