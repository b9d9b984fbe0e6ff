package content

import (
	"sort"
	"strings"
)

// ProjectPayload is the editor form submitted on save, publish and unpublish.
type ProjectPayload struct {
	Title         string           `json:"title"`
	Slug          string           `json:"slug"`
	Category      string           `json:"category"`
	Location      string           `json:"location"`
	Year          string           `json:"year"`
	Excerpt       string           `json:"excerpt"`
	Hero          *ImageInput      `json:"hero"`
	Description   []ParagraphInput `json:"description"`
	Meta          []MetaInput      `json:"meta"`
	Services      []LabelInput     `json:"services"`
	Collaborators []LabelInput     `json:"collaborators"`
	Gallery       []ImageInput     `json:"gallery"`
}

// ImageInput references an image by asset id or URL.
type ImageInput struct {
	ID      string `json:"id"`
	AssetID string `json:"assetId"`
	URL     string `json:"url"`
	Caption string `json:"caption"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Order   *int   `json:"order"`
}

// ParagraphInput is one submitted description paragraph.
type ParagraphInput struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Order *int   `json:"order"`
}

// MetaInput is one submitted label/value row.
type MetaInput struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
	Order *int   `json:"order"`
}

// LabelInput is one submitted service or collaborator label.
type LabelInput struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Order *int   `json:"order"`
}

func (i ImageInput) hasImage() bool {
	return strings.TrimSpace(i.AssetID) != "" || strings.TrimSpace(i.URL) != ""
}

func (i ImageInput) blank() bool {
	return !i.hasImage() && strings.TrimSpace(i.Caption) == ""
}

// arrange returns items in display order: an explicit order value wins,
// otherwise the submitted position counts. Ties keep submission order.
func arrange[T any](items []T, orderOf func(T) *int) []T {
	type positioned struct {
		item T
		key  int
	}
	ranked := make([]positioned, 0, len(items))
	for index, item := range items {
		key := index
		if explicit := orderOf(item); explicit != nil {
			key = *explicit
		}
		ranked = append(ranked, positioned{item: item, key: key})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].key < ranked[j].key
	})
	arranged := make([]T, 0, len(ranked))
	for _, entry := range ranked {
		arranged = append(arranged, entry.item)
	}
	return arranged
}

// subdocumentIDs hands out ids for list items, keeping a submitted id only
// when it names an item the list already holds.
type subdocumentIDs struct {
	known      map[string]struct{}
	issued     map[string]struct{}
	idProvider IDProvider
}

func newSubdocumentIDs(idProvider IDProvider, existing []string) *subdocumentIDs {
	known := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		known[id] = struct{}{}
	}
	return &subdocumentIDs{known: known, issued: make(map[string]struct{}), idProvider: idProvider}
}

func (s *subdocumentIDs) next(submitted string) (string, error) {
	submitted = strings.TrimSpace(submitted)
	if _, ok := s.known[submitted]; ok {
		if _, reused := s.issued[submitted]; !reused {
			s.issued[submitted] = struct{}{}
			return submitted, nil
		}
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return "", err
	}
	s.issued[id] = struct{}{}
	return id, nil
}

func paragraphIDs(items []Paragraph) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func metaIDs(items []MetaRow) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func serviceIDs(items []ServiceRef) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func collaboratorIDs(items []CollaboratorRef) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func galleryIDs(items []GalleryItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

// referencedAssetIDs returns the distinct hero and gallery asset ids.
func referencedAssetIDs(project Project) map[string]struct{} {
	ids := make(map[string]struct{})
	if hero := project.Hero.Data(); hero.AssetID != "" {
		ids[hero.AssetID] = struct{}{}
	}
	for _, item := range project.Gallery {
		if item.AssetID != "" {
			ids[item.AssetID] = struct{}{}
		}
	}
	return ids
}

// releasedAssetIDs lists ids present before a mutation and absent after it.
func releasedAssetIDs(before, after map[string]struct{}) []string {
	released := make([]string, 0)
	for id := range before {
		if _, kept := after[id]; !kept {
			released = append(released, id)
		}
	}
	sort.Strings(released)
	return released
}
