package content

import (
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/media"
	"gorm.io/gorm"
)

// assetBinder turns submitted image references into canonical asset rows.
type assetBinder struct {
	catalog *media.Catalog
}

// bind resolves input by live asset id first, then by URL, creating the
// asset row when the URL is new. It reports unresolvable references through
// the returned bool so callers can surface them as violations.
func (b assetBinder) bind(tx *gorm.DB, input ImageInput, kind media.Kind, projectID string, actor Actor) (media.Asset, bool, error) {
	assetID := strings.TrimSpace(input.AssetID)
	rawURL := strings.TrimSpace(input.URL)
	if assetID != "" {
		asset, err := b.catalog.FindLive(tx, assetID)
		if err == nil {
			return asset, true, nil
		}
		if !errors.Is(err, media.ErrAssetNotFound) {
			return media.Asset{}, false, err
		}
		if rawURL == "" {
			return media.Asset{}, false, nil
		}
	}
	if rawURL == "" {
		return media.Asset{}, false, nil
	}
	asset, _, err := b.catalog.Ensure(tx, media.EnsureRequest{
		PublicURL:  rawURL,
		Kind:       kind,
		Dimensions: media.Dimensions{Width: input.Width, Height: input.Height},
		ProjectID:  projectID,
		Actor:      actor.String(),
	})
	if errors.Is(err, media.ErrInvalidAssetReference) {
		return media.Asset{}, false, nil
	}
	if err != nil {
		return media.Asset{}, false, err
	}
	return asset, true, nil
}

// mediaReferences lists the reference rows a document with these images holds.
func mediaReferences(hero HeroImage, gallery []GalleryItem) []media.Reference {
	references := make([]media.Reference, 0, len(gallery)+1)
	if hero.AssetID != "" {
		references = append(references, media.Reference{AssetID: hero.AssetID, Role: media.KindHero})
	}
	for _, item := range gallery {
		if item.AssetID == "" {
			continue
		}
		references = append(references, media.Reference{AssetID: item.AssetID, Role: media.KindGallery})
	}
	return references
}

func pickDimension(submitted, stored int) int {
	if submitted > 0 {
		return submitted
	}
	return stored
}
