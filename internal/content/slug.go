package content

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

const maxSlugAttempts = 1000

var (
	slugPattern      = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	errSlugExhausted = errors.New("no free slug candidate")
)

// allocateSlug returns the first free slug derived from desired among live
// projects other than excludeID. Candidates are base, base-1, base-2 and so on,
// with the base trimmed so the suffixed slug still fits MaxSlugLength.
// Uniqueness under concurrency is enforced by the partial unique index on
// projects.slug; a losing writer gets a constraint error and retries.
func allocateSlug(tx *gorm.DB, desired string, excludeID string, now time.Time) (string, error) {
	base := Slugify(desired)
	if base == "" {
		base = fmt.Sprintf("project-%d", now.UnixMilli())
	}
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			suffix := "-" + strconv.Itoa(attempt)
			candidate = truncateSlug(base, MaxSlugLength-len(suffix)) + suffix
		}
		taken, err := slugInUse(tx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", errSlugExhausted, base)
}

// slugInUse reports whether another live project or another project's public
// snapshot holds slug. A published project keeps its snapshot slug until the
// next publish, so both tables count.
func slugInUse(tx *gorm.DB, slug string, excludeID string) (bool, error) {
	var count int64
	query := tx.Model(&Project{}).Where("slug = ? AND deleted_at IS NULL", slug)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	snapshots := tx.Model(&PublishedProject{}).Where("slug = ?", slug)
	if excludeID != "" {
		snapshots = snapshots.Where("project_id <> ?", excludeID)
	}
	if err := snapshots.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// slugDerivesFrom reports whether current is base or one of its numbered
// variants, in which case re-allocation would only churn the public URL.
func slugDerivesFrom(current, base string) bool {
	if current == "" || base == "" {
		return false
	}
	if current == base {
		return true
	}
	index := strings.LastIndex(current, "-")
	if index <= 0 {
		return false
	}
	suffix := current[index+1:]
	if _, err := strconv.Atoi(suffix); err != nil {
		return false
	}
	return current[:index] == truncateSlug(base, MaxSlugLength-len(suffix)-1)
}
