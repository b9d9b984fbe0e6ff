package content

import (
	"fmt"
	"strings"
)

// SavePolicy decides what saving an already published project does.
type SavePolicy string

const (
	// SavePolicyRefreshLive validates strictly and refreshes the public snapshot.
	SavePolicyRefreshLive SavePolicy = "refresh-live"
	// SavePolicyRequirePublish keeps the snapshot until the next explicit publish.
	SavePolicyRequirePublish SavePolicy = "require-publish"
)

// ParseSavePolicy validates raw configuration input. Underscores are accepted
// in place of hyphens so env values like require_publish work.
func ParseSavePolicy(raw string) (SavePolicy, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-")
	switch SavePolicy(normalized) {
	case "", SavePolicyRefreshLive:
		return SavePolicyRefreshLive, nil
	case SavePolicyRequirePublish:
		return SavePolicyRequirePublish, nil
	default:
		return "", fmt.Errorf("unknown save policy %q", raw)
	}
}

type mutationKind int

const (
	mutationSave mutationKind = iota
	mutationPublish
	mutationUnpublish
	mutationDelete
)

type snapshotEffect int

const (
	snapshotKeep snapshotEffect = iota
	snapshotUpsert
	snapshotRemove
)

// transition is the planned effect of one mutation on a project.
type transition struct {
	action       HistoryAction
	from         Status
	to           Status
	mode         ValidationMode
	validate     bool
	bumpRevision bool
	source       VersionSource
	snapshot     snapshotEffect
}

var errArchivedProject = fmt.Errorf("%w: project is archived", ErrProjectNotFound)

// planTransition decides the state change for kind applied to a project in
// status current. Archived projects accept no mutation.
func planTransition(kind mutationKind, current Status, policy SavePolicy) (transition, error) {
	if current == StatusArchived {
		return transition{}, errArchivedProject
	}
	switch kind {
	case mutationSave:
		plan := transition{
			action:       ActionSaved,
			from:         current,
			to:           current,
			mode:         ModeLoose,
			validate:     true,
			bumpRevision: true,
			source:       SourceManualSave,
			snapshot:     snapshotKeep,
		}
		if current == StatusPublished && policy != SavePolicyRequirePublish {
			plan.mode = ModeStrict
			plan.snapshot = snapshotUpsert
		}
		return plan, nil
	case mutationPublish:
		return transition{
			action:       ActionPublished,
			from:         current,
			to:           StatusPublished,
			mode:         ModeStrict,
			validate:     true,
			bumpRevision: true,
			source:       SourcePublish,
			snapshot:     snapshotUpsert,
		}, nil
	case mutationUnpublish:
		return transition{
			action:       ActionUnpublished,
			from:         current,
			to:           StatusDraft,
			mode:         ModeLoose,
			validate:     true,
			bumpRevision: true,
			source:       SourceUnpublish,
			snapshot:     snapshotRemove,
		}, nil
	case mutationDelete:
		return transition{
			action:   ActionDeleted,
			from:     current,
			to:       StatusArchived,
			snapshot: snapshotRemove,
		}, nil
	default:
		return transition{}, fmt.Errorf("unknown mutation %d", kind)
	}
}

// publishedAfter reports whether a snapshot exists once the plan is applied.
func (t transition) publishedAfter() bool {
	switch t.snapshot {
	case snapshotUpsert:
		return true
	case snapshotRemove:
		return false
	default:
		return t.to == StatusPublished
	}
}
