package autoblog

import (
	"strings"
	"time"

	"github.com/eringen/autoblog/blog"
)

// PublishMode is the publication requested for a generated document.
type PublishMode string

const (
	ModeDraft    PublishMode = "draft"
	ModePublish  PublishMode = "publish"
	ModeSchedule PublishMode = "schedule"
)

// ParsePublishMode normalises a mode given by a caller. An empty mode is a
// draft.
func ParsePublishMode(s string) PublishMode {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeDraft
	}
	return PublishMode(s)
}

// Decide sets the publication state for mode. Exactly one timestamp is set
// for published and scheduled documents, none for drafts. Scheduling
// requires a time strictly after now.
func Decide(mode PublishMode, scheduledFor, now time.Time) (blog.Publication, error) {
	now = now.UTC().Truncate(time.Second)
	switch mode {
	case ModeDraft, "":
		return blog.Publication{State: blog.StateDraft}, nil
	case ModePublish:
		return blog.Publication{State: blog.StatePublished, PublishedAt: &now}, nil
	case ModeSchedule:
		if scheduledFor.IsZero() {
			return blog.Publication{}, blog.Invalid("scheduled_for", "a schedule needs a target date and time")
		}
		at := scheduledFor.UTC().Truncate(time.Second)
		if !at.After(now) {
			return blog.Publication{}, blog.Invalid("scheduled_for", "%s is not in the future", at.Format(time.RFC3339))
		}
		return blog.Publication{State: blog.StateScheduled, ScheduledFor: &at}, nil
	default:
		return blog.Publication{}, blog.Invalid("mode", "unknown publish mode %q (use draft, publish or schedule)", string(mode))
	}
}
