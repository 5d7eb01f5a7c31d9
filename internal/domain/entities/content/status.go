package content

import (
	"fmt"
	"strings"
)

// Status is the publication state of a content entity.
type Status string

const (
	StatusPublished Status = "published"
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusPrivate   Status = "private"
	StatusTrashed   Status = "trashed"
	StatusRevision  Status = "revision"
)

// NonPublishedStatuses are searched by the slug fallback of the resolver.
var NonPublishedStatuses = []Status{StatusDraft, StatusPending, StatusScheduled, StatusPrivate}

// TitleSearchStatuses are searched by the title fallback of the resolver.
var TitleSearchStatuses = []Status{StatusPublished, StatusDraft, StatusPending, StatusScheduled, StatusPrivate}

var wordpressStatusNames = map[Status]string{
	StatusPublished: "publish",
	StatusDraft:     "draft",
	StatusPending:   "pending",
	StatusScheduled: "future",
	StatusPrivate:   "private",
	StatusTrashed:   "trash",
	StatusRevision:  "inherit",
}

// ParseStatus accepts both the canonical names and the WordPress post_status
// names (publish, future, trash, inherit, auto-draft).
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "published", "publish":
		return StatusPublished, nil
	case "draft", "auto-draft":
		return StatusDraft, nil
	case "pending":
		return StatusPending, nil
	case "scheduled", "future":
		return StatusScheduled, nil
	case "private":
		return StatusPrivate, nil
	case "trashed", "trash":
		return StatusTrashed, nil
	case "revision", "inherit":
		return StatusRevision, nil
	}
	return "", fmt.Errorf("unknown content status %q", raw)
}

// WordPress returns the post_status name the frontend contract uses.
func (s Status) WordPress() string {
	if name, ok := wordpressStatusNames[s]; ok {
		return name
	}
	return string(s)
}

// IsPublic reports whether the entity is visible to anonymous readers.
func (s Status) IsPublic() bool {
	return s == StatusPublished
}

// IsDraftLike reports whether the entity has not been published yet.
func (s Status) IsDraftLike() bool {
	for _, candidate := range NonPublishedStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// ChangeKind classifies a content mutation.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeUpdated  ChangeKind = "updated"
	ChangeTrashed  ChangeKind = "trashed"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRestored ChangeKind = "restored"
)

// ParseChangeKind accepts the canonical names plus the WordPress hook names
// (save, delete, trash, untrash).
func ParseChangeKind(raw string) (ChangeKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "created", "create":
		return ChangeCreated, nil
	case "updated", "update", "save", "saved":
		return ChangeUpdated, nil
	case "trashed", "trash":
		return ChangeTrashed, nil
	case "deleted", "delete":
		return ChangeDeleted, nil
	case "restored", "restore", "untrash":
		return ChangeRestored, nil
	}
	return "", fmt.Errorf("unknown change kind %q", raw)
}
