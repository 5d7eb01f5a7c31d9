package services

import (
	"context"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/manager"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/messaging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/metrics"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/revalidation"
)

// Frontend tags revalidated on site-wide changes.
const (
	TagSettings      = "settings"
	TagBeforeContent = "before_content"
	TagAfterContent  = "after_content"
)

// FeedEventSettings is the feed event type of settings reports.
const FeedEventSettings = "settings"

// SettingsReport describes one settings-driven invalidation.
type SettingsReport struct {
	Section      string               `json:"section"`
	EvictedKeys  int                  `json:"evicted_keys"`
	Targets      []string             `json:"targets"`
	Revalidation revalidation.Summary `json:"revalidation"`
	Errors       []string             `json:"errors,omitempty"`
}

// SettingsInvalidation handles site-wide changes. Reading settings can move
// the homepage and templates and menus render on every route, so the whole
// route cache is flushed.
type SettingsInvalidation struct {
	cache       *manager.Manager
	revalidator Revalidator
	publisher   messaging.Publisher
	logger      *logging.ChanneledLogger
	metrics     *metrics.Registry
}

func NewSettingsInvalidation(cache *manager.Manager, revalidator Revalidator, publisher messaging.Publisher,
	logger *logging.ChanneledLogger, registry *metrics.Registry) *SettingsInvalidation {
	return &SettingsInvalidation{
		cache:       cache,
		revalidator: revalidator,
		publisher:   publisher,
		logger:      logger,
		metrics:     registry,
	}
}

// TagsForSection maps a settings section to its frontend tags.
func TagsForSection(section string) []string {
	switch section {
	case content.SectionTemplates, content.SectionMenus:
		return []string{TagBeforeContent, TagAfterContent}
	default:
		return []string{TagSettings}
	}
}

func (s *SettingsInvalidation) OnSettingsSaved(ctx context.Context, section string) *SettingsReport {
	start := time.Now()
	report := &SettingsReport{Section: section}

	removed, err := s.cache.Flush(ctx)
	report.EvictedKeys = removed
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	tags := TagsForSection(section)
	targets := make([]revalidation.Target, 0, len(tags))
	for _, tag := range tags {
		target := revalidation.TagTarget(tag)
		targets = append(targets, target)
		report.Targets = append(report.Targets, target.String())
	}
	report.Revalidation = s.revalidator.RevalidateAll(ctx, targets)

	outcome := "ok"
	if len(report.Errors) > 0 || len(report.Revalidation.Failed) > 0 {
		outcome = "partial"
	}
	s.metrics.InvalidationPass(section, outcome, 0, removed)
	if s.publisher != nil {
		s.publisher.Publish(FeedEventSettings, report)
	}

	s.logger.Invalidation().Info("Settings invalidation completed",
		"section", section, "evicted", removed, "targets", report.Targets, "duration", time.Since(start))
	return report
}
