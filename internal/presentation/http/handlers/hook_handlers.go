package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pomeg-dev/nextpress-go/internal/application/services"
	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
)

// ContentHookRequest is the body of POST /hooks/content.
type ContentHookRequest struct {
	ContentID    int64   `json:"content_id" binding:"required,gt=0"`
	ChangeKind   string  `json:"change_kind" binding:"required"`
	PreviousPath *string `json:"previous_path"`
	Autosave     bool    `json:"autosave"`
}

// BeforeHookRequest is the body of POST /hooks/content/before.
type BeforeHookRequest struct {
	ContentID int64 `json:"content_id" binding:"required,gt=0"`
}

// SettingsHookRequest is the body of POST /hooks/settings.
type SettingsHookRequest struct {
	Section string `json:"section" binding:"required,oneof=settings templates menus"`
}

// HookHandlers receive mutation notifications from the CMS.
type HookHandlers struct {
	invalidation *services.InvalidationService
	settings     *services.SettingsInvalidation
	logger       *logging.ChanneledLogger
}

func NewHookHandlers(invalidation *services.InvalidationService, settings *services.SettingsInvalidation, logger *logging.ChanneledLogger) *HookHandlers {
	return &HookHandlers{
		invalidation: invalidation,
		settings:     settings,
		logger:       logger,
	}
}

// PostContentHook runs one invalidation pass and returns its report. The
// pass itself never fails; only malformed bodies are rejected.
func (h *HookHandlers) PostContentHook(c *gin.Context) {
	var req ContentHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := content.ParseChangeKind(req.ChangeKind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := h.invalidation.OnContentMutated(c.Request.Context(), content.InvalidationEvent{
		ContentID:    req.ContentID,
		Kind:         kind,
		PreviousPath: req.PreviousPath,
		Autosave:     req.Autosave,
	})
	c.JSON(http.StatusOK, report)
}

// PostBeforeHook records the paths an entity occupies ahead of a write.
func (h *HookHandlers) PostBeforeHook(c *gin.Context) {
	var req BeforeHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.invalidation.OnBeforeMutation(c.Request.Context(), req.ContentID)
	c.JSON(http.StatusAccepted, gin.H{"content_id": req.ContentID, "status": "snapshot recorded"})
}

func (h *HookHandlers) PostSettingsHook(c *gin.Context) {
	var req SettingsHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.settings.OnSettingsSaved(c.Request.Context(), req.Section))
}
