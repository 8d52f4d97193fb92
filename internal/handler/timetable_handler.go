package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scolaris/emploi-api/internal/dto"
	"github.com/scolaris/emploi-api/internal/models"
	appErrors "github.com/scolaris/emploi-api/pkg/errors"
	"github.com/scolaris/emploi-api/pkg/response"
)

type templateLifecycle interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest, generatedBy string) (*models.TimetableTemplate, []models.TimetableSlot, error)
	List(ctx context.Context, classID string) ([]models.TimetableTemplate, error)
	GetSlots(ctx context.Context, templateID string) ([]dto.SlotView, error)
	Publish(ctx context.Context, templateID string) (*models.TimetableTemplate, error)
	Delete(ctx context.Context, templateID string) error
	UpdateSlot(ctx context.Context, slotID string, req dto.UpdateSlotRequest) (*models.TimetableSlot, error)
	LockSlot(ctx context.Context, slotID string) error
	UnlockSlot(ctx context.Context, slotID string) error
}

type batchRunner interface {
	GenerateAll(ctx context.Context, req dto.GenerateAllRequest, generatedBy string) (*dto.BatchReport, error)
}

// TimetableHandler exposes template generation and lifecycle endpoints.
type TimetableHandler struct {
	templates templateLifecycle
	batch     batchRunner
}

// NewTimetableHandler creates a new handler.
func NewTimetableHandler(templates templateLifecycle, batch batchRunner) *TimetableHandler {
	return &TimetableHandler{templates: templates, batch: batch}
}

// Generate godoc
// @Summary Generate a timetable draft for one class
// @Description Run the slot allocator and persist a new draft template version
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}

	template, slots, err := h.templates.Generate(c.Request.Context(), req, generatedByFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"template": template, "slots": slots})
}

// GenerateAll godoc
// @Summary Generate timetables for every active class
// @Description Per-class outcomes; one failing class never aborts the others
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateAllRequest true "Batch generation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/generate-all [post]
func (h *TimetableHandler) GenerateAll(c *gin.Context) {
	var req dto.GenerateAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}

	report, err := h.batch.GenerateAll(c.Request.Context(), req, generatedByFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}

// List godoc
// @Summary List template versions for a class
// @Tags Timetables
// @Produce json
// @Param classId query string true "Class id"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context(), c.Query("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// GetSlots godoc
// @Summary List the slots of a template
// @Tags Timetables
// @Produce json
// @Param id path string true "Template id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/slots [get]
func (h *TimetableHandler) GetSlots(c *gin.Context) {
	slots, err := h.templates.GetSlots(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Publish godoc
// @Summary Publish a draft template
// @Description Irreversible; a second publish fails with ALREADY_PUBLISHED
// @Tags Timetables
// @Produce json
// @Param id path string true "Template id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	template, err := h.templates.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// Delete godoc
// @Summary Delete a draft template
// @Tags Timetables
// @Produce json
// @Param id path string true "Template id"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.templates.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateSlot godoc
// @Summary Edit a slot
// @Description Re-validates every overlap invariant; a violation fails with CONFLICT
// @Tags Slots
// @Accept json
// @Produce json
// @Param id path string true "Slot id"
// @Param payload body dto.UpdateSlotRequest true "Slot changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /slots/{id} [patch]
func (h *TimetableHandler) UpdateSlot(c *gin.Context) {
	var req dto.UpdateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}

	slot, err := h.templates.UpdateSlot(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// LockSlot godoc
// @Summary Lock a slot against regeneration
// @Tags Slots
// @Produce json
// @Param id path string true "Slot id"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /slots/{id}/lock [post]
func (h *TimetableHandler) LockSlot(c *gin.Context) {
	if err := h.templates.LockSlot(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnlockSlot godoc
// @Summary Release a locked slot
// @Tags Slots
// @Produce json
// @Param id path string true "Slot id"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /slots/{id}/unlock [post]
func (h *TimetableHandler) UnlockSlot(c *gin.Context) {
	if err := h.templates.UnlockSlot(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
