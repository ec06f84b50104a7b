package handler

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dreamtools/dream-background-remover/internal/controller"
	"github.com/dreamtools/dream-background-remover/internal/history"
	"github.com/dreamtools/dream-background-remover/internal/i18n"
	"github.com/dreamtools/dream-background-remover/internal/model"
	"github.com/dreamtools/dream-background-remover/internal/settings"
	"github.com/dreamtools/dream-background-remover/pkg/response"
)

type JobsHandler struct {
	controller *controller.Controller
	settings   *settings.Store
	history    *history.Store
	validator  *validator.Validate
	lang       i18n.Language
	// envToken is the REPLICATE_API_TOKEN fallback, used only when
	// neither the request nor the settings file carries a key.
	envToken string
}

func NewJobsHandler(ctrl *controller.Controller, st *settings.Store, hist *history.Store, v *validator.Validate, lang i18n.Language, envToken string) *JobsHandler {
	return &JobsHandler{
		controller: ctrl,
		settings:   st,
		history:    hist,
		validator:  v,
		lang:       lang,
		envToken:   envToken,
	}
}

// Start handles POST /api/jobs
func (h *JobsHandler) Start(c *fiber.Ctx) error {
	var req model.JobStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return response.ValidationError(c, "Image must be base64-encoded", nil)
	}

	stored := h.settings.Load()
	credential := firstNonEmpty(req.APIKey, stored.APIKey, h.envToken)

	modelKey := req.Model
	if modelKey == "" {
		modelKey = stored.Model
	}
	if modelKey != "" && !settings.KnownModel(modelKey) {
		return response.ValidationError(c, "Unknown model "+modelKey, nil)
	}

	job, err := h.controller.Start(req.Target, image, req.Mode, settings.ModelVersion(modelKey), credential)
	if err != nil {
		if errors.Is(err, controller.ErrTargetBusy) {
			return response.Conflict(c, "A job is already running for this target")
		}
		var je *model.JobError
		if errors.As(err, &je) {
			return response.JobError(c, je, i18n.Localize(h.lang, je.MessageKey, je.Params))
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.JobStartResponse{
		JobID:     job.ID,
		State:     job.State,
		CreatedAt: job.CreatedAt,
	})
}

// Status handles GET /api/jobs/:jobId. Active jobs come from the
// controller; terminal ones from history.
func (h *JobsHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.controller.Status(jobID)
	if err == nil {
		resp := model.JobStatusResponse{
			JobID:     job.ID,
			Target:    job.Target,
			Mode:      job.Mode,
			State:     job.State,
			Error:     job.Error,
			CreatedAt: job.CreatedAt,
		}
		if job.Error != nil {
			resp.Message = i18n.Localize(h.lang, job.Error.MessageKey, job.Error.Params)
		}
		return response.OK(c, resp)
	}

	entry, herr := h.history.Get(jobID)
	if herr != nil {
		return response.ServiceError(c, herr.Error())
	}
	if entry == nil {
		return response.NotFound(c, "Job not found")
	}

	resp := model.JobStatusResponse{
		JobID:       entry.JobID,
		Target:      entry.Target,
		Mode:        entry.Mode,
		State:       entry.State,
		Message:     entry.Message,
		CreatedAt:   entry.CreatedAt,
		CompletedAt: &entry.FinishedAt,
	}
	if entry.ErrorKind != "" {
		resp.Error = &model.JobError{Kind: model.ErrorKind(entry.ErrorKind)}
	}
	return response.OK(c, resp)
}

// Cancel handles POST /api/jobs/:jobId/cancel
func (h *JobsHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.controller.Cancel(jobID)
	if err != nil {
		if errors.Is(err, controller.ErrJobNotFound) {
			if entry, herr := h.history.Get(jobID); herr == nil && entry != nil {
				return response.Conflict(c, "Job already finished")
			}
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.JobCancelResponse{
		JobID: job.ID,
		State: job.State,
	})
}

// History handles GET /api/jobs/history
func (h *JobsHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	entries, err := h.history.Recent(limit)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	return response.OK(c, entries)
}

func formatValidationErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field()+" failed on "+fe.Tag())
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
