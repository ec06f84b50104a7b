package handler

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/dreamtools/dream-background-remover/internal/model"
	"github.com/dreamtools/dream-background-remover/internal/settings"
	"github.com/dreamtools/dream-background-remover/pkg/response"
)

type SettingsHandler struct {
	store *settings.Store
}

func NewSettingsHandler(store *settings.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// Get handles GET /api/settings. The raw key never leaves the daemon;
// the dialog gets a recognizable hint instead.
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	st := h.store.Load()
	return response.OK(c, model.SettingsResponse{
		APIKeySet:    st.APIKey != "",
		APIKeyHint:   keyHint(st.APIKey),
		Mode:         st.JobMode(),
		Model:        st.Model,
		ModelDisplay: settings.ModelDisplayName(st.Model),
	})
}

// Update handles PUT /api/settings. Fields are merged into the current
// settings; a failed write keeps the new values for this session.
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	var req model.SettingsUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	st := h.store.Load()
	if req.APIKey != nil {
		st.APIKey = *req.APIKey
	}
	if req.Mode != nil {
		switch *req.Mode {
		case model.ModeCreateLayer:
			st.Mode = "layer"
		case model.ModeCreateFile:
			st.Mode = "file"
		default:
			return response.ValidationError(c, "Mode must be create_layer or create_file", nil)
		}
	}
	if req.Model != nil {
		if !settings.KnownModel(*req.Model) {
			return response.ValidationError(c, "Unknown model "+*req.Model, nil)
		}
		st.Model = *req.Model
	}

	persisted := true
	if err := h.store.Save(st); err != nil {
		// Session continues with in-memory settings
		log.Printf("[Settings] Persist failed: %v", err)
		persisted = false
	}

	return response.OK(c, model.SettingsUpdateResponse{Persisted: persisted})
}

func keyHint(key string) string {
	if len(key) < 8 {
		return ""
	}
	return key[:4] + "..."
}
