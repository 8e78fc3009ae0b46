package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rzhai/acmtrack/internal/config"
	"github.com/rzhai/acmtrack/internal/models"
)

func (s *Server) getSettings(c *gin.Context) {
	bundle, err := s.store.Settings()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

type aiProfileRequest struct {
	Name           string   `json:"name" binding:"required"`
	Provider       string   `json:"provider"`
	APIBase        string   `json:"api_base"`
	APIKey         string   `json:"api_key"`
	Model          string   `json:"model"`
	ModelOptions   []string `json:"model_options"`
	Temperature    float64  `json:"temperature"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	SetActive      bool     `json:"set_active"`
}

func (r *aiProfileRequest) toProfile() models.AIProfile {
	return models.AIProfile{
		Name:           r.Name,
		Provider:       models.NormalizeProvider(r.Provider, models.ProviderOpenAICompatible),
		APIBase:        strings.TrimSpace(r.APIBase),
		APIKey:         strings.TrimSpace(r.APIKey),
		Model:          r.Model,
		ModelOptions:   r.ModelOptions,
		Temperature:    r.Temperature,
		TimeoutSeconds: r.TimeoutSeconds,
	}
}

func (s *Server) addAIProfile(c *gin.Context) {
	var req aiProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	bundle, err := s.store.AddAIProfile(req.toProfile(), req.SetActive)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) updateAIProfile(c *gin.Context) {
	var req aiProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	bundle, err := s.store.UpdateAIProfile(c.Param("profileId"), req.toProfile())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) deleteAIProfile(c *gin.Context) {
	bundle, err := s.store.DeleteAIProfile(c.Param("profileId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) activateAIProfile(c *gin.Context) {
	bundle, err := s.store.ActivateAIProfile(c.Param("profileId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) removeModelOption(c *gin.Context) {
	bundle, err := s.store.RemoveModelOption(c.Param("model"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

// testAIConnection fires a tiny prompt at the active profile and reports the
// trimmed reply, so users can validate credentials without queueing a task.
func (s *Server) testAIConnection(c *gin.Context) {
	profile, err := s.store.ActiveProfile()
	if err != nil {
		writeError(c, err)
		return
	}
	preview, err := s.generator.Generate(c.Request.Context(), profile, "Reply with the single word: OK", nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if len(preview) > 200 {
		preview = preview[:200]
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "preview": preview})
}

func (s *Server) updatePromptSettings(c *gin.Context) {
	var req struct {
		SolutionTemplate        *string `json:"solution_template"`
		InsightTemplate         *string `json:"insight_template"`
		WeeklyPromptStyle       *string `json:"weekly_prompt_style"`
		StyleCustomInjection    *string `json:"weekly_style_custom_injection"`
		StyleRigorousInjection  *string `json:"weekly_style_rigorous_injection"`
		StyleIntuitiveInjection *string `json:"weekly_style_intuitive_injection"`
		StyleConciseInjection   *string `json:"weekly_style_concise_injection"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	current, err := s.store.Settings()
	if err != nil {
		writeError(c, err)
		return
	}

	prompts := current.Prompts
	if req.SolutionTemplate != nil {
		if strings.TrimSpace(*req.SolutionTemplate) == "" {
			badRequest(c, "solution_template cannot be empty")
			return
		}
		prompts.SolutionTemplate = *req.SolutionTemplate
	}
	if req.InsightTemplate != nil {
		if strings.TrimSpace(*req.InsightTemplate) == "" {
			badRequest(c, "insight_template cannot be empty")
			return
		}
		prompts.InsightTemplate = *req.InsightTemplate
	}
	if req.WeeklyPromptStyle != nil {
		prompts.WeeklyPromptStyle = models.WeeklyPromptStyle(*req.WeeklyPromptStyle)
	}
	if req.StyleCustomInjection != nil {
		prompts.StyleCustomInjection = *req.StyleCustomInjection
	}
	if req.StyleRigorousInjection != nil {
		prompts.StyleRigorousInjection = *req.StyleRigorousInjection
	}
	if req.StyleIntuitiveInjection != nil {
		prompts.StyleIntuitiveInjection = *req.StyleIntuitiveInjection
	}
	if req.StyleConciseInjection != nil {
		prompts.StyleConciseInjection = *req.StyleConciseInjection
	}

	bundle, err := s.store.UpdatePromptSettings(prompts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) updateUISettings(c *gin.Context) {
	var req models.UISettings
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	bundle, err := s.store.UpdateUISettings(req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

// migrateStorage relocates the storage root. Refused while tasks are active.
// The new location is persisted to the sidecar config so restarts pick it up.
func (s *Server) migrateStorage(c *gin.Context) {
	var req struct {
		TargetDir string `json:"target_dir" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.store.SwitchBase(req.TargetDir)
	if err != nil {
		writeError(c, err)
		return
	}
	if result.Changed {
		if err := config.SaveSidecar(config.Sidecar{StorageDir: result.Target}); err != nil {
			s.logger.Warn("sidecar config update failed", "error", err)
		}
	}
	c.JSON(http.StatusOK, result)
}
