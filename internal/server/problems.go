package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rzhai/acmtrack/internal/gen"
	"github.com/rzhai/acmtrack/internal/models"
	"github.com/rzhai/acmtrack/internal/store"
)

type problemImportRequest struct {
	Problems []models.ProblemInput `json:"problems" binding:"required"`
}

func (s *Server) importProblems(c *gin.Context) {
	var req problemImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	imported, updated, records, err := s.store.UpsertProblems(req.Problems)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"updated":  updated,
		"records":  records,
	})
}

func (s *Server) listProblems(c *gin.Context) {
	filter := store.ProblemFilter{
		Month:   c.Query("month"),
		Source:  c.Query("source"),
		Status:  models.ProblemStatus(c.Query("status")),
		Keyword: c.Query("keyword"),
	}
	records, err := s.store.ListProblemsFiltered(filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"month":   filter.Month,
		"source":  filter.Source,
		"status":  filter.Status,
		"keyword": filter.Keyword,
		"total":   len(records),
		"items":   records,
	})
}

func (s *Server) getProblem(c *gin.Context) {
	record, err := s.store.GetProblem(c.Param("source"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

type problemInfoRequest struct {
	Title        *string               `json:"title"`
	Content      *string               `json:"content"`
	InputFormat  *string               `json:"input_format"`
	OutputFormat *string               `json:"output_format"`
	Constraints  *string               `json:"constraints"`
	Reflection   *string               `json:"reflection"`
	Tags         *[]string             `json:"tags"`
	Difficulty   *int                  `json:"difficulty"`
	Status       *models.ProblemStatus `json:"status"`
}

func (s *Server) updateProblemInfo(c *gin.Context) {
	var req problemInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	update := store.ProblemInfoUpdate{
		Title:        req.Title,
		Content:      req.Content,
		InputFormat:  req.InputFormat,
		OutputFormat: req.OutputFormat,
		Constraints:  req.Constraints,
		Reflection:   req.Reflection,
		Status:       req.Status,
	}
	if req.Tags != nil {
		update.Tags = *req.Tags
		update.TagsSet = true
	}
	if req.Difficulty != nil {
		update.Difficulty = req.Difficulty
		update.DifficultySet = true
	}
	record, err := s.store.UpdateInfo(c.Param("source"), c.Param("id"), update)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) patchProblemStatus(c *gin.Context) {
	var req struct {
		Status models.ProblemStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	record, err := s.store.PatchStatus(c.Param("source"), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) updateProblemACCode(c *gin.Context) {
	var req struct {
		Code       string `json:"code"`
		Language   string `json:"language"`
		MarkSolved bool   `json:"mark_solved"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	record, err := s.store.UpdateACCode(c.Param("source"), c.Param("id"), req.Code, req.Language, req.MarkSolved)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) updateProblemReflection(c *gin.Context) {
	var req struct {
		Reflection string `json:"reflection"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	record, err := s.store.UpdateReflection(c.Param("source"), c.Param("id"), req.Reflection)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) updateProblemDifficulty(c *gin.Context) {
	var req struct {
		Difficulty *int `json:"difficulty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	record, err := s.store.UpdateDifficulty(c.Param("source"), c.Param("id"), req.Difficulty)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) getProblemMarkdown(c *gin.Context) {
	source, id := c.Param("source"), c.Param("id")
	content, err := s.store.ProblemMarkdown(source, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": source, "id": id, "content": content})
}

func (s *Server) deleteProblem(c *gin.Context) {
	result, err := s.store.DeleteProblem(c.Param("source"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !result.Deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "problem not found"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// translateProblem runs the statement translation synchronously. Only
// Codeforces statements are translated; a finished translation is reused
// unless force is set.
func (s *Server) translateProblem(c *gin.Context) {
	source, id := c.Param("source"), c.Param("id")
	record, err := s.store.GetProblem(source, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !strings.EqualFold(record.Source, "codeforces") {
		badRequest(c, "only codeforces problems support translation")
		return
	}

	var req struct {
		Force bool `json:"force"`
	}
	_ = c.ShouldBindJSON(&req)

	if !req.Force && record.TranslationStatus == models.TranslationDone && strings.TrimSpace(record.TranslatedContent) != "" {
		c.JSON(http.StatusOK, record)
		return
	}

	running, err := s.store.SetTranslationRunning(source, id)
	if err != nil {
		writeError(c, err)
		return
	}
	profile, err := s.store.ActiveProfile()
	if err != nil {
		writeError(c, err)
		return
	}

	raw, err := s.generator.Generate(c.Request.Context(), profile, gen.BuildTranslationPrompt(running), nil)
	if err == nil {
		var payload *models.TranslationPayload
		payload, err = gen.ParseTranslationResponse(raw)
		if err == nil {
			updated, setErr := s.store.SetTranslation(source, id, *payload)
			if setErr != nil {
				writeError(c, setErr)
				return
			}
			c.JSON(http.StatusOK, updated)
			return
		}
	}

	if _, failErr := s.store.SetTranslationFailed(source, id, err.Error()); failErr != nil {
		s.logger.Warn("translation failure update failed", "problem", models.ProblemKey(source, id), "error", failErr)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("translation failed: %v", err)})
}

// autoTagProblem enqueues an auto-tag task and returns its id.
func (s *Server) autoTagProblem(c *gin.Context) {
	key := models.ProblemKey(c.Param("source"), c.Param("id"))
	if _, err := s.store.GetProblemByKey(key); err != nil {
		writeError(c, err)
		return
	}
	taskID, err := s.runner.EnqueueTag(key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": taskID})
}

func (s *Server) uploadSolutionImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "missing file upload")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "read upload: "+err.Error())
		return
	}
	meta, err := s.store.SaveSolutionImage(c.Param("source"), c.Param("id"), header.Filename, content, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) getSolutionImage(c *gin.Context) {
	record, err := s.store.GetProblem(c.Param("source"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	imageID := c.Param("imageId")
	for _, meta := range record.SolutionImages {
		if meta.ID == imageID {
			path, err := s.store.SolutionImagePath(meta.RelativePath)
			if err != nil {
				writeError(c, err)
				return
			}
			c.File(path)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
}

func (s *Server) deleteSolutionImage(c *gin.Context) {
	if err := s.store.DeleteSolutionImage(c.Param("source"), c.Param("id"), c.Param("imageId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
