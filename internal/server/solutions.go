package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzhai/acmtrack/internal/models"
)

type createTasksRequest struct {
	ProblemKeys []string `json:"problem_keys"`
}

// createSolutionTasks enqueues solution generations. With no explicit keys,
// every pending problem of the current month is queued.
func (s *Server) createSolutionTasks(c *gin.Context) {
	var req createTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, err.Error())
		return
	}

	keys := req.ProblemKeys
	if len(keys) == 0 {
		pending, err := s.store.ListPendingProblems(time.Now().UTC().Format("2006-01"))
		if err != nil {
			writeError(c, err)
			return
		}
		for _, record := range pending {
			keys = append(keys, record.Key())
		}
	}
	if len(keys) == 0 {
		badRequest(c, "no problem keys provided and no pending problems found")
		return
	}

	var taskIDs []string
	for _, key := range keys {
		if _, err := s.store.GetProblemByKey(key); err != nil {
			continue
		}
		taskID, err := s.runner.EnqueueSolution(key)
		if err != nil {
			writeError(c, err)
			return
		}
		taskIDs = append(taskIDs, taskID)
	}
	if len(taskIDs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no valid problems found for task creation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_ids": taskIDs})
}

func (s *Server) listTasks(c *gin.Context) {
	tasks, err := s.store.ListTasks()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(tasks), "items": tasks})
}

func (s *Server) getTask(c *gin.Context) {
	record, err := s.store.GetTask(c.Param("taskId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) listPendingProblems(c *gin.Context) {
	month := c.Query("month")
	records, err := s.store.ListPendingProblems(month)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"month": month, "total": len(records), "items": records})
}

func (s *Server) readSolution(c *gin.Context) {
	source, id := c.Param("source"), c.Param("id")
	content, err := s.store.ReadSolutionFile(source, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":     models.ProblemKey(source, id),
		"content": content,
	})
}
