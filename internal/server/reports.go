package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzhai/acmtrack/internal/gen"
	"github.com/rzhai/acmtrack/internal/models"
)

// generateWeeklyReport validates the week target and enqueues a report task.
// Generation is asynchronous; callers poll the status endpoint.
func (s *Server) generateWeeklyReport(c *gin.Context) {
	week := c.Param("week")
	if _, _, err := gen.ParseWeekTarget(week); err != nil {
		badRequest(c, err.Error())
		return
	}
	taskID, err := s.runner.EnqueueReport(models.InsightWeekly, week)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "weekly", "target": week, "task_id": taskID})
}

func (s *Server) weeklyReportStatus(c *gin.Context) {
	status, err := s.store.GetReportStatus(models.InsightWeekly, c.Param("week"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) getWeeklyReport(c *gin.Context) {
	week := c.Param("week")
	content, err := s.store.ReadInsight(models.InsightWeekly, week)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "weekly", "target": week, "content": content})
}

// statsSeries buckets solve activity for charting. Defaults mirror the
// dashboard: 30 days for daily, 12 weeks for weekly, a year for monthly.
func (s *Server) statsSeries(c *gin.Context) {
	period := models.StatsPeriod(c.DefaultQuery("period", string(models.PeriodDay)))
	switch period {
	case models.PeriodDay, models.PeriodWeek, models.PeriodMonth:
	default:
		badRequest(c, "period must be one of day, week, month")
		return
	}

	today := time.Now().UTC().Format("2006-01-02")
	toDate := c.DefaultQuery("to_date", today)
	fromDate := c.Query("from_date")
	if fromDate == "" {
		end, err := time.ParseInLocation("2006-01-02", toDate, time.UTC)
		if err != nil {
			badRequest(c, "invalid to_date, expected YYYY-MM-DD")
			return
		}
		switch period {
		case models.PeriodDay:
			fromDate = end.AddDate(0, 0, -29).Format("2006-01-02")
		case models.PeriodWeek:
			fromDate = end.AddDate(0, 0, -84).Format("2006-01-02")
		default:
			fromDate = end.AddDate(0, 0, -365).Format("2006-01-02")
		}
	}

	problems, err := s.store.ListProblems("")
	if err != nil {
		writeError(c, err)
		return
	}
	series, err := gen.BuildStatsSeries(problems, period, fromDate, toDate)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, series)
}
