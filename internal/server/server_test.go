package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzhai/acmtrack/internal/metrics"
	"github.com/rzhai/acmtrack/internal/models"
	"github.com/rzhai/acmtrack/internal/server"
	"github.com/rzhai/acmtrack/internal/store"
	"github.com/rzhai/acmtrack/internal/task"
)

type stubGenerator struct {
	response string
	err      error
}

func (g *stubGenerator) Generate(ctx context.Context, profile models.AIProfile, prompt string, imagesBase64 []string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// newTestServer wires a server over a temp store. The runner is deliberately
// not started, so enqueued tasks stay queued and handler behavior is
// deterministic.
func newTestServer(t *testing.T, generator *stubGenerator) (*server.Server, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), testLogger())
	require.NoError(t, err)
	collector := metrics.NewCollector()
	runner := task.New(st, generator, testLogger(), collector, 1)
	return server.New(st, runner, generator, collector, testLogger()), st
}

func doJSON(t *testing.T, srv *server.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func importWatermelon(t *testing.T, srv *server.Server) {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/problems/import", map[string]any{
		"problems": []map[string]any{{
			"source":  "codeforces",
			"id":      "4A",
			"title":   "Watermelon",
			"content": "Divide a watermelon into two even parts.",
			"status":  "unsolved",
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestImportAndGetProblem(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	importWatermelon(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/problems/codeforces/4A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Watermelon", body["title"])
	assert.Equal(t, true, body["needs_solution"])

	rec = doJSON(t, srv, http.MethodGet, "/api/problems/codeforces/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportRejectsMissingFields(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	rec := doJSON(t, srv, http.MethodPost, "/api/problems/import", map[string]any{
		"problems": []map[string]any{{"source": "codeforces"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProblemsFilters(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	importWatermelon(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/problems?source=codeforces&keyword=watermelon", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["total"])

	rec = doJSON(t, srv, http.MethodGet, "/api/problems?source=atcoder", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["total"])
}

func TestPatchProblemStatus(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	importWatermelon(t, srv)

	rec := doJSON(t, srv, http.MethodPatch, "/api/problems/codeforces/4A/status", map[string]any{"status": "solved"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "solved", body["status"])
	assert.NotNil(t, body["solved_at"])
	assert.Equal(t, false, body["needs_solution"])
}

func TestUpdateACCodeMarksSolved(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	importWatermelon(t, srv)

	rec := doJSON(t, srv, http.MethodPut, "/api/problems/codeforces/4A/ac-code", map[string]any{
		"code":        "int main(){}",
		"language":    "C++",
		"mark_solved": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "solved", body["status"])
	assert.Equal(t, "cpp", body["my_ac_language"])
}

func TestDeleteProblem(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	importWatermelon(t, srv)

	rec := doJSON(t, srv, http.MethodDelete, "/api/problems/codeforces/4A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["deleted"])

	rec = doJSON(t, srv, http.MethodDelete, "/api/problems/codeforces/4A", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProblemMarkdown(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	importWatermelon(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/problems/codeforces/4A/markdown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	content, _ := decodeBody(t, rec)["content"].(string)
	assert.Contains(t, content, "# Problem")
	assert.Contains(t, content, "Watermelon")
}

func TestCreateSolutionTasks(t *testing.T) {
	srv, st := newTestServer(t, &stubGenerator{})
	importWatermelon(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/solutions/tasks", map[string]any{
		"problem_keys": []string{"codeforces:4A", "codeforces:ghost"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	ids, _ := decodeBody(t, rec)["task_ids"].([]any)
	require.Len(t, ids, 1, "unknown keys are skipped")

	record, err := st.GetTask(ids[0].(string))
	require.NoError(t, err)
	assert.Equal(t, models.TaskQueued, record.Status)
	assert.Equal(t, "codeforces:4A", record.SubjectKey)

	problem, err := st.GetProblem("codeforces", "4A")
	require.NoError(t, err)
	assert.Equal(t, models.SolutionQueued, problem.SolutionStatus)
}

func TestCreateSolutionTasksNoValidProblems(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	rec := doJSON(t, srv, http.MethodPost, "/api/solutions/tasks", map[string]any{
		"problem_keys": []string{"codeforces:ghost"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTaskNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	rec := doJSON(t, srv, http.MethodGet, "/api/solutions/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAutoTagProblem(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	importWatermelon(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/problems/codeforces/4A/auto-tag", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["task_id"])

	rec = doJSON(t, srv, http.MethodPost, "/api/problems/codeforces/ghost/auto-tag", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTranslateRejectsNonCodeforces(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	rec := doJSON(t, srv, http.MethodPost, "/api/problems/import", map[string]any{
		"problems": []map[string]any{{
			"source": "atcoder", "id": "abc300_a", "title": "N-choice", "status": "unsolved",
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/problems/atcoder/abc300_a/translate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranslateSuccess(t *testing.T) {
	generator := &stubGenerator{response: `{"title_zh":"西瓜","content_zh":"分西瓜","input_format_zh":"","output_format_zh":"","constraints_zh":""}`}
	srv, st := newTestServer(t, generator)
	importWatermelon(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/problems/codeforces/4A/translate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "西瓜", body["translated_title"])
	assert.Equal(t, "done", body["translation_status"])

	record, err := st.GetProblem("codeforces", "4A")
	require.NoError(t, err)
	assert.Equal(t, models.TranslationDone, record.TranslationStatus)
}

func TestTranslateFailureRecorded(t *testing.T) {
	srv, st := newTestServer(t, &stubGenerator{err: errors.New("provider down")})
	importWatermelon(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/problems/codeforces/4A/translate", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	record, err := st.GetProblem("codeforces", "4A")
	require.NoError(t, err)
	assert.Equal(t, models.TranslationFailed, record.TranslationStatus)
	assert.Contains(t, record.TranslationError, "provider down")
}

func TestWeeklyReportBadTarget(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	rec := doJSON(t, srv, http.MethodPost, "/api/reports/weekly/2025-32/generate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeeklyReportLifecycleStatus(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})

	rec := doJSON(t, srv, http.MethodGet, "/api/reports/weekly/2025-W32/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "none", decodeBody(t, rec)["status"])

	rec = doJSON(t, srv, http.MethodPost, "/api/reports/weekly/2025-W32/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["task_id"])

	// The runner is not started, so the target stays in generating.
	rec = doJSON(t, srv, http.MethodGet, "/api/reports/weekly/2025-W32/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "generating", decodeBody(t, rec)["status"])

	rec = doJSON(t, srv, http.MethodGet, "/api/reports/weekly/2025-W32", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no artifact yet")
}

func TestStatsSeries(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	importWatermelon(t, srv)
	rec := doJSON(t, srv, http.MethodPatch, "/api/problems/codeforces/4A/status", map[string]any{"status": "solved"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/stats/series", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "day", body["period"])
	points, _ := body["points"].([]any)
	assert.Len(t, points, 1)

	rec = doJSON(t, srv, http.MethodGet, "/api/stats/series?period=decade", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuntimeStats(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	rec := doJSON(t, srv, http.MethodGet, "/api/stats/runtime", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "uptime_seconds")
}

func TestSettingsProfileFlow(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})

	rec := doJSON(t, srv, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/settings/ai/profiles", map[string]any{
		"name":       "Anthropic",
		"provider":   "claude",
		"api_base":   "https://api.anthropic.com",
		"api_key":    "sk-ant",
		"model":      "claude-sonnet",
		"set_active": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var bundle models.SettingsBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	require.Len(t, bundle.AI.Profiles, 2)
	added := bundle.AI.Profiles[1]
	assert.Equal(t, models.ProviderAnthropic, added.Provider)
	assert.Equal(t, added.ID, bundle.AI.ActiveProfileID)

	rec = doJSON(t, srv, http.MethodDelete, "/api/settings/ai/profiles/"+added.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	require.Len(t, bundle.AI.Profiles, 1)

	// The last remaining profile cannot be deleted.
	rec = doJSON(t, srv, http.MethodDelete, "/api/settings/ai/profiles/"+bundle.AI.Profiles[0].ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/settings/ai/profiles/ghost/activate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePromptSettingsRejectsEmptyTemplate(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})

	rec := doJSON(t, srv, http.MethodPut, "/api/settings/prompts", map[string]any{
		"solution_template": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/settings/prompts", map[string]any{
		"weekly_prompt_style": "rigorous",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var bundle models.SettingsBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, models.StyleRigorous, bundle.Prompts.WeeklyPromptStyle)
	assert.NotEmpty(t, bundle.Prompts.SolutionTemplate, "untouched fields keep their values")
}

func TestTestAIConnection(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{response: "OK"})
	rec := doJSON(t, srv, http.MethodPost, "/api/settings/ai/test", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "OK", body["preview"])

	srv, _ = newTestServer(t, &stubGenerator{err: errors.New("bad key")})
	rec = doJSON(t, srv, http.MethodPost, "/api/settings/ai/test", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["ok"])
}

func TestMigrateStorageRefusedWhileTasksActive(t *testing.T) {
	srv, st := newTestServer(t, &stubGenerator{})
	_, err := st.CreateTask(models.TaskGenerateSolution, "codeforces:4A", "")
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPost, "/api/settings/storage/migrate", map[string]any{
		"target_dir": t.TempDir(),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMigrateStorageRejectsNestedTarget(t *testing.T) {
	srv, st := newTestServer(t, &stubGenerator{})
	rec := doJSON(t, srv, http.MethodPost, "/api/settings/storage/migrate", map[string]any{
		"target_dir": st.BaseDir() + "/inner",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflights(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	req := httptest.NewRequest(http.MethodOptions, "/api/problems", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
