// Package task runs generation jobs on a fixed worker pool. Enqueue calls
// persist a queued task record and return immediately; workers drain a
// bounded channel so at most maxWorkers provider calls run at once.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rzhai/acmtrack/internal/gen"
	"github.com/rzhai/acmtrack/internal/metrics"
	"github.com/rzhai/acmtrack/internal/models"
	"github.com/rzhai/acmtrack/internal/store"
)

const (
	defaultWorkers = 2
	queueCapacity  = 256
)

// Generator is the provider-call surface the runner depends on. Satisfied by
// *ai.Client; tests substitute a stub.
type Generator interface {
	Generate(ctx context.Context, profile models.AIProfile, prompt string, imagesBase64 []string) (string, error)
}

// Runner owns the worker pool and the per-kind task execution logic.
type Runner struct {
	store     *store.Store
	generator Generator
	logger    *slog.Logger
	collector *metrics.Collector

	jobs    chan string
	wg      sync.WaitGroup
	started sync.Once
	stopped sync.Once
	workers int
}

// New builds a runner with the given worker count. Values below one fall back
// to the default of two concurrent generations.
func New(st *store.Store, generator Generator, logger *slog.Logger, collector *metrics.Collector, workers int) *Runner {
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Runner{
		store:     st,
		generator: generator,
		logger:    logger,
		collector: collector,
		jobs:      make(chan string, queueCapacity),
		workers:   workers,
	}
}

// Workers returns the configured pool size.
func (r *Runner) Workers() int {
	return r.workers
}

// Start launches the worker pool. Workers exit when the queue is closed and
// drained, or when ctx is cancelled mid-wait.
func (r *Runner) Start(ctx context.Context) {
	r.started.Do(func() {
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.workerLoop(ctx, i)
		}
		r.logger.Info("task workers started", "workers", r.workers)
	})
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (r *Runner) Stop() {
	r.stopped.Do(func() {
		close(r.jobs)
	})
	r.wg.Wait()
}

func (r *Runner) workerLoop(ctx context.Context, id int) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case taskID, ok := <-r.jobs:
			if !ok {
				return
			}
			r.runTask(ctx, taskID)
		}
	}
}

func (r *Runner) enqueue(kind models.TaskKind, subjectKey string) (*models.TaskRecord, error) {
	profile, err := r.store.ActiveProfile()
	if err != nil {
		return nil, err
	}
	record, err := r.store.CreateTask(kind, subjectKey, profile.Name)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// push hands a task to the pool. Blocks only when queueCapacity generations
// are already pending.
func (r *Runner) push(taskID string) {
	r.jobs <- taskID
}

// abandon marks a created task failed when its enqueue could not complete.
// Without it the record would sit queued forever with no worker coming for
// it, blocking storage migration.
func (r *Runner) abandon(taskID string, cause error) {
	failed := models.TaskFailed
	message := cause.Error()
	if _, err := r.store.UpdateTask(taskID, store.TaskUpdate{Status: &failed, ErrorMessage: &message, Finished: true}); err != nil {
		r.logger.Warn("task abandon update failed", "task_id", taskID, "error", err)
	}
}

// EnqueueSolution queues a solution generation for a problem key and returns
// the task id.
func (r *Runner) EnqueueSolution(problemKey string) (string, error) {
	record, err := r.enqueue(models.TaskGenerateSolution, problemKey)
	if err != nil {
		return "", err
	}
	if _, err := r.store.SetSolutionState(problemKey, models.SolutionQueued, nil); err != nil {
		r.abandon(record.TaskID, err)
		return "", err
	}
	r.push(record.TaskID)
	r.logger.Info("solution task queued", "task_id", record.TaskID, "problem", problemKey)
	return record.TaskID, nil
}

// EnqueueTag queues an auto-tag generation for a problem key.
func (r *Runner) EnqueueTag(problemKey string) (string, error) {
	record, err := r.enqueue(models.TaskGenerateTag, problemKey)
	if err != nil {
		return "", err
	}
	r.push(record.TaskID)
	r.logger.Info("tag task queued", "task_id", record.TaskID, "problem", problemKey)
	return record.TaskID, nil
}

// EnqueueReport queues an insight report generation for a target period.
// The reports document flips to generating immediately so status polls see
// the pending work before a worker picks it up.
func (r *Runner) EnqueueReport(insightType models.InsightType, target string) (string, error) {
	kind := models.TaskGenerateWeeklyReport
	if insightType == models.InsightPhased {
		kind = models.TaskGeneratePhasedReport
	}
	record, err := r.enqueue(kind, models.ReportKey(insightType, target))
	if err != nil {
		return "", err
	}
	if _, err := r.store.UpdateReportStatus(insightType, target, models.ReportGenerating, "", ""); err != nil {
		r.abandon(record.TaskID, err)
		return "", err
	}
	r.push(record.TaskID)
	r.logger.Info("report task queued", "task_id", record.TaskID, "type", string(insightType), "target", target)
	return record.TaskID, nil
}

func (r *Runner) runTask(ctx context.Context, taskID string) {
	record, err := r.store.GetTask(taskID)
	if err != nil {
		r.logger.Warn("queued task vanished", "task_id", taskID, "error", err)
		return
	}

	running := models.TaskRunning
	if _, err := r.store.UpdateTask(taskID, store.TaskUpdate{Status: &running, Started: true}); err != nil {
		r.logger.Warn("task start update failed", "task_id", taskID, "error", err)
		return
	}

	started := time.Now()
	var outputPath string
	switch record.Kind {
	case models.TaskGenerateSolution:
		outputPath, err = r.runSolution(ctx, record)
	case models.TaskGenerateTag:
		outputPath, err = r.runTag(ctx, record)
	case models.TaskGenerateWeeklyReport:
		outputPath, err = r.runReport(ctx, record, models.InsightWeekly)
	case models.TaskGeneratePhasedReport:
		outputPath, err = r.runReport(ctx, record, models.InsightPhased)
	default:
		err = fmt.Errorf("unknown task kind %q", record.Kind)
	}
	if r.collector != nil {
		r.collector.RecordTiming(metrics.OpTask, time.Since(started))
	}

	if err != nil {
		failed := models.TaskFailed
		message := err.Error()
		if _, updateErr := r.store.UpdateTask(taskID, store.TaskUpdate{Status: &failed, ErrorMessage: &message, Finished: true}); updateErr != nil {
			r.logger.Warn("task failure update failed", "task_id", taskID, "error", updateErr)
		}
		r.logger.Error("task failed", "task_id", taskID, "kind", string(record.Kind), "error", err)
		return
	}

	succeeded := models.TaskSucceeded
	empty := ""
	if _, err := r.store.UpdateTask(taskID, store.TaskUpdate{Status: &succeeded, OutputPath: &outputPath, ErrorMessage: &empty, Finished: true}); err != nil {
		r.logger.Warn("task success update failed", "task_id", taskID, "error", err)
		return
	}
	r.logger.Info("task succeeded", "task_id", taskID, "kind", string(record.Kind), "output", outputPath)
}

func (r *Runner) runSolution(ctx context.Context, record *models.TaskRecord) (string, error) {
	key := record.SubjectKey
	if _, err := r.store.SetSolutionState(key, models.SolutionRunning, nil); err != nil {
		return "", err
	}

	fail := func(err error) (string, error) {
		needs := true
		if _, stateErr := r.store.SetSolutionState(key, models.SolutionFailed, &needs); stateErr != nil {
			r.logger.Warn("solution state update failed", "problem", key, "error", stateErr)
		}
		return "", err
	}

	problem, err := r.store.GetProblemByKey(key)
	if err != nil {
		return fail(fmt.Errorf("problem not found for key=%s", key))
	}
	settings, err := r.store.Settings()
	if err != nil {
		return fail(err)
	}

	var imagesBase64 []string
	for _, meta := range problem.SolutionImages {
		if meta.RelativePath == "" {
			continue
		}
		if b64 := r.store.SolutionImageBase64(meta.RelativePath); b64 != "" {
			imagesBase64 = append(imagesBase64, b64)
		}
	}

	prompt, err := gen.BuildSolutionPrompt(problem, &settings.Prompts, settings.UI.DefaultACLanguage)
	if err != nil {
		return fail(err)
	}
	content, err := r.generator.Generate(ctx, settings.AI.ActiveProfile(), prompt, imagesBase64)
	if err != nil {
		return fail(err)
	}
	outputPath, err := r.store.SaveSolutionFile(problem, content)
	if err != nil {
		return fail(err)
	}

	noNeed := false
	if _, err := r.store.SetSolutionState(key, models.SolutionDone, &noNeed); err != nil {
		return "", err
	}
	return outputPath, nil
}

func (r *Runner) runTag(ctx context.Context, record *models.TaskRecord) (string, error) {
	key := record.SubjectKey
	problem, err := r.store.GetProblemByKey(key)
	if err != nil {
		return "", fmt.Errorf("problem not found for key=%s", key)
	}

	solutionMarkdown, err := r.store.ReadSolutionFile(problem.Source, problem.ID)
	if err != nil {
		solutionMarkdown = ""
	}
	prompt, err := gen.BuildTagPrompt(problem, solutionMarkdown)
	if err != nil {
		return "", err
	}
	profile, err := r.store.ActiveProfile()
	if err != nil {
		return "", err
	}
	raw, err := r.generator.Generate(ctx, profile, prompt, nil)
	if err != nil {
		return "", err
	}
	tags, difficulty, err := gen.ParseTagResponse(raw)
	if err != nil {
		return "", err
	}
	if _, err := r.store.SetTags(key, tags, difficulty); err != nil {
		return "", err
	}
	return fmt.Sprintf("tags=%s difficulty=%d", strings.Join(tags, "、"), difficulty), nil
}

func (r *Runner) runReport(ctx context.Context, record *models.TaskRecord, insightType models.InsightType) (string, error) {
	_, target, found := strings.Cut(record.SubjectKey, ":")
	if !found {
		return "", fmt.Errorf("malformed report subject %q", record.SubjectKey)
	}

	fail := func(err error) (string, error) {
		if _, statusErr := r.store.UpdateReportStatus(insightType, target, models.ReportFailed, "", err.Error()); statusErr != nil {
			r.logger.Warn("report status update failed", "target", target, "error", statusErr)
		}
		return "", err
	}

	var from, to time.Time
	var err error
	if insightType == models.InsightWeekly {
		from, to, err = gen.ParseWeekTarget(target)
	} else {
		from, to, err = gen.ParseMonthTarget(target)
	}
	if err != nil {
		return fail(err)
	}
	fromDate := from.Format("2006-01-02")
	toDate := to.Format("2006-01-02")

	problems, err := r.store.ListProblems("")
	if err != nil {
		return fail(err)
	}
	series, err := gen.BuildStatsSeries(problems, models.PeriodDay, fromDate, toDate)
	if err != nil {
		return fail(err)
	}
	selected := gen.FilterSolvedBetween(problems, from, to)

	settings, err := r.store.Settings()
	if err != nil {
		return fail(err)
	}
	prompt, err := gen.BuildInsightPrompt(insightType, target, series, selected, &settings.Prompts, func(source, id string) string {
		content, err := r.store.ReadSolutionFile(source, id)
		if err != nil {
			return ""
		}
		return content
	})
	if err != nil {
		return fail(err)
	}
	content, err := r.generator.Generate(ctx, settings.AI.ActiveProfile(), prompt, nil)
	if err != nil {
		return fail(err)
	}
	path, err := r.store.SaveInsight(insightType, target, content)
	if err != nil {
		return fail(err)
	}
	if _, err := r.store.UpdateReportStatus(insightType, target, models.ReportReady, path, ""); err != nil {
		return "", err
	}
	return path, nil
}
