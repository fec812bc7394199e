package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"emprendo-intake/internal/domain"
	"emprendo-intake/internal/grading"
)

// GradeOptions control a batch grading run over one form.
type GradeOptions struct {
	RunID       string
	PendingOnly bool
	// DryRun computes grades without writing them.
	DryRun      bool
	Parallelism int
	OnProgress  func(domain.RunProgress)
}

// grade dispatches on the stage of the form the application was submitted to.
func (s *IntakeService) grade(ctx context.Context, application domain.Application, fd domain.FormDefinition) (string, error) {
	master := grading.MasterOf(fd)
	track, stage, ok := grading.ParseMaster(master)
	if !ok {
		return "", nil
	}
	if stage == 1 {
		outcome, err := s.gradeStageOne(ctx, application, track, master)
		return string(outcome), err
	}
	ranking := grading.Rank(master, application.AnswerMap())
	if err := s.apps.UpdateScores(ctx, application.ID, ranking.Scores, ranking.Recommendation); err != nil {
		return "", err
	}
	return string(ranking.Recommendation), nil
}

// gradeStageOne decides eligibility and moves the application to Invited or
// Rejected. Only a change of the stored outcome produces a notification, so
// regrading unchanged answers neither mints a second token nor re-notifies.
func (s *IntakeService) gradeStageOne(ctx context.Context, application domain.Application, track grading.Track, master string) (grading.Outcome, error) {
	result := grading.GradeEligibility(master, application.AnswerMap())
	event := domain.NotificationEvent{
		ApplicationID:  application.ID,
		Track:          string(track),
		RecipientEmail: application.Email,
	}

	label := domain.RecommendationRejected
	if result.Outcome == grading.Approved {
		label = domain.RecommendationApproved
		token, err := s.issueToken(ctx, application.ID)
		if err != nil {
			return "", err
		}
		if err := s.apps.SetInvited(ctx, application.ID, true); err != nil {
			return "", err
		}
		event.Kind = domain.NotificationApproved
		event.ContinuationURL = s.continuationURL(track, token)
	} else {
		if err := s.apps.SetInvited(ctx, application.ID, false); err != nil {
			return "", err
		}
		event.Kind = domain.NotificationRejected
		log.Printf("application=%d rejected, failed gates: %s", application.ID, strings.Join(result.Failed, ","))
	}

	if application.Recommendation != label {
		if err := s.notifier.Notify(ctx, event); err != nil {
			return result.Outcome, fmt.Errorf("notify %s: %w", event.Kind, err)
		}
		if err := s.apps.UpdateScores(ctx, application.ID, application.Scores, label); err != nil {
			return result.Outcome, err
		}
	}
	return result.Outcome, nil
}

// issueToken retries once when the uniqueness constraint fires.
func (s *IntakeService) issueToken(ctx context.Context, id int64) (string, error) {
	token, err := s.apps.IssueInviteToken(ctx, id)
	if errors.Is(err, domain.ErrTokenConflict) {
		log.Printf("invite token conflict for application=%d, retrying", id)
		token, err = s.apps.IssueInviteToken(ctx, id)
	}
	return token, err
}

func (s *IntakeService) continuationURL(track grading.Track, token string) string {
	return fmt.Sprintf("%s/apply/%s/continue/%s/", strings.TrimRight(s.opts.BaseURL, "/"), track, token)
}

// GradeForm ranks the applications of a form in a batch. Row failures are
// collected in the returned progress instead of aborting the run.
func (s *IntakeService) GradeForm(ctx context.Context, slug string, opts GradeOptions) (domain.RunProgress, error) {
	fd, apps, err := s.batchInput(ctx, slug, opts)
	if err != nil {
		return domain.RunProgress{}, err
	}
	master := grading.MasterOf(fd)
	if _, stage, ok := grading.ParseMaster(master); !ok || stage != 2 {
		log.Printf("form %s does not look like a stage-2 form, grading anyway", slug)
	}

	runLog := grading.NewRunLog(s.runID(opts), slug, len(apps))
	err = grading.RunBatch(ctx, runLog, apps, applicationKey,
		func(ctx context.Context, application domain.Application) error {
			if opts.DryRun {
				r := grading.Rank(master, application.AnswerMap())
				log.Printf("dry run application=%d overall=%.2f recommendation=%s", application.ID, r.Scores.Overall, r.Recommendation)
				return nil
			}
			_, err := s.grade(ctx, application, fd)
			return err
		},
		grading.BatchOptions{Parallelism: s.parallelism(opts), OnProgress: opts.OnProgress},
	)
	return runLog.Snapshot(), err
}

// ReviewForm applies the hybrid grader to stored stage-2 applications. The
// rule-based ranking is persisted first; external scoring runs afterwards and
// its review is saved in a separate step.
func (s *IntakeService) ReviewForm(ctx context.Context, slug string, opts GradeOptions) (domain.RunProgress, error) {
	fd, apps, err := s.batchInput(ctx, slug, opts)
	if err != nil {
		return domain.RunProgress{}, err
	}
	master := grading.MasterOf(fd)
	track, stage, ok := grading.ParseMaster(master)
	if !ok || stage != 2 {
		return domain.RunProgress{}, fmt.Errorf("form %s is not a stage-2 form: %w", slug, domain.ErrFormNotFound)
	}
	grader := grading.NewBulkGrader(track, s.opts.Scoring)

	runLog := grading.NewRunLog(s.runID(opts), slug, len(apps))
	err = grading.RunBatch(ctx, runLog, apps, applicationKey,
		func(ctx context.Context, application domain.Application) error {
			ranking := grading.Rank(master, application.AnswerMap())
			if !opts.DryRun {
				if err := s.apps.UpdateScores(ctx, application.ID, ranking.Scores, ranking.Recommendation); err != nil {
					return err
				}
			}

			graded := grader.Grade(ctx, applicationKey(application), reviewRow(application))
			if graded.ExternalFailures > 0 {
				log.Printf("application=%d reviewed with %d external scoring failures", application.ID, graded.ExternalFailures)
			}
			if opts.DryRun {
				return nil
			}
			return s.apps.SaveReview(ctx, domain.Review{
				ApplicationID:    application.ID,
				Eligible:         graded.Eligible,
				TotalPoints:      graded.TotalPoints,
				RedFlags:         graded.RedFlags,
				Explanation:      graded.Explanation,
				Rubric:           graded.Rubric,
				ExternalFailures: graded.ExternalFailures,
				GradedAt:         s.now().UTC(),
			})
		},
		grading.BatchOptions{Parallelism: s.parallelism(opts), OnProgress: opts.OnProgress},
	)
	return runLog.Snapshot(), err
}

func (s *IntakeService) batchInput(ctx context.Context, slug string, opts GradeOptions) (domain.FormDefinition, []domain.Application, error) {
	fd, err := s.forms.GetForm(ctx, slug)
	if err != nil {
		return domain.FormDefinition{}, nil, err
	}
	apps, err := s.apps.ListByForm(ctx, fd.ID, opts.PendingOnly)
	if err != nil {
		return domain.FormDefinition{}, nil, err
	}
	return fd, apps, nil
}

func (s *IntakeService) runID(opts GradeOptions) string {
	if opts.RunID != "" {
		return opts.RunID
	}
	return uuid.NewString()
}

func (s *IntakeService) parallelism(opts GradeOptions) int {
	if opts.Parallelism > 0 {
		return opts.Parallelism
	}
	return s.opts.Parallelism
}

func applicationKey(application domain.Application) string {
	return "application=" + strconv.FormatInt(application.ID, 10)
}

// reviewRow exposes stored answers to the bulk graders, filling identity
// columns the form may not ask for.
func reviewRow(application domain.Application) map[string]string {
	row := grading.BulkRow(application.AnswerMap())
	fill := map[string]string{
		"email":            application.Email,
		"full_name":        application.Name,
		"certificate_name": application.Name,
		"created_at":       application.CreatedAt.Format(time.RFC3339),
	}
	for k, v := range fill {
		if row[k] == "" {
			row[k] = v
		}
	}
	return row
}
