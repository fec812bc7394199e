package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"emprendo-intake/internal/domain"
)

const formColumns = `id, slug, name, description, is_master, group_id, master_slug, is_public, accepting_responses, default_section_title`

// FormLoader loads form schemas from Postgres.
type FormLoader struct {
	pool       *pgxpool.Pool
	precedence domain.ConditionPrecedence
}

func NewFormLoader(pool *pgxpool.Pool, precedence domain.ConditionPrecedence) *FormLoader {
	return &FormLoader{pool: pool, precedence: precedence}
}

func (l *FormLoader) LoadForm(ctx context.Context, slug string) (domain.FormDefinition, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+formColumns+` FROM form_definitions WHERE slug=$1`, slug)
	return l.load(ctx, row)
}

// LoadGroupForm follows the stored group reference; a nil group selects the master.
func (l *FormLoader) LoadGroupForm(ctx context.Context, groupID *int64, masterSlug string) (domain.FormDefinition, error) {
	if groupID == nil {
		row := l.pool.QueryRow(ctx, `SELECT `+formColumns+` FROM form_definitions WHERE slug=$1 AND is_master`, masterSlug)
		return l.load(ctx, row)
	}
	row := l.pool.QueryRow(ctx, `SELECT `+formColumns+` FROM form_definitions WHERE group_id=$1 AND master_slug=$2`, *groupID, masterSlug)
	return l.load(ctx, row)
}

func (l *FormLoader) load(ctx context.Context, row pgx.Row) (domain.FormDefinition, error) {
	var fd domain.FormDefinition
	err := row.Scan(&fd.ID, &fd.Slug, &fd.Name, &fd.Description, &fd.IsMaster, &fd.GroupID,
		&fd.MasterSlug, &fd.IsPublic, &fd.AcceptingResponses, &fd.DefaultSectionTitle)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FormDefinition{}, domain.ErrFormNotFound
	}
	if err != nil {
		return domain.FormDefinition{}, fmt.Errorf("load form: %w", err)
	}

	if fd.Sections, err = l.loadSections(ctx, fd.ID); err != nil {
		return domain.FormDefinition{}, err
	}
	if fd.Questions, err = l.loadQuestions(ctx, fd.ID); err != nil {
		return domain.FormDefinition{}, err
	}
	reportInvalidConditions(fd)
	return fd, nil
}

// reportInvalidConditions logs conditions that point outside the form. They are
// kept as stored: the evaluator never satisfies an unknown controller, so the
// dependant stays hidden while the rest of the form keeps working.
func reportInvalidConditions(fd domain.FormDefinition) int {
	n := 0
	for _, q := range fd.Questions {
		if err := domain.ValidateConditions(fd, q); err != nil {
			log.Printf("load form %s: %v", fd.Slug, err)
			n++
		}
	}
	for _, s := range fd.Sections {
		if err := domain.ValidateSectionConditions(fd, s); err != nil {
			log.Printf("load form %s: %v", fd.Slug, err)
			n++
		}
	}
	return n
}

func (l *FormLoader) loadSections(ctx context.Context, formID int64) ([]domain.Section, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, form_id, title, description, position, logic,
		       show_if_question_id, show_if_value, show_if_question_2_id, show_if_value_2
		FROM sections WHERE form_id=$1 ORDER BY position, id`, formID)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	defer rows.Close()

	var sections []domain.Section
	for rows.Next() {
		var (
			s              domain.Section
			logic          string
			first, second  *int64
			value1, value2 string
		)
		if err := rows.Scan(&s.ID, &s.FormID, &s.Title, &s.Description, &s.Position, &logic,
			&first, &value1, &second, &value2); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		s.Logic = domain.LogicAnd
		if logic == string(domain.LogicOr) {
			s.Logic = domain.LogicOr
		}
		if first != nil {
			s.Conditions = append(s.Conditions, domain.Condition{QuestionID: *first, Value: value1})
		}
		if second != nil {
			s.Conditions = append(s.Conditions, domain.Condition{QuestionID: *second, Value: value2})
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

func (l *FormLoader) loadQuestions(ctx context.Context, formID int64) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, form_id, section_id, slug, text, help_text, field_type, required,
		       position, active, confirm_value, show_if_question_id, show_if_value, show_if_conditions
		FROM questions WHERE form_id=$1 ORDER BY position, id`, formID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	index := make(map[int64]int)
	for rows.Next() {
		var (
			q          domain.Question
			fieldType  string
			legacyID   *int64
			legacyVal  string
			conditions []byte
		)
		if err := rows.Scan(&q.ID, &q.FormID, &q.SectionID, &q.Slug, &q.Text, &q.HelpText, &fieldType, &q.Required,
			&q.Position, &q.Active, &q.ConfirmValue, &legacyID, &legacyVal, &conditions); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = domain.FieldType(fieldType)

		var list []domain.Condition
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &list); err != nil {
				return nil, fmt.Errorf("unmarshal conditions of %s: %w", q.Slug, err)
			}
		}
		var legacy *domain.Condition
		if legacyID != nil {
			legacy = &domain.Condition{QuestionID: *legacyID, Value: legacyVal}
		}
		q.Conditions = domain.ReconcileConditions(list, legacy, l.precedence)

		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	choices, err := l.pool.Query(ctx, `
		SELECT c.id, c.question_id, c.label, c.value, c.position
		FROM choices c JOIN questions q ON q.id = c.question_id
		WHERE q.form_id=$1 ORDER BY c.position, c.id`, formID)
	if err != nil {
		return nil, fmt.Errorf("load choices: %w", err)
	}
	defer choices.Close()
	for choices.Next() {
		var c domain.Choice
		if err := choices.Scan(&c.ID, &c.QuestionID, &c.Label, &c.Value, &c.Position); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		if i, ok := index[c.QuestionID]; ok {
			questions[i].Choices = append(questions[i].Choices, c)
		}
	}
	return questions, choices.Err()
}
