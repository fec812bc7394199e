package domain

import (
	"sort"
	"time"
)

// FieldType is the closed set of question input kinds.
type FieldType string

const (
	FieldShortText    FieldType = "short_text"
	FieldLongText     FieldType = "long_text"
	FieldInteger      FieldType = "integer"
	FieldBoolean      FieldType = "boolean"
	FieldSingleChoice FieldType = "single_choice"
	FieldMultiChoice  FieldType = "multi_choice"
)

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldShortText, FieldLongText, FieldInteger, FieldBoolean, FieldSingleChoice, FieldMultiChoice:
		return true
	}
	return false
}

// Logic combines section conditions.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Condition shows a question or section when the controlling question holds Value.
type Condition struct {
	QuestionID int64  `json:"question_id"`
	Value      string `json:"value"`
}

// FormGroup is a cohort, e.g. "Grupo 6 (Enero–Marzo 2026)".
type FormGroup struct {
	ID         int64  `json:"id"`
	Number     int    `json:"number"`
	StartMonth string `json:"startMonth"`
	EndMonth   string `json:"endMonth"`
	Year       int    `json:"year"`
}

// FormDefinition is a master form (E_A1) or a cohort clone (G6_E_A1).
// MasterSlug is recorded when the clone is created.
type FormDefinition struct {
	ID                  int64      `json:"id"`
	Slug                string     `json:"slug"`
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	IsMaster            bool       `json:"isMaster"`
	GroupID             *int64     `json:"groupId,omitempty"`
	MasterSlug          string     `json:"masterSlug"`
	IsPublic            bool       `json:"isPublic"`
	AcceptingResponses  bool       `json:"acceptingResponses"`
	DefaultSectionTitle string     `json:"defaultSectionTitle"`
	Sections            []Section  `json:"sections"`
	Questions           []Question `json:"questions"`
}

// Section groups questions and can be hidden by up to two conditions.
type Section struct {
	ID          int64       `json:"id"`
	FormID      int64       `json:"formId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Position    int         `json:"position"`
	Conditions  []Condition `json:"conditions"`
	Logic       Logic       `json:"logic"`
}

// Question is keyed by Slug within its form; answers and grading use the slug.
type Question struct {
	ID           int64       `json:"id"`
	FormID       int64       `json:"formId"`
	SectionID    *int64      `json:"sectionId,omitempty"`
	Slug         string      `json:"slug"`
	Text         string      `json:"text"`
	HelpText     string      `json:"helpText"`
	Type         FieldType   `json:"type"`
	Required     bool        `json:"required"`
	Position     int         `json:"position"`
	Active       bool        `json:"active"`
	ConfirmValue bool        `json:"confirmValue"`
	Conditions   []Condition `json:"conditions"`
	Choices      []Choice    `json:"choices"`
}

// LegacyCondition is the first condition, kept for consumers that only know
// the single show_if_question/show_if_value pair.
func (q Question) LegacyCondition() (Condition, bool) {
	if len(q.Conditions) == 0 {
		return Condition{}, false
	}
	return q.Conditions[0], true
}

// Choice is one option of a choice question; Value is what Answer.Value stores.
type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"questionId"`
	Label      string `json:"label"`
	Value      string `json:"value"`
	Position   int    `json:"position"`
}

// ActiveQuestions returns active questions ordered by (position, id).
func (f FormDefinition) ActiveQuestions() []Question {
	out := make([]Question, 0, len(f.Questions))
	for _, q := range f.Questions {
		if q.Active {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// OrderedSections returns sections ordered by (position, id).
func (f FormDefinition) OrderedSections() []Section {
	out := append([]Section(nil), f.Sections...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// QuestionByID looks up any question of the form, active or not.
func (f FormDefinition) QuestionByID(id int64) (Question, bool) {
	for _, q := range f.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// SortedChoices returns choices ordered by (position, id).
func (q Question) SortedChoices() []Choice {
	out := append([]Choice(nil), q.Choices...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Scores are the stage-2 weighted sub-scores.
type Scores struct {
	Tablestakes float64 `json:"tablestakes"`
	Commitment  float64 `json:"commitment"`
	NiceToHave  float64 `json:"niceToHave"`
	Overall     float64 `json:"overall"`
}

// Recommendation is the ranking label. Stage-1 applications carry the
// eligibility outcome in the same column.
type Recommendation string

const (
	RecommendationStrongYes Recommendation = "strong_yes"
	RecommendationYes       Recommendation = "yes"
	RecommendationMaybe     Recommendation = "maybe"
	RecommendationNo        Recommendation = "no"
	RecommendationApproved  Recommendation = "approved"
	RecommendationRejected  Recommendation = "rejected"
)

// Application is one submission of a form.
type Application struct {
	ID                   int64          `json:"id"`
	FormID               int64          `json:"formId"`
	FormSlug             string         `json:"formSlug"`
	SourceApplicationID  *int64         `json:"sourceApplicationId,omitempty"`
	Name                 string         `json:"name"`
	Email                string         `json:"email"`
	CreatedAt            time.Time      `json:"createdAt"`
	Scores               Scores         `json:"scores"`
	Recommendation       Recommendation `json:"recommendation"`
	InviteToken          string         `json:"-"`
	InvitedToSecondStage bool           `json:"invitedToSecondStage"`
	Answers              []Answer       `json:"answers,omitempty"`
}

// AnswerMap returns answers keyed by question slug.
func (a Application) AnswerMap() map[string]string {
	out := make(map[string]string, len(a.Answers))
	for _, ans := range a.Answers {
		out[ans.QuestionSlug] = ans.Value
	}
	return out
}

// Answer is the stored value for one question of an application.
type Answer struct {
	ID            int64  `json:"id"`
	ApplicationID int64  `json:"applicationId"`
	QuestionID    int64  `json:"questionId"`
	QuestionSlug  string `json:"questionSlug"`
	Value         string `json:"value"`
}

// Review is the persisted hybrid grade of a stored stage-2 application.
type Review struct {
	ApplicationID    int64     `json:"applicationId"`
	Eligible         bool      `json:"eligible"`
	TotalPoints      int       `json:"totalPoints"`
	RedFlags         string    `json:"redFlags"`
	Explanation      string    `json:"explanation"`
	Rubric           string    `json:"rubric"`
	ExternalFailures int       `json:"externalFailures"`
	GradedAt         time.Time `json:"gradedAt"`
}

// NotificationKind is the stage-1 outcome sent to the email collaborator.
type NotificationKind string

const (
	NotificationApproved NotificationKind = "approved"
	NotificationRejected NotificationKind = "rejected"
)

// NotificationEvent asks the email collaborator to contact an applicant.
type NotificationEvent struct {
	Kind            NotificationKind `json:"kind"`
	ApplicationID   int64            `json:"applicationId"`
	Track           string           `json:"track"`
	RecipientEmail  string           `json:"recipientEmail"`
	ContinuationURL string           `json:"continuationUrl,omitempty"`
}

// SubmissionResult is the short-lived record shown on the thanks page.
type SubmissionResult struct {
	ID            string    `json:"id"`
	ApplicationID int64     `json:"applicationId"`
	FormSlug      string    `json:"formSlug"`
	Track         string    `json:"track"`
	Stage         int       `json:"stage"`
	Outcome       string    `json:"outcome"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RunFailure records a row that could not be graded.
type RunFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// RunProgress is a snapshot of a batch grading run.
type RunProgress struct {
	RunID     string       `json:"runId"`
	FormSlug  string       `json:"formSlug"`
	Total     int          `json:"total"`
	Done      int          `json:"done"`
	Failed    int          `json:"failed"`
	Failures  []RunFailure `json:"failures,omitempty"`
	Finished  bool         `json:"finished"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
