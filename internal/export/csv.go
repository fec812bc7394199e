package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"emprendo-intake/internal/domain"
)

var fixedColumns = []string{
	"created_at",
	"application_id",
	"name",
	"email",
	"tablestakes_score",
	"commitment_score",
	"nice_to_have_score",
	"overall_score",
	"recommendation",
}

// Header returns the export columns of a form: the fixed columns followed by
// the active question slugs in (position, id) order.
func Header(fd domain.FormDefinition) []string {
	header := append([]string(nil), fixedColumns...)
	for _, q := range fd.ActiveQuestions() {
		header = append(header, q.Slug)
	}
	return header
}

// WriteCSV renders one row per application. Unanswered questions are empty.
func WriteCSV(w io.Writer, fd domain.FormDefinition, apps []domain.Application) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(fd)); err != nil {
		return err
	}
	questions := fd.ActiveQuestions()
	for _, app := range apps {
		answers := app.AnswerMap()
		rec := []string{
			app.CreatedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(app.ID, 10),
			app.Name,
			app.Email,
			score(app.Scores.Tablestakes),
			score(app.Scores.Commitment),
			score(app.Scores.NiceToHave),
			score(app.Scores.Overall),
			string(app.Recommendation),
		}
		for _, q := range questions {
			rec = append(rec, answers[q.Slug])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
