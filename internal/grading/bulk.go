package grading

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Graded is the hybrid grade of one row. Values line up with the grader's
// Columns.
type Graded struct {
	Key              string
	Eligible         bool
	TotalPoints      int
	RedFlags         string
	Explanation      string
	Rubric           string
	ExternalFailures int
	Values           []string
}

// BulkGrader grades string rows keyed by column name. Grade never fails:
// external problems degrade the row and are counted in ExternalFailures.
type BulkGrader interface {
	Track() Track
	Columns() []string
	Grade(ctx context.Context, key string, row map[string]string) Graded
}

// Clients bundles the external collaborators of the hybrid graders.
type Clients struct {
	Completer Completer
	Moderator Moderator
	Timeout   time.Duration
}

// NewBulkGrader returns the hybrid grader of a track.
func NewBulkGrader(t Track, c Clients) BulkGrader {
	if t == TrackMentor {
		return NewMentorBulkGrader(c)
	}
	return NewEntrepreneurBulkGrader(c)
}

// stagePrefixes are stripped from stored stage-2 slugs to find the column a
// bulk grader reads, so "e2_business_age" also answers "business_age".
var stagePrefixes = []string{"e2_", "m2_"}

// BulkRow turns stored answers into a bulk grading row. Existing columns win
// over prefixed aliases.
func BulkRow(answers map[string]string) map[string]string {
	row := make(map[string]string, len(answers))
	for k, v := range answers {
		row[k] = v
	}
	for k, v := range answers {
		for _, p := range stagePrefixes {
			base, ok := strings.CutPrefix(k, p)
			if !ok || base == "" {
				continue
			}
			if _, exists := row[base]; !exists {
				row[base] = v
			}
		}
	}
	return row
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func points(ok bool, weight int) int {
	if ok {
		return weight
	}
	return 0
}
