package grading

import (
	"fmt"
	"regexp"
	"strings"

	"emprendo-intake/internal/domain"
)

// Track is the applicant side of the program.
type Track string

const (
	TrackEntrepreneur Track = "emprendedora"
	TrackMentor       Track = "mentora"
)

// Master form slugs.
const (
	SlugEntrepreneurStageOne = "E_A1"
	SlugEntrepreneurStageTwo = "E_A2"
	SlugMentorStageOne       = "M_A1"
	SlugMentorStageTwo       = "M_A2"
)

var groupSlugRe = regexp.MustCompile(`^G(\d+)_(E_A1|E_A2|M_A1|M_A2)$`)

// ParseTrack accepts the public track names and their English aliases.
func ParseTrack(raw string) (Track, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "emprendedora", "entrepreneur":
		return TrackEntrepreneur, true
	case "mentora", "mentor":
		return TrackMentor, true
	}
	return "", false
}

// MasterSlug strips a cohort prefix: "G6_E_A2" becomes "E_A2". Other slugs are
// returned unchanged.
func MasterSlug(slug string) string {
	if m := groupSlugRe.FindStringSubmatch(slug); m != nil {
		return m[2]
	}
	return slug
}

// MasterOf prefers the reference recorded when the clone was created.
func MasterOf(form domain.FormDefinition) string {
	if form.MasterSlug != "" {
		return form.MasterSlug
	}
	return MasterSlug(form.Slug)
}

// ParseMaster maps a master slug to its track and stage.
func ParseMaster(master string) (Track, int, bool) {
	switch master {
	case SlugEntrepreneurStageOne:
		return TrackEntrepreneur, 1, true
	case SlugEntrepreneurStageTwo:
		return TrackEntrepreneur, 2, true
	case SlugMentorStageOne:
		return TrackMentor, 1, true
	case SlugMentorStageTwo:
		return TrackMentor, 2, true
	}
	return "", 0, false
}

// StageSlug is the master slug of the track's form for stage 1 or 2.
func (t Track) StageSlug(stage int) string {
	prefix := "E"
	if t == TrackMentor {
		prefix = "M"
	}
	return fmt.Sprintf("%s_A%d", prefix, stage)
}

// CloneSlug names a cohort copy of a master form.
func CloneSlug(groupNumber int, master string) string {
	return fmt.Sprintf("G%d_%s", groupNumber, master)
}
