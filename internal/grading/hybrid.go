package grading

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single external scoring or moderation call.
	DefaultTimeout = 30 * time.Second

	blankExplanation    = "Blank or insufficient response."
	fallbackExplanation = "No explanation returned."

	// moderationLimit caps the concatenated free text sent for moderation.
	moderationLimit = 15000
)

// Completer sends a single prompt to a text model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Moderator classifies text and returns the flagged categories by name.
type Moderator interface {
	Moderate(ctx context.Context, text string) (map[string]bool, error)
}

// TextScore is the external 1-5 score of one free-text answer.
type TextScore struct {
	Points      int
	Explanation string
	// Failed is set when the call errored or the reply could not be parsed.
	Failed bool
}

// TextScorer asks a Completer to score free-text answers. Blank answers are
// never sent. Replies are clamped to at most 5, and negative points are kept
// only for criteria that allow them; anything below 0 otherwise scores 0.
type TextScorer struct {
	completer Completer
	timeout   time.Duration
	rules     []string
}

// NewTextScorer returns a scorer that applies rules in every prompt.
func NewTextScorer(c Completer, timeout time.Duration, rules ...string) *TextScorer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TextScorer{completer: c, timeout: timeout, rules: rules}
}

// Score grades text against criterion. key identifies the row in logs.
// negativeAllowed keeps negative replies and makes a blank answer score -1.
func (s *TextScorer) Score(ctx context.Context, key, criterion, text string, negativeAllowed bool) TextScore {
	if strings.TrimSpace(text) == "" {
		if negativeAllowed {
			return TextScore{Points: -1, Explanation: blankExplanation}
		}
		return TextScore{Points: 0, Explanation: blankExplanation}
	}
	if s == nil || s.completer == nil {
		return TextScore{Explanation: fallbackExplanation, Failed: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply, err := s.completer.Complete(callCtx, s.prompt(criterion, text))
	if err != nil {
		log.Printf("text scoring failed for %s (%s): %v", key, criterion, err)
		return TextScore{Explanation: fallbackExplanation, Failed: true}
	}
	points, explanation, ok := parseScoreReply(reply)
	if !ok {
		log.Printf("text scoring returned unparsable reply for %s (%s)", key, criterion)
		return TextScore{Explanation: fallbackExplanation, Failed: true}
	}
	if points > 5 {
		points = 5
	}
	if points < 0 && !negativeAllowed {
		points = 0
	}
	return TextScore{Points: points, Explanation: explanation}
}

func (s *TextScorer) prompt(criterion, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Criterion: %s\n\nRules:\n", criterion)
	for _, r := range s.rules {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	fmt.Fprintf(&b, "\nResponse:\n\"\"\"%s\"\"\"\n\n", text)
	b.WriteString("Output EXACTLY:\nScore: <int>\nExplanation: <2–3 sentences justifying the score>\n")
	return b.String()
}

// parseScoreReply reads the "Score:" and "Explanation:" lines of a reply.
// A reply without an integer score is rejected.
func parseScoreReply(reply string) (int, string, bool) {
	points, scored := 0, false
	explanation := fallbackExplanation
	for _, line := range strings.Split(strings.TrimSpace(reply), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Score:"):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Score:")))
			if err != nil {
				return 0, "", false
			}
			points, scored = n, true
		case strings.HasPrefix(line, "Explanation:"):
			if e := strings.TrimSpace(strings.TrimPrefix(line, "Explanation:")); e != "" {
				explanation = e
			}
		}
	}
	if !scored {
		return 0, "", false
	}
	return points, explanation, true
}

// Moderation labels reported as red flags.
const (
	FlagSexual  = "contenido sexual"
	FlagIllicit = "contenido ilicito"
)

// RedFlags moderates the concatenated non-blank texts. A failed call yields no
// flags and ok=false; the failure is logged with key.
func RedFlags(ctx context.Context, m Moderator, timeout time.Duration, key string, texts ...string) (flags string, ok bool) {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", true
	}
	if m == nil {
		return "", false
	}
	combined := []rune(strings.Join(parts, "\n"))
	if len(combined) > moderationLimit {
		combined = combined[:moderationLimit]
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cats, err := m.Moderate(callCtx, string(combined))
	if err != nil {
		log.Printf("moderation failed for %s: %v", key, err)
		return "", false
	}
	var out []string
	if cats["sexual"] || cats["sexual_minors"] || cats["sexual/minors"] {
		out = append(out, FlagSexual)
	}
	if cats["illicit"] || cats["illicit_violent"] || cats["illicit/violent"] {
		out = append(out, FlagIllicit)
	}
	return strings.Join(out, ", "), true
}

var redFlagKeywords = []string{"sex", "sexual", "drug", "alcohol", "weed", "cocaine", "illegal", "illicit"}

// KeywordFlags is the offline red-flag check: every keyword found in the
// lower-cased texts, sorted.
func KeywordFlags(texts ...string) string {
	combined := strings.ToLower(strings.Join(texts, " "))
	var found []string
	for _, k := range redFlagKeywords {
		if strings.Contains(combined, k) {
			found = append(found, k)
		}
	}
	sort.Strings(found)
	return strings.Join(found, ", ")
}
