package domain

import "strings"

const (
	preOpen  = "[[PRE"
	preClose = "[[/PRE]]"
)

// HelpText is a question's help text split into its optional decorative
// pre-block and the remaining text.
//
// Stored format:
//
//	[[PRE hr=1]]
//	<body>
//	[[/PRE]]
//	<rest>
type HelpText struct {
	Pre  string `json:"pre,omitempty"`
	HR   bool   `json:"hr,omitempty"`
	Rest string `json:"rest"`
}

// ParseHelpText splits raw. A missing or malformed leading block leaves the
// whole string in Rest.
func ParseHelpText(raw string) HelpText {
	plain := HelpText{Rest: raw}
	if !strings.HasPrefix(raw, preOpen) {
		return plain
	}
	end := strings.Index(raw, "]]")
	if end < 0 {
		return plain
	}
	attrs := raw[len(preOpen):end]
	if attrs != "" && attrs[0] != ' ' && attrs[0] != '\t' {
		return plain
	}
	bodyStart := end + 2
	if bodyStart >= len(raw) || raw[bodyStart] != '\n' {
		return plain
	}
	bodyStart++

	closeAt := strings.Index(raw[bodyStart:], "\n"+preClose)
	if closeAt < 0 {
		return plain
	}
	body := raw[bodyStart : bodyStart+closeAt]
	after := raw[bodyStart+closeAt+1+len(preClose):]
	switch {
	case after == "":
	case after[0] == '\n':
		after = after[1:]
	default:
		return plain
	}
	return HelpText{Pre: body, HR: parseHR(attrs), Rest: after}
}

// ComposeHelpText is the inverse of ParseHelpText. Without a body or divider
// only the remaining text is returned.
func ComposeHelpText(h HelpText) string {
	if h.Pre == "" && !h.HR {
		return h.Rest
	}
	var b strings.Builder
	b.WriteString(preOpen)
	if h.HR {
		b.WriteString(" hr=1")
	}
	b.WriteString("]]\n")
	b.WriteString(h.Pre)
	b.WriteString("\n")
	b.WriteString(preClose)
	b.WriteString("\n")
	b.WriteString(h.Rest)
	return b.String()
}

func parseHR(attrs string) bool {
	for _, field := range strings.Fields(attrs) {
		key, value, ok := strings.Cut(field, "=")
		if !ok || !strings.EqualFold(key, "hr") {
			continue
		}
		switch strings.ToLower(strings.Trim(value, `"'`)) {
		case "1", "true", "yes":
			return true
		}
	}
	return false
}
