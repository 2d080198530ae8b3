package router

import (
	"regexp"
	"strings"

	"github.com/vocaresume/vocaresume"
)

// KeywordScore is the fixed confidence reported by the keyword classifier.
const KeywordScore = 0.5

// keywordRules are checked in order; the first rule with a matching pattern wins.
var keywordRules = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{LabelInterview, regexp.MustCompile(`(?i)\b(interview\w*|question\w*|technical)\b`)},
	{LabelSuggestions, regexp.MustCompile(`(?i)\b(suggest\w*|improv\w*|optimi[sz]\w*|enhanc\w*)\b`)},
	{LabelJobFit, regexp.MustCompile(`(?i)\b(fit|score\w*|match\w*|suitab\w*)\b`)},
}

// Classify routes query with keyword rules. Blank queries get DefaultResult;
// anything that matches no rule goes to analysis.
func Classify(query string) Result {
	if strings.TrimSpace(query) == "" {
		return DefaultResult()
	}
	label := LabelAnalysis
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(query) {
			label = rule.label
			break
		}
	}
	t, _ := TaskByLabel(label)
	return Result{
		TaskIndex:    t.Index,
		Label:        t.Label,
		Score:        KeywordScore,
		Alternatives: []vocaresume.Alternative{},
	}
}
