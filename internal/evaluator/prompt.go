package evaluator

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed prompt.md
var promptTemplate string

// Request is a single idea submission.
type Request struct {
	Description  string `json:"description"`
	TargetMarket string `json:"target_market"`
	Industry     string `json:"industry"`
}

func buildPrompt(req Request, criteria Criteria, schema *responseSchema) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Idea: {{IDEA}}\nTarget Market: {{TARGET_MARKET}}\nIndustry: {{INDUSTRY}}\n\nCriteria:\n{{CRITERIA}}\n\nJSON schema:\n{{SCHEMA}}\n"
	}

	var list strings.Builder
	for _, criterion := range criteria {
		fmt.Fprintf(&list, "- %q: %s\n", criterion.Key, criterion.Question)
	}

	replacer := strings.NewReplacer(
		"{{IDEA}}", singleLine(req.Description),
		"{{TARGET_MARKET}}", singleLine(req.TargetMarket),
		"{{INDUSTRY}}", singleLine(req.Industry),
		"{{CRITERIA}}", strings.TrimRight(list.String(), "\n"),
		"{{SCHEMA}}", schema.text,
	)

	return replacer.Replace(template)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
