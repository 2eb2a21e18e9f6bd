package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TicketPlaceholder is the substitution point a prompt template must
// contain exactly once. Render replaces it with the ticket text.
const TicketPlaceholder = "{ticket}"

// Field length limits for prompts. These keep caller-controlled text out of
// oversized classifier requests and TEXT columns.
const (
	MaxPromptIDLen  = 64
	MaxPromptName   = 200
	MaxTemplateLen  = 32 * 1024 // 32 KB
	MaxCategoryName = 64
)

// Prompt is a classification prompt template. The Executor only reads it;
// ownership (CRUD) lives with the prompt endpoints.
type Prompt struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Template   string    `json:"template"`
	Categories []string  `json:"categories"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Render substitutes the ticket text into the template.
func (p Prompt) Render(ticket string) string {
	return strings.Replace(p.Template, TicketPlaceholder, ticket, 1)
}

var promptIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidatePromptID checks id format and length.
func ValidatePromptID(id string) error {
	if id == "" {
		return fmt.Errorf("prompt id is required")
	}
	if len(id) > MaxPromptIDLen {
		return fmt.Errorf("prompt id exceeds maximum length of %d characters", MaxPromptIDLen)
	}
	if !promptIDPattern.MatchString(id) {
		return fmt.Errorf("prompt id must match %s", promptIDPattern.String())
	}
	return nil
}

// ValidatePrompt checks field lengths and that the template carries exactly
// one ticket substitution point.
func ValidatePrompt(p Prompt) error {
	if err := ValidatePromptID(p.ID); err != nil {
		return err
	}
	if p.Name == "" {
		return fmt.Errorf("prompt name is required")
	}
	if len(p.Name) > MaxPromptName {
		return fmt.Errorf("prompt name exceeds maximum length of %d characters", MaxPromptName)
	}
	if len(p.Template) > MaxTemplateLen {
		return fmt.Errorf("template exceeds maximum length of %d bytes", MaxTemplateLen)
	}
	if n := strings.Count(p.Template, TicketPlaceholder); n != 1 {
		return fmt.Errorf("template must contain exactly one %s placeholder (found %d)", TicketPlaceholder, n)
	}
	return nil
}

// ExtractCategories pulls category names out of a prompt template.
// Two shapes are recognized, matching how classification prompts are
// written in practice:
//
//   - bullet lines: "- ACCOUNT: account creation, deletion, ..."
//   - a bare comma-separated list line of upper-case tokens:
//     "Categories: ACCOUNT, CANCEL, CONTACT"
//
// Returned names are upper-case, deduplicated, in first-seen order.
func ExtractCategories(template string) []string {
	var categories []string
	seen := make(map[string]bool)

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || len(name) > MaxCategoryName || seen[name] {
			return
		}
		if name != strings.ToUpper(name) || !isCategoryToken(name) {
			return
		}
		seen[name] = true
		categories = append(categories, name)
	}

	for _, line := range strings.Split(template, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "- ") && strings.Contains(line, ":"):
			add(strings.SplitN(line[2:], ":", 2)[0])
		case strings.Contains(line, ","):
			// Candidate list line: accept only if every element is an
			// upper-case token, so prose with commas is skipped.
			body := line
			if i := strings.Index(body, ":"); i >= 0 {
				body = body[i+1:]
			}
			parts := strings.Split(body, ",")
			ok := len(parts) > 1
			for _, part := range parts {
				tok := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "."))
				tok = strings.TrimPrefix(tok, "or ")
				if tok == "" || tok != strings.ToUpper(tok) || !isCategoryToken(tok) {
					ok = false
					break
				}
			}
			if ok {
				for _, part := range parts {
					tok := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "."))
					add(strings.TrimPrefix(tok, "or "))
				}
			}
		}
	}
	return categories
}

func isCategoryToken(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return s != ""
}
