package fuzzer

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"
)

//go:embed prompts/system.md
var systemPromptTemplate string

//go:embed prompts/opening.md
var openingInstruction string

const continuationInstruction = "Continue your fuzz-testing process rigorously and systematically. " +
	"Persist deeply and exhaustively exploring each compiler feature, ensuring thorough testing of subtle, tricky, and non-obvious edge cases. " +
	"Always strictly avoid repeating tests or reporting known documented issues—these are fully acknowledged and require no further validation. " +
	"You MUST NOT stop your exploration prematurely—keep going until you explicitly confirm a significant compiler bug or documentation mismatch. " +
	"Keep going!"

const reportDirectiveTemplate = "You have detected a potential severe issue or misinformation. " +
	"Immediately invoke the 'report_issue' command with this detailed reason: %s"

const bugReasonTemplate = `Compilation of snippet '%s' uncovered a critical anomaly:
--- Begin Compiler Output ---
%s
--- End Compiler Output ---

Carefully review the above compiler output to confirm this significant bug or documentation issue before invoking 'report_issue'.`

// maxExcerptLen bounds compiler output and message excerpts quoted in logs
// and report directives.
const maxExcerptLen = 200

func systemPrompt(knownIssues string) string {
	return strings.ReplaceAll(systemPromptTemplate, "{found_issues}", knownIssues)
}

func bugReportDirective(snippetID, output string) string {
	reason := fmt.Sprintf(bugReasonTemplate, snippetID, truncate(output, maxExcerptLen))
	return fmt.Sprintf(reportDirectiveTemplate, reason)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	// Back off to a rune boundary so the cut never leaves a partial
	// multibyte sequence in the excerpt.
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
