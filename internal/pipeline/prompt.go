package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/datachat/datachat/internal/schema"
)

var fencedBlock = regexp.MustCompile("(?s)```.*?\n(.*?)```")

func BuildPrompt(current schema.Schema, dialectLabel string) string {
	return fmt.Sprintf(`You'll answer the user's question based on this %s schema:

%s

1. Guess my objective in asking this.
2. Describe the steps to achieve this objective in SQL.
3. Write SQL to answer the question. Use %s syntax.

Replace generic filter values (e.g. "a location", "specific region", etc.) by querying a random value from data.
Wrap columns with spaces inside [].`, dialectLabel, current.Prompt(), dialectLabel)
}

// ExtractSQL returns the body of the first fenced code block in response, trimmed. A response
// without a fenced block is returned unchanged.
func ExtractSQL(response string) string {
	match := fencedBlock.FindStringSubmatch(response)
	if match == nil {
		return response
	}
	return strings.TrimSpace(match[1])
}
