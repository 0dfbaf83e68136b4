package llm

import (
	"context"
	"fmt"
	"strings"
)

const paraphraseSystem = `You rewrite customer support search queries. Respond with one paraphrase per line, nothing else. Keep the meaning identical and stay concise.`

// Paraphrase generates up to n alternative phrasings of query. Satisfies
// the query expansion Paraphraser interface.
func (c *Client) Paraphrase(ctx context.Context, query, language, domain string, n int) ([]string, error) {
	if n <= 0 {
		n = 3
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Generate %d paraphrases of this query: %q", n, query)
	if language != "" {
		fmt.Fprintf(&prompt, "\nLanguage: %s", language)
	}
	if domain != "" {
		fmt.Fprintf(&prompt, "\nDomain context: %s", domain)
	}

	answer, err := c.Complete(ctx, paraphraseSystem, prompt.String())
	if err != nil {
		return nil, err
	}

	var paraphrases []string
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•*0123456789. ")
		line = strings.Trim(line, `"`)
		if line == "" || strings.EqualFold(line, query) {
			continue
		}
		paraphrases = append(paraphrases, line)
		if len(paraphrases) >= n {
			break
		}
	}
	return paraphrases, nil
}
