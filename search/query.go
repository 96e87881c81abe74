package search

import (
	"strconv"
	"strings"
	"time"
)

// ParseQuery parses a raw search line with command-line style flags
// into a structured query.
// Example: invoice --from u12 --in c4 --kind text --after 2026-01-01 --limit 5
func ParseQuery(input string) Query {
	query := Query{}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]

			switch key {
			case "from":
				query.SenderID = val
			case "in":
				query.ConversationID = val
			case "kind":
				query.Kind = val
			case "limit":
				if limit, err := strconv.Atoi(val); err == nil {
					query.Limit = limit
				}
			case "after":
				if at, err := time.Parse("2006-01-02", val); err == nil {
					query.After = at
				}
			case "before":
				if at, err := time.Parse("2006-01-02", val); err == nil {
					query.Before = at
				}
			}
			i++ // Skip the value part in next iteration
			continue
		}

		textTerms = append(textTerms, part)
	}

	query.Text = strings.Join(textTerms, " ")
	return query
}
