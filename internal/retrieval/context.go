package retrieval

import "strings"

const chunkSeparator = "\n\n"

// BuildContext assembles retrieved chunk texts into a bounded context string
// for answer generation. Texts are concatenated in rank order, exact
// duplicates are skipped and assembly stops before the first chunk that
// would exceed maxChars, so a chunk is always included whole or not at all.
// It returns the assembled string and the results actually included, so the
// caller can report "used N of M retrieved passages".
func BuildContext(results []Result, maxChars int) (string, []Result) {
	if maxChars <= 0 || len(results) == 0 {
		return "", nil
	}

	var builder strings.Builder
	seen := make(map[string]struct{}, len(results))
	included := make([]Result, 0, len(results))

	for _, result := range results {
		text := result.Chunk.Text
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}

		needed := len(text)
		if builder.Len() > 0 {
			needed += len(chunkSeparator)
		}
		if builder.Len()+needed > maxChars {
			break
		}

		if builder.Len() > 0 {
			builder.WriteString(chunkSeparator)
		}
		builder.WriteString(text)
		seen[text] = struct{}{}
		included = append(included, result)
	}

	return builder.String(), included
}
