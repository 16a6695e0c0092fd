package prompt

import "fmt"

// Kind identifies a built-in template.
type Kind int

// Built-in templates.
const (
	KindComplete Kind = iota
	KindCompleteBatch
	KindCompleteJSON
	KindCompleteJSONBatch
	KindReduce
	KindRankMax
	KindRankMin
)

var kindNames = map[Kind]string{
	KindComplete:          "complete",
	KindCompleteBatch:     "complete_batch",
	KindCompleteJSON:      "complete_json",
	KindCompleteJSONBatch: "complete_json_batch",
	KindReduce:            "reduce",
	KindRankMax:           "rank_max",
	KindRankMin:           "rank_min",
}

// String returns the template name.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// JSONSuffix is appended to a bare JSON completion prompt.
const JSONSuffix = "\nThe Output should be in JSON format."

const frame = `You are a semantic analysis tool for a database engine. You read rows of a table and answer a user request about them.

{{INSTRUCTIONS}}

Tuples:

{{TUPLES}}
User request:

{{USER_PROMPT}}

{{RESPONSE_FORMAT}}
`

type parts struct {
	instructions   string
	responseFormat string
}

var templateParts = map[Kind]parts{
	KindComplete: {
		instructions:   "You are given a single tuple. The header lists its column names and the tuple lists its values as JSON.",
		responseFormat: "Respond with the answer only, without any explanation or extra words.",
	},
	KindCompleteBatch: {
		instructions: "You are given several tuples. The header lists the column names and each tuple lists its values as JSON. " +
			"Answer the user request independently for every tuple.",
		responseFormat: "Respond with a JSON object of the form {\"tuples\": [\"answer 1\", \"answer 2\"]} " +
			"holding exactly one string answer per tuple, in the same order as the tuples. Do not add any other text.",
	},
	KindCompleteJSON: {
		instructions:   "You are given a single tuple. The header lists its column names and the tuple lists its values as JSON.",
		responseFormat: "Respond with a single JSON object only. Do not add any other text.",
	},
	KindCompleteJSONBatch: {
		instructions: "You are given several tuples. The header lists the column names and each tuple lists its values as JSON. " +
			"Answer the user request independently for every tuple.",
		responseFormat: "Respond with a JSON object of the form {\"tuples\": [{...}, {...}]} " +
			"holding exactly one JSON object per tuple, in the same order as the tuples. Do not add any other text.",
	},
	KindReduce: {
		instructions: "You are given a set of tuples. Some of them may be partial results produced earlier for the same request, " +
			"stored in an \"output\" column. Combine every tuple into one answer to the user request.",
		responseFormat: "Respond with a JSON object of the form {\"output\": answer} where answer combines all tuples. " +
			"Do not add any other text.",
	},
	KindRankMax: {
		instructions: "You are RankLLM, an assistant that ranks tuples by their relevance to the user request. " +
			"Every tuple carries a numerical identifier in its \"_rank_id\" column. Identify the single most relevant tuple.",
		responseFormat: "Respond with a JSON object of the form {\"selected\": _rank_id} using the identifier of the most relevant tuple. " +
			"Do not explain or add any other words.",
	},
	KindRankMin: {
		instructions: "You are RankLLM, an assistant that ranks tuples by their relevance to the user request. " +
			"Every tuple carries a numerical identifier in its \"_rank_id\" column. Identify the single least relevant tuple.",
		responseFormat: "Respond with a JSON object of the form {\"selected\": _rank_id} using the identifier of the least relevant tuple. " +
			"Do not explain or add any other words.",
	},
}

// Template returns the built-in template for k with its instructions and
// response format filled in. The user prompt and tuples sections remain.
func Template(k Kind) string {
	p, ok := templateParts[k]
	if !ok {
		panic(fmt.Sprintf("prompt: unknown template %s", k))
	}
	return Fill(frame, map[Section]string{
		Instructions:   p.instructions,
		ResponseFormat: p.responseFormat,
	})
}
