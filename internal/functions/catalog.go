package functions

// Param describes one positional argument.
type Param struct {
	Name        string
	Description string
	Required    bool
}

// Signature describes a function for discovery surfaces such as MCP.
type Signature struct {
	Name        string
	Description string
	Params      []Param
}

var (
	paramModel = Param{
		Name:        "model",
		Description: `Model details object, e.g. {"model_name": "gpt-4o", "temperature": 0.2}.`,
		Required:    true,
	}
	paramPrompt = Param{
		Name:        "prompt",
		Description: `Prompt details: {"prompt": "..."} or {"prompt_name": "...", "version": 2}.`,
		Required:    true,
	}
	paramRows = Param{
		Name:        "rows",
		Description: "One row object or an array of row objects.",
	}
	paramSettings = Param{
		Name:        "settings",
		Description: `Optional settings object: {"batch_size": 10, "provider": "ollama"}.`,
	}
)

// Signatures lists every function with its positional arguments.
func Signatures() []Signature {
	required := func(p Param) Param { p.Required = true; return p }
	return []Signature{
		{
			Name:        Complete,
			Description: "Complete a prompt once, or once per row. Returns text.",
			Params:      []Param{paramModel, paramPrompt, paramRows, paramSettings},
		},
		{
			Name:        CompleteJSON,
			Description: "Like llm_complete, but every answer is a JSON object.",
			Params:      []Param{paramModel, paramPrompt, paramRows, paramSettings},
		},
		{
			Name:        Embedding,
			Description: "Embed each row's values as one text. Returns vectors.",
			Params: []Param{
				required(paramRows),
				{Name: "model_name", Description: "Name of an embedding model.", Required: true},
				{Name: "settings", Description: `Optional settings object: {"batch_size": 64, "provider": "openai"}.`},
			},
		},
		{
			Name:        Reduce,
			Description: "Fold all rows into one answer.",
			Params:      []Param{paramModel, paramPrompt, required(paramRows)},
		},
		{
			Name:        Max,
			Description: "Select the row that best matches the prompt.",
			Params:      []Param{paramModel, paramPrompt, required(paramRows)},
		},
		{
			Name:        Min,
			Description: "Select the row that least matches the prompt.",
			Params:      []Param{paramModel, paramPrompt, required(paramRows)},
		},
	}
}

// RowsParam returns the position of the rows argument of fn, or -1 when
// fn is unknown.
func RowsParam(fn string) int {
	for _, s := range Signatures() {
		if s.Name != fn {
			continue
		}
		for i, p := range s.Params {
			if p.Name == paramRows.Name {
				return i
			}
		}
	}
	return -1
}
