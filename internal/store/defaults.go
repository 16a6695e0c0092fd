package store

// DefaultModels is the catalog seeded into the default tier of every store.
var DefaultModels = []Model{
	{Name: "gpt-4o", Model: "gpt-4o", Provider: "openai", ContextWindow: 128000, MaxOutputTokens: 16384},
	{Name: "gpt-4o-mini", Model: "gpt-4o-mini", Provider: "openai", ContextWindow: 128000, MaxOutputTokens: 16384},
	{Name: "text-embedding-3-small", Model: "text-embedding-3-small", Provider: "openai", ContextWindow: 8192, MaxOutputTokens: 8192},
	{Name: "text-embedding-3-large", Model: "text-embedding-3-large", Provider: "openai", ContextWindow: 8192, MaxOutputTokens: 8192},
	{Name: "llama3.2", Model: "llama3.2", Provider: "ollama", ContextWindow: 128000, MaxOutputTokens: 2048},
}

func defaultCatalog() []Model {
	out := make([]Model, len(DefaultModels))
	for i, m := range DefaultModels {
		m.Tier = TierDefault
		out[i] = m
	}
	return out
}
