package llm

// BuildExplanationJSONSchema returns the response contract as a JSON-Schema map.
// We pass this to the model as an output constraint and also use it locally to validate.
func BuildExplanationJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"explanation": map[string]any{"type": "string", "minLength": 1},
			"examples": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"explanation"},
	}
}
