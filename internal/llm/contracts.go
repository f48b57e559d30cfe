package llm

import "context"

// ExplainRequest carries one content unit. Each request is independent: no history is
// shared between units or jobs.
type ExplainRequest struct {
	JobID      string
	UnitIndex  int
	SourceName string
	Text       string
}

// ExplanationResponse is the JSON object the model must return.
type ExplanationResponse struct {
	Explanation string   `json:"explanation"`
	Examples    []string `json:"examples,omitempty"`
}

// Render flattens the response into the single line stored in the artifact.
func (r ExplanationResponse) Render() string {
	out := CleanText(r.Explanation)
	if len(r.Examples) > 0 {
		ex := make([]string, 0, len(r.Examples))
		for _, e := range r.Examples {
			if s := CleanText(e); s != "" {
				ex = append(ex, s)
			}
		}
		if len(ex) > 0 {
			out += " Examples: " + joinSemicolon(ex)
		}
	}
	return out
}

// Explainer is the interface the transformer depends on.
type Explainer interface {
	Explain(ctx context.Context, req ExplainRequest) (string, error)
}
