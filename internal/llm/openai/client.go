package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/llm"
)

// maxUnitChars bounds the slide text sent in one request.
const maxUnitChars = 6000

var _ llm.Explainer = (*Client)(nil)

// Explain implements llm.Explainer with a single, history-free chat/completions call.
func (c *Client) Explain(ctx context.Context, req llm.ExplainRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.explain.start",
		"req_id", rid,
		"job_id", req.JobID,
		"unit", req.UnitIndex,
		"model", c.cfg.Model,
		"text_len", len(req.Text),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": c.cfg.SystemPrompt},
			{"role": "system", "content": "Return ONLY JSON that matches this JSON Schema:\n" + mustJSON(c.schemaMap)},
			{"role": "user", "content": buildUserPrompt(req)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.explain.http_error",
			"req_id", rid, "job_id", req.JobID, "unit", req.UnitIndex, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		var se *llm.StatusError
		if errors.As(err, &se) {
			return "", common.TransformError(fmt.Sprintf("openai status %d", se.StatusCode), err)
		}
		return "", common.TransformError("openai request", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.explain.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return "", common.TransformError("decode openai response", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.explain.no_choices", "req_id", rid, "raw", string(raw))
		return "", common.TransformError("no choices in openai response", nil)
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := llm.ValidateJSON(c.schema, content); err != nil {
		c.log.Error("llm.explain.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.TransformError("response does not match explanation schema", err)
	}

	var out llm.ExplanationResponse
	if err := json.Unmarshal(content, &out); err != nil {
		return "", common.TransformError("unmarshal explanation", err)
	}
	text := out.Render()

	c.log.Info("llm.explain.ok",
		"req_id", rid,
		"job_id", req.JobID,
		"unit", req.UnitIndex,
		"explanation_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func buildUserPrompt(req llm.ExplainRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Slide %d", req.UnitIndex+1)
	if req.SourceName != "" {
		b.WriteString(" of ")
		b.WriteString(req.SourceName)
	}
	b.WriteString(":\n")
	b.WriteString(truncate(req.Text, maxUnitChars))
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
