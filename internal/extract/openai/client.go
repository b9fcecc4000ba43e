package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/auctions-etl/internal/common"
	"github.com/joseph-ayodele/auctions-etl/internal/extract"
)

// ExtractFields implements extract.FieldExtractor using text-only
// chat/completions. Errors are classified so the worker's retry policy can
// tell transient failures (rate limit, timeout) from permanent ones.
func (c *Client) ExtractFields(ctx context.Context, req extract.ExtractRequest) (extract.AuctionFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"doc_id", req.DocID,
		"listing_index", req.ListingIndex,
		"text_len", len(req.ListingText),
	)

	schema := extract.BuildAuctionJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt()},
			{"role": "user", "content": buildUserPrompt(req.ListingText) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.AuctionFields{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.AuctionFields{}, raw, common.NewAppError("LLM_MALFORMED", "decode openai response", common.ErrExtraction)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices", "req_id", rid, "raw", string(raw))
		return extract.AuctionFields{}, raw, common.NewAppError("LLM_MALFORMED", "no choices in openai response", common.ErrExtraction)
	}

	rawContent := []byte(stripCodeFence(cc.Choices[0].Message.Content))

	// Validate strictly first.
	if err := extract.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		if !c.cfg.LenientOptional {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return extract.AuctionFields{}, rawContent, common.NewAppError("LLM_SCHEMA", "schema validation failed", common.ErrValidation)
		}
		// Try a lenient sanitize: drop/normalize optional offenders and re-validate.
		cleaned, droppedFields, sErr := extract.SanitizeOptionalFields(rawContent)
		if sErr != nil {
			c.log.Error("llm.extract.sanitize_failed", "req_id", rid, "error", sErr)
			return extract.AuctionFields{}, rawContent, common.NewAppError("LLM_MALFORMED", "sanitize failed", common.ErrExtraction)
		}
		if vErr := extract.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return extract.AuctionFields{}, rawContent, common.NewAppError("LLM_SCHEMA", "schema validation failed", common.ErrValidation)
		}
		c.log.Warn("llm.extract.lenient_sanitize_applied",
			"req_id", rid, "dropped", droppedFields,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		rawContent = cleaned
	}

	var out extract.AuctionFields
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.log.Error("llm.extract.unmarshal_failed", "req_id", rid, "error", err)
		return extract.AuctionFields{}, rawContent, common.NewAppError("LLM_MALFORMED", "unmarshal fields", common.ErrExtraction)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"case_number", out.CaseNumber,
		"auction_date", out.AuctionDate,
		"sheriff_office", out.SheriffOffice,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, common.NewAppError("LLM_TIMEOUT", "openai request timed out", common.ErrTimeout)
		}
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, common.NewAppError("LLM_RATE_LIMITED", "openai rate limit", common.ErrRateLimited)
	case resp.StatusCode == http.StatusGatewayTimeout:
		return nil, common.NewAppError("LLM_TIMEOUT", "openai gateway timeout", common.ErrTimeout)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// stripCodeFence removes a surrounding markdown code block if the model
// ignored the no-markdown instruction.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
