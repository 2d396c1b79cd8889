package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/internal/util"
)

const schemaInstruction = "Respond only with a JSON value that conforms to this JSON schema. " +
	"Do not wrap it in prose or code fences.\n\nSchema:\n"

// GenerateStructured asks m for a reply conforming to the schema of out and
// decodes it into out. When req.Schema is nil the schema is reflected from
// out. If the reply is not clean JSON, the largest embedded JSON fragment is
// salvaged; when nothing decodes the error wraps core.ErrParse.
func GenerateStructured(ctx context.Context, m Model, req Request, out any) (*Response, error) {
	if req.Schema == nil {
		req.Schema = util.SchemaFor(out)
	}
	raw, err := json.MarshalIndent(req.Schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	instruction := schemaInstruction + string(raw)
	if req.System != "" {
		req.System = req.System + "\n\n" + instruction
	} else {
		req.System = instruction
	}

	resp, err := m.Generate(ctx, req)
	if err != nil {
		if !errors.Is(err, core.ErrMalformedOutput) || resp == nil {
			return nil, err
		}
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", core.ErrParse)
	}
	if err := DecodeJSON(resp.Text, out); err != nil {
		return resp, err
	}
	return resp, nil
}

// DecodeJSON decodes text into out, falling back to the largest valid JSON
// fragment embedded in text.
func DecodeJSON(text string, out any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), out); err == nil {
			return nil
		}
	}
	fragment := util.ExtractJSON(text)
	if fragment == "" {
		return fmt.Errorf("%w: %w: no JSON found in model output", core.ErrParse, core.ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(fragment), out); err != nil {
		return fmt.Errorf("%w: %w: %v", core.ErrParse, core.ErrMalformedOutput, err)
	}
	return nil
}
