package reply

import (
	"context"
	"errors"

	"github.com/ppiankov/factline/internal/llm"
)

// Exchange sends the request with the schema's format instructions appended,
// parses the reply and, when the reply is unparsable, asks once more with a
// stricter reminder. A second unparsable reply yields a persistent ParseError.
func Exchange(ctx context.Context, provider llm.Provider, req llm.Request, schema Schema) (*Reply, error) {
	base := req.Prompt + "\n\n" + schema.Instructions()

	first := req
	first.Prompt = base
	resp, err := provider.Complete(ctx, first)
	if err != nil {
		return nil, err
	}

	parsed, err := Parse(resp.Text, schema)
	if err == nil {
		return parsed, nil
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		return nil, err
	}

	retry := req
	retry.Prompt = base + "\n\n" + schema.Reminder()
	resp, err = provider.Complete(ctx, retry)
	if err != nil {
		return nil, err
	}

	parsed, err = Parse(resp.Text, schema)
	if err != nil {
		if errors.As(err, &parseErr) {
			parseErr.Persistent = true
			return nil, parseErr
		}
		return nil, err
	}
	parsed.Reprompted = true
	return parsed, nil
}
