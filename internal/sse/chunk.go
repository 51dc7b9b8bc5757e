// ABOUTME: Chat-completion chunk shape decoded with an easyjson lexer (no reflection)
// ABOUTME: Distinguishes absent content (heartbeat) from structurally invalid payloads

package sse

import (
	"errors"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
)

var errErrorObject = errors.New("error object in place of a completion chunk")

// chatCompletionChunk is the subset of a streaming chunk the decoder inspects.
type chatCompletionChunk struct {
	Choices []chunkChoice
	// HasError is set when the payload carries a top-level "error" member.
	HasError bool
}

type chunkChoice struct {
	Index        int
	Delta        chunkDelta
	FinishReason string
}

type chunkDelta struct {
	Role    string
	Content string
}

// decodeContent returns choices[0].delta.content, or "" for a valid chunk without content.
func decodeContent(payload string) (string, error) {
	var c chatCompletionChunk
	if err := easyjson.Unmarshal([]byte(payload), &c); err != nil {
		return "", err
	}
	if c.HasError {
		return "", errErrorObject
	}
	if len(c.Choices) == 0 {
		return "", nil
	}
	return c.Choices[0].Delta.Content, nil
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (c *chatCompletionChunk) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "choices":
			in.Delim('[')
			c.Choices = c.Choices[:0]
			for !in.IsDelim(']') {
				var v chunkChoice
				v.UnmarshalEasyJSON(in)
				c.Choices = append(c.Choices, v)
				in.WantComma()
			}
			in.Delim(']')
		case "error":
			c.HasError = true
			in.SkipRecursive()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (c *chunkChoice) UnmarshalEasyJSON(in *jlexer.Lexer) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "index":
			c.Index = in.Int()
		case "delta":
			c.Delta.UnmarshalEasyJSON(in)
		case "finish_reason":
			c.FinishReason = in.String()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (d *chunkDelta) UnmarshalEasyJSON(in *jlexer.Lexer) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "role":
			d.Role = in.String()
		case "content":
			d.Content = in.String()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}
