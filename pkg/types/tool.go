package types

import (
	"encoding/json"
	"fmt"
)

/*
ToolDefinition describes a single tool advertised by a backend endpoint.
The input schema is kept as raw JSON so it can be passed through to
callers without reinterpretation.
*/
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

/*
ToolCallRequest is the uniform invocation shape accepted by the gateway,
regardless of whether the backend is a local subprocess or a remote
service.
*/
type ToolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ArgumentsMap decodes the request arguments into a generic map. A missing
// or null arguments field decodes to an empty map.
func (req ToolCallRequest) ArgumentsMap() (map[string]any, error) {
	if len(req.Arguments) == 0 {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, err
	}
	return args, nil
}

/*
ToolCallResponse carries the ordered content items produced by a tool
invocation. IsError mirrors the backend's error flag and is omitted when
the backend did not set one.
*/
type ToolCallResponse struct {
	Content []ToolContent `json:"content"`
	IsError *bool         `json:"isError,omitempty"`
}

type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentImage    ContentKind = "image"
	ContentResource ContentKind = "resource"
)

/*
ToolContent is the three-way content union returned from tool calls. Both
text and blob resource payloads collapse into the resource variant; binary
resource bodies are treated as opaque references, only the URI and mime
type survive.
*/
type ToolContent struct {
	Kind     ContentKind
	Text     string
	Data     string
	URI      string
	MimeType string
}

func TextContent(text string) ToolContent {
	return ToolContent{Kind: ContentText, Text: text}
}

func ImageContent(data, mimeType string) ToolContent {
	return ToolContent{Kind: ContentImage, Data: data, MimeType: mimeType}
}

func ResourceContent(uri, mimeType string) ToolContent {
	return ToolContent{Kind: ContentResource, URI: uri, MimeType: mimeType}
}

type textContentJSON struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imageContentJSON struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type resourceContentJSON struct {
	Type     string `json:"type"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
}

func (c ToolContent) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ContentText:
		return json.Marshal(textContentJSON{Type: "text", Text: c.Text})
	case ContentImage:
		return json.Marshal(imageContentJSON{Type: "image", Data: c.Data, MimeType: c.MimeType})
	case ContentResource:
		return json.Marshal(resourceContentJSON{Type: "resource", URI: c.URI, MimeType: c.MimeType})
	}
	return nil, fmt.Errorf("unknown content kind: %q", c.Kind)
}

func (c *ToolContent) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Data     string `json:"data"`
		URI      string `json:"uri"`
		MimeType string `json:"mimeType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch ContentKind(probe.Type) {
	case ContentText:
		*c = TextContent(probe.Text)
	case ContentImage:
		*c = ImageContent(probe.Data, probe.MimeType)
	case ContentResource:
		*c = ResourceContent(probe.URI, probe.MimeType)
	default:
		return fmt.Errorf("unknown content kind: %q", probe.Type)
	}
	return nil
}
