package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolContentMarshalling(t *testing.T) {
	data, err := json.Marshal(TextContent("hello"))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","text":"hello"}`, string(data))

	data, err = json.Marshal(ImageContent("aGk=", "image/png"))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"type":"image","data":"aGk=","mimeType":"image/png"}`, string(data))

	data, err = json.Marshal(ResourceContent("file:///tmp/a", "text/plain"))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"type":"resource","uri":"file:///tmp/a","mimeType":"text/plain"}`, string(data))
}

func TestToolContentUnmarshalling(t *testing.T) {
	var content ToolContent

	assert.NoError(t, json.Unmarshal([]byte(`{"type":"text","text":"hi"}`), &content))
	assert.Equal(t, ContentText, content.Kind)
	assert.Equal(t, "hi", content.Text)

	assert.NoError(t, json.Unmarshal([]byte(`{"type":"resource","uri":"s3://x"}`), &content))
	assert.Equal(t, ContentResource, content.Kind)
	assert.Equal(t, "s3://x", content.URI)

	// Unknown kinds are rejected, not silently mapped
	assert.Error(t, json.Unmarshal([]byte(`{"type":"audio"}`), &content))
}

func TestToolCallResponseOmitsErrorFlag(t *testing.T) {
	data, err := json.Marshal(ToolCallResponse{Content: []ToolContent{TextContent("ok")}})
	assert.NoError(t, err)
	assert.NotContains(t, string(data), "isError")

	flagged := true
	data, err = json.Marshal(ToolCallResponse{IsError: &flagged})
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"isError":true`)
}

func TestArgumentsMap(t *testing.T) {
	args, err := ToolCallRequest{}.ArgumentsMap()
	assert.NoError(t, err)
	assert.Empty(t, args)

	args, err = ToolCallRequest{Arguments: json.RawMessage(`{"a":1}`)}.ArgumentsMap()
	assert.NoError(t, err)
	assert.Equal(t, float64(1), args["a"])

	_, err = ToolCallRequest{Arguments: json.RawMessage(`[1,2]`)}.ArgumentsMap()
	assert.Error(t, err)
}
