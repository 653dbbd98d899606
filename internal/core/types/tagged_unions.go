package types

import "encoding/json"

// MarshalJSON renders ContentPart with a "type" discriminant matching its Kind.
func (c ContentPart) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ContentText:
		return marshalTagged("text", struct {
			Text string `json:"text"`
		}{Text: c.Text})
	case ContentThinking:
		return marshalTagged("thinking", struct {
			Text     string      `json:"text"`
			Provider *ProviderID `json:"provider,omitempty"`
		}{Text: c.ThinkingText, Provider: c.ThinkingProvider})
	case ContentToolCall:
		return marshalTagged("tool_call", struct {
			ToolCall ToolCall `json:"tool_call"`
		}{ToolCall: c.ToolCall})
	case ContentToolResult:
		return marshalTagged("tool_result", struct {
			ToolResult ToolResult `json:"tool_result"`
		}{ToolResult: c.ToolResult})
	default:
		return nil, errUnknownTag("ContentPart", string(c.Kind))
	}
}

func (c *ContentPart) UnmarshalJSON(data []byte) error {
	tag, err := readTag(data)
	if err != nil {
		return err
	}
	switch ContentPartKind(tag.Type) {
	case ContentText:
		var payload struct {
			Text string `json:"text"`
		}
		if err := unmarshalInto(data, &payload); err != nil {
			return err
		}
		*c = TextPart(payload.Text)
	case ContentThinking:
		var payload struct {
			Text     string      `json:"text"`
			Provider *ProviderID `json:"provider,omitempty"`
		}
		if err := unmarshalInto(data, &payload); err != nil {
			return err
		}
		*c = ThinkingPart(payload.Text, payload.Provider)
	case ContentToolCall:
		var payload struct {
			ToolCall ToolCall `json:"tool_call"`
		}
		if err := unmarshalInto(data, &payload); err != nil {
			return err
		}
		*c = ToolCallPart(payload.ToolCall)
	case ContentToolResult:
		var payload struct {
			ToolResult ToolResult `json:"tool_result"`
		}
		if err := unmarshalInto(data, &payload); err != nil {
			return err
		}
		*c = ToolResultPart(payload.ToolResult)
	default:
		return errUnknownTag("ContentPart", tag.Type)
	}
	return nil
}

// MarshalJSON renders ToolResultContent with a "type" discriminant.
func (t ToolResultContent) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case ToolResultText:
		return marshalTagged("text", struct {
			Text string `json:"text"`
		}{Text: t.Text})
	case ToolResultJSON:
		return marshalTagged("json", struct {
			Value any `json:"value"`
		}{Value: t.JSONValue})
	case ToolResultParts:
		return marshalTagged("parts", struct {
			Parts []ContentPart `json:"parts"`
		}{Parts: t.Parts})
	default:
		return nil, errUnknownTag("ToolResultContent", string(t.Kind))
	}
}

func (t *ToolResultContent) UnmarshalJSON(data []byte) error {
	tag, err := readTag(data)
	if err != nil {
		return err
	}
	switch ToolResultContentKind(tag.Type) {
	case ToolResultText:
		var payload struct {
			Text string `json:"text"`
		}
		if err := unmarshalInto(data, &payload); err != nil {
			return err
		}
		*t = ToolResultTextContent(payload.Text)
	case ToolResultJSON:
		var payload struct {
			Value any `json:"value"`
		}
		if err := unmarshalInto(data, &payload); err != nil {
			return err
		}
		*t = ToolResultJSONContent(payload.Value)
	case ToolResultParts:
		var payload struct {
			Parts []ContentPart `json:"parts"`
		}
		if err := unmarshalInto(data, &payload); err != nil {
			return err
		}
		*t = ToolResultPartsContent(payload.Parts)
	default:
		return errUnknownTag("ToolResultContent", tag.Type)
	}
	return nil
}

// MarshalJSON renders ToolChoice with a "type" discriminant.
func (t ToolChoice) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case ToolChoiceNone, ToolChoiceAuto, ToolChoiceRequired:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{Type: string(t.Kind)})
	case ToolChoiceSpecific:
		return json.Marshal(struct {
			Type string `json:"type"`
			Name string `json:"name"`
		}{Type: string(ToolChoiceSpecific), Name: t.Name})
	default:
		return nil, errUnknownTag("ToolChoice", string(t.Kind))
	}
}

func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	tag, err := readTag(data)
	if err != nil {
		return err
	}
	switch ToolChoiceKind(tag.Type) {
	case ToolChoiceNone, ToolChoiceAuto, ToolChoiceRequired:
		*t = ToolChoice{Kind: ToolChoiceKind(tag.Type)}
	case ToolChoiceSpecific:
		var payload struct {
			Name string `json:"name"`
		}
		if err := unmarshalInto(data, &payload); err != nil {
			return err
		}
		*t = SpecificToolChoice(payload.Name)
	default:
		return errUnknownTag("ToolChoice", tag.Type)
	}
	return nil
}

// MarshalJSON renders ResponseFormat with a "type" discriminant.
func (r ResponseFormat) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ResponseFormatText:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{Type: string(ResponseFormatText)})
	case ResponseFormatJSONObject:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{Type: string(ResponseFormatJSONObject)})
	case ResponseFormatJSONSchema:
		return json.Marshal(struct {
			Type   string `json:"type"`
			Name   string `json:"name"`
			Schema any    `json:"schema"`
		}{Type: string(ResponseFormatJSONSchema), Name: r.Name, Schema: r.Schema})
	default:
		return nil, errUnknownTag("ResponseFormat", string(r.Kind))
	}
}

func (r *ResponseFormat) UnmarshalJSON(data []byte) error {
	tag, err := readTag(data)
	if err != nil {
		return err
	}
	switch ResponseFormatKind(tag.Type) {
	case ResponseFormatText, ResponseFormatJSONObject:
		*r = ResponseFormat{Kind: ResponseFormatKind(tag.Type)}
	case ResponseFormatJSONSchema:
		var payload struct {
			Name   string `json:"name"`
			Schema any    `json:"schema"`
		}
		if err := unmarshalInto(data, &payload); err != nil {
			return err
		}
		*r = ResponseFormat{Kind: ResponseFormatJSONSchema, Name: payload.Name, Schema: payload.Schema}
	default:
		return errUnknownTag("ResponseFormat", tag.Type)
	}
	return nil
}
