package controls

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Choice is one selectable option of a control. On the wire it is the
// [value, label] pair the UI expects.
type Choice struct {
	Value string `json:"value" yaml:"value" toml:"value"`
	Label string `json:"label" yaml:"label" toml:"label"`
}

// MarshalJSON encodes the choice as a [value, label] pair.
func (c Choice) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{c.Value, c.labelOrValue()})
}

// UnmarshalJSON accepts a [value, label] pair, a bare value, or an object
// with value and label keys. Non-string values are formatted.
func (c *Choice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("controls: empty choice")
	}

	switch data[0] {
	case '[':
		var pair []any
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("controls: decode choice pair: %w", err)
		}
		if len(pair) == 0 || len(pair) > 2 {
			return fmt.Errorf("controls: choice pair must hold 1 or 2 items, got %d", len(pair))
		}
		c.Value = formatValue(pair[0])
		c.Label = c.Value
		if len(pair) == 2 && pair[1] != nil {
			c.Label = formatValue(pair[1])
		}
		return nil
	case '{':
		type alias Choice
		var decoded alias
		if err := json.Unmarshal(data, &decoded); err != nil {
			return fmt.Errorf("controls: decode choice object: %w", err)
		}
		*c = Choice(decoded)
		if c.Label == "" {
			c.Label = c.Value
		}
		return nil
	default:
		var value any
		if err := json.Unmarshal(data, &value); err != nil {
			return fmt.Errorf("controls: decode choice: %w", err)
		}
		c.Value = formatValue(value)
		c.Label = c.Value
		return nil
	}
}

func (c Choice) labelOrValue() string {
	if c.Label == "" {
		return c.Value
	}
	return c.Label
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		if typed == float64(int64(typed)) {
			return fmt.Sprintf("%d", int64(typed))
		}
		return fmt.Sprintf("%g", typed)
	default:
		return fmt.Sprint(typed)
	}
}

func choiceSet(choices []Choice) map[string]struct{} {
	set := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		set[choice.Value] = struct{}{}
	}
	return set
}

func cloneChoices(choices []Choice) []Choice {
	if len(choices) == 0 {
		return nil
	}
	return append([]Choice(nil), choices...)
}
