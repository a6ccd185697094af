package tags

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SystemTagPrefix              string = "knit#"
	KeyKnitId                    string = SystemTagPrefix + "id"
	KeyKnitTimestamp             string = SystemTagPrefix + "timestamp"
	KeyKnitTransient             string = SystemTagPrefix + "transient"
	ValueKnitTransientFailed     string = "failed"
	ValueKnitTransientProcessing string = "processing"
)

// Tag is a key-value pair put on Data.
//
// In text form, it is "KEY:VALUE". The first colon separates key from value.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (t Tag) String() string {
	return t.Key + ":" + t.Value
}

// Equal tells a and b are same Tag.
//
// knit#timestamp values are compared as time, not as text.
func (a Tag) Equal(b Tag) bool {
	if a.Key != b.Key {
		return false
	}
	if a.Key != KeyKnitTimestamp {
		return a.Value == b.Value
	}

	vA, errA := time.Parse(time.RFC3339Nano, a.Value)
	vB, errB := time.Parse(time.RFC3339Nano, b.Value)
	return errA == nil && errB == nil && vA.Equal(vB)
}

// parse string value as Tag
//
// # Args
//
// - string: "KEY:VALUE" formatted string. If not, it returns error.
func (t *Tag) Parse(s string) error {
	k, v, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("tag parse error: %s :no key", s)
	}

	k = strings.TrimSpace(k)
	v = strings.TrimSpace(v)

	switch k {
	case KeyKnitTimestamp:
		if _, err := time.Parse(time.RFC3339Nano, v); err != nil {
			return fmt.Errorf("tag parse error: %s is not timestamp", s)
		}
	case KeyKnitTransient:
		switch v {
		case ValueKnitTransientProcessing, ValueKnitTransientFailed:
			// pass
		default:
			return fmt.Errorf(
				`tag parse error: "%s" should be one of "%s" or "%s"`,
				KeyKnitTransient, ValueKnitTransientProcessing, ValueKnitTransientFailed,
			)
		}
	}
	t.Key = k
	t.Value = v
	return nil
}

// Set implements flag.Value.
func (t *Tag) Set(s string) error {
	return t.Parse(s)
}

// UserTag is a Tag which is not a system tag (key is not started with "knit#").
type UserTag Tag

func (t Tag) AsUserTag(ut *UserTag) bool {
	if strings.HasPrefix(t.Key, SystemTagPrefix) {
		return false
	}
	*ut = UserTag(t)
	return true
}

// parse string value as UserTag
//
// If KEY part is started with "knit#", it returns error.
func (ut *UserTag) Parse(s string) error {
	t := &Tag{}
	if err := t.Parse(s); err != nil {
		return err
	}
	if !t.AsUserTag(ut) {
		return fmt.Errorf(`tag key "%s..." is reserved for system tags`, SystemTagPrefix)
	}
	return nil
}

func (ut UserTag) String() string {
	return Tag(ut).String()
}

func (u UserTag) Equal(o UserTag) bool {
	return Tag(u).Equal(Tag(o))
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	{
		s := new(string)
		if err := json.Unmarshal(data, s); err == nil {
			return t.Parse(*s)
		}
	}

	var dat map[string]any
	if err := json.Unmarshal(data, &dat); err != nil {
		return errors.New(`failed to parse Tag`)
	}
	return t.unmarshal(dat)
}

func (t *Tag) UnmarshalYAML(n *yaml.Node) error {
	{
		s := new(string)
		if err := n.Decode(s); err == nil {
			return t.Parse(*s)
		}
	}

	var dat map[string]any
	if err := n.Decode(&dat); err != nil {
		return errors.New(`failed to parse Tag`)
	}
	return t.unmarshal(dat)
}

func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t Tag) MarshalYAML() (any, error) {
	return yaml.Node{
		Kind:  yaml.ScalarNode,
		Value: t.String(),
		Style: yaml.DoubleQuotedStyle,
	}, nil
}

func (ut *UserTag) UnmarshalJSON(data []byte) error {
	t := &Tag{}
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	if !t.AsUserTag(ut) {
		return fmt.Errorf(`tag key "%s..." is reserved for system tags`, SystemTagPrefix)
	}
	return nil
}

func (ut UserTag) MarshalJSON() ([]byte, error) {
	return Tag(ut).MarshalJSON()
}

func (t *Tag) unmarshal(dat map[string]any) error {
	if dat == nil {
		return errors.New("tag is nil")
	}

	key, err := stringField(dat, "key")
	if err != nil {
		return err
	}
	value, err := stringField(dat, "value")
	if err != nil {
		return err
	}
	t.Key = key
	t.Value = value
	return nil
}

func stringField(dat map[string]any, name string) (string, error) {
	v, ok := dat[name]
	if !ok {
		return "", fmt.Errorf(`field "%s" is missing`, name)
	}
	if v == nil {
		return "", fmt.Errorf(`field "%s"'s value is missing`, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf(`field "%s"'s value is invalid`, name)
	}
	return s, nil
}

// Change is a request body to update Tags of a Data.
type Change struct {
	AddTags    []UserTag `json:"add"`
	RemoveTags []UserTag `json:"remove"`
}
