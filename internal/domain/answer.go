package domain

import (
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Answer is the accepted answer of a question: either one value or a set of
// accepted synonyms. It encodes as a JSON string or a JSON array respectively.
type Answer struct {
	values []string
	set    bool
}

func SingleAnswer(value string) Answer {
	return Answer{values: []string{value}}
}

func AnswerSet(values ...string) Answer {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return Answer{values: out, set: true}
}

// IsSet reports whether the answer was authored as a set of accepted values.
func (a Answer) IsSet() bool { return a.set }

// Single returns the scalar value; for a set it returns the first member.
func (a Answer) Single() string {
	if len(a.values) == 0 {
		return ""
	}
	return a.values[0]
}

// Values returns every accepted value.
func (a Answer) Values() []string { return slices.Clone(a.values) }

func (a Answer) IsZero() bool { return len(a.values) == 0 }

func (a Answer) Equal(b Answer) bool {
	return a.set == b.set && slices.Equal(a.values, b.values)
}

func (a Answer) String() string {
	if a.set {
		return fmt.Sprintf("%q", a.values)
	}
	return a.Single()
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.set {
		if a.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.values)
	}
	return json.Marshal(a.Single())
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = SingleAnswer(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("answer must be a string or an array of strings: %w", err)
	}
	*a = AnswerSet(many...)
	return nil
}

func (a *Answer) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*a = SingleAnswer(node.Value)
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*a = AnswerSet(many...)
		return nil
	}
	return fmt.Errorf("line %d: answer must be a string or a list of strings", node.Line)
}
