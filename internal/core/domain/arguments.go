package domain

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// Argument is one element of a structured argument list: a literal or a rule-gated value.
type Argument struct {
	Values []string
	Rules  []CompatibilityRule
	// list records that Values was encoded as a JSON array.
	list bool
}

// StringArgument returns a literal argument.
func StringArgument(s string) Argument {
	return Argument{Values: []string{s}}
}

// IsLiteral reports whether the argument is a plain string with no rules.
func (a Argument) IsLiteral() bool {
	return len(a.Rules) == 0 && !a.list && len(a.Values) == 1
}

// Resolve returns the tokens contributed on p.
func (a Argument) Resolve(p Platform) []string {
	if !RulesAllow(a.Rules, p) {
		return nil
	}
	return slices.Clone(a.Values)
}

type argumentJSON struct {
	Rules []CompatibilityRule `json:"rules,omitempty"`
	Value json.RawMessage     `json:"value"`
}

// UnmarshalJSON accepts a string or {rules, value} where value is a string or array.
func (a *Argument) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = StringArgument(s)
		return nil
	}

	var raw argumentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Argument{Rules: raw.Rules}
	value := bytes.TrimSpace(raw.Value)
	switch {
	case len(value) == 0:
	case value[0] == '[':
		if err := json.Unmarshal(value, &out.Values); err != nil {
			return err
		}
		out.list = true
	default:
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return err
		}
		out.Values = []string{s}
	}
	*a = out
	return nil
}

// MarshalJSON emits the same shape that was decoded.
func (a Argument) MarshalJSON() ([]byte, error) {
	if a.IsLiteral() {
		return json.Marshal(a.Values[0])
	}
	var value any = a.Values
	if !a.list && len(a.Values) == 1 {
		value = a.Values[0]
	}
	return json.Marshal(struct {
		Rules []CompatibilityRule `json:"rules,omitempty"`
		Value any                 `json:"value"`
	}{a.Rules, value})
}

// Arguments holds the structured game and JVM argument lists.
type Arguments struct {
	Game []Argument `json:"game,omitempty"`
	JVM  []Argument `json:"jvm,omitempty"`
}

// IsZero reports whether both lists are empty.
func (a *Arguments) IsZero() bool {
	return a == nil || (len(a.Game) == 0 && len(a.JVM) == 0)
}

// MergeArguments appends child lists after parent lists.
func MergeArguments(parent, child *Arguments) *Arguments {
	if parent == nil {
		return child
	}
	if child == nil {
		return parent
	}
	return &Arguments{
		Game: append(slices.Clone(parent.Game), child.Game...),
		JVM:  append(slices.Clone(parent.JVM), child.JVM...),
	}
}

// Tokenize splits a legacy argument string on whitespace. Double or single quotes group a token;
// the quotes are kept so JoinArguments restores the original text.
func Tokenize(s string) []string {
	var (
		tokens []string
		cur    strings.Builder
		quote  rune
		inTok  bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			inTok = true
			cur.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inTok {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inTok = false
			}
		default:
			inTok = true
			cur.WriteRune(r)
		}
	}
	if inTok {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// JoinArguments reassembles tokens produced by Tokenize with single spaces.
func JoinArguments(tokens []string) string {
	return strings.Join(tokens, " ")
}
