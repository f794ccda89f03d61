// Package cooldown defines the cooldown policy attached to a backend and the
// scheduling arithmetic that turns a policy into the next time a rate-limited
// backend becomes eligible again.
package cooldown

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind identifies the cooldown rule variant.
type Kind string

// Rule variants.
const (
	KindNone   Kind = ""       // absent: behaves like preset "day"
	KindPreset Kind = "preset" // calendar window: day, week, or month
	KindHours  Kind = "hours"  // fixed hour count from now
	KindDays   Kind = "days"   // fixed day count from now
)

// Preset names for KindPreset rules.
const (
	PresetDay   = "day"
	PresetWeek  = "week"
	PresetMonth = "month"
)

// Rule is a declarative cooldown policy. The zero value means "no rule
// configured" and evaluates like the day preset.
//
// Accepted document forms:
//
//	"day" | "week" | "month"
//	{"type": "preset", "preset": "week"}
//	{"type": "hours", "hours": 2}
//	{"type": "days", "days": 3}
type Rule struct {
	Kind   Kind
	Preset string
	Hours  int
	Days   int
}

// IsZero reports whether no rule was configured.
func (r Rule) IsZero() bool { return r.Kind == KindNone }

func (r Rule) String() string {
	switch r.Kind {
	case KindPreset:
		return "preset(" + r.Preset + ")"
	case KindHours:
		return fmt.Sprintf("hours(%d)", r.Hours)
	case KindDays:
		return fmt.Sprintf("days(%d)", r.Days)
	default:
		return "default"
	}
}

// ruleDoc is the object form of a rule in config documents.
type ruleDoc struct {
	Type   string `json:"type" yaml:"type"`
	Preset string `json:"preset" yaml:"preset"`
	Hours  int    `json:"hours" yaml:"hours"`
	Days   int    `json:"days" yaml:"days"`
}

func fromDoc(doc ruleDoc) Rule {
	switch strings.ToLower(strings.TrimSpace(doc.Type)) {
	case "preset":
		return Rule{Kind: KindPreset, Preset: normalizePreset(doc.Preset)}
	case "hours":
		return Rule{Kind: KindHours, Hours: doc.Hours}
	case "days":
		return Rule{Kind: KindDays, Days: doc.Days}
	case "":
		return Rule{}
	default:
		// Unrecognized types are kept as preset with an unknown name; the
		// scheduler treats that the same as the day preset.
		return Rule{Kind: KindPreset, Preset: strings.ToLower(strings.TrimSpace(doc.Type))}
	}
}

// normalizePreset lowercases and trims a preset name. Matching is exact and
// case-insensitive: day, week, month. Anything else is scheduled as day.
func normalizePreset(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// UnmarshalJSON accepts either a bare preset string or the object form.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			*r = Rule{}
			return nil
		}
		*r = Rule{Kind: KindPreset, Preset: normalizePreset(s)}
		return nil
	}
	var doc ruleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing cooldown rule: %w", err)
	}
	*r = fromDoc(doc)
	return nil
}

// MarshalJSON writes the object form, or a bare string for presets.
func (r Rule) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindNone:
		return []byte("null"), nil
	case KindPreset:
		return json.Marshal(r.Preset)
	default:
		return json.Marshal(ruleDoc{Type: string(r.Kind), Hours: r.Hours, Days: r.Days})
	}
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return fmt.Errorf("parsing cooldown rule: %w", err)
		}
		if strings.TrimSpace(s) == "" {
			*r = Rule{}
			return nil
		}
		*r = Rule{Kind: KindPreset, Preset: normalizePreset(s)}
		return nil
	}
	var doc ruleDoc
	if err := node.Decode(&doc); err != nil {
		return fmt.Errorf("parsing cooldown rule: %w", err)
	}
	*r = fromDoc(doc)
	return nil
}
