package compose

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Style is the visual record resolved for one feature. An empty DashArray
// means a solid line.
type Style struct {
	FillOpacity float64 `json:"fill_opacity" yaml:"fill_opacity"`
	DashArray   string  `json:"dash_array,omitempty" yaml:"dash_array"`
	Weight      int     `json:"weight" yaml:"weight"`
}

// Solid reports whether the style draws a solid outline.
func (s Style) Solid() bool { return s.DashArray == "" }

// StyleResolutionError reports a discriminant value outside a closed rule
// table. It indicates the rule tables are stale relative to the data and must
// be fixed at the source, never papered over with a default style.
type StyleResolutionError struct {
	Table string
	Value string
}

func (e *StyleResolutionError) Error() string {
	return fmt.Sprintf("style: no rule for value %q in table %q", e.Value, e.Table)
}

// IsStyleResolution reports whether any error in the chain is a StyleResolutionError.
func IsStyleResolution(err error) bool {
	var sre *StyleResolutionError
	return errors.As(err, &sre)
}

// RuleTable maps discriminant values to styles. The key set is closed: every
// value observed in the data must resolve, and resolution of an unknown value
// fails rather than defaulting.
type RuleTable struct {
	name  string
	rules map[string]Style
}

// NewRuleTable builds a rule table from a fixed rule set.
func NewRuleTable(name string, rules map[string]Style) RuleTable {
	copied := make(map[string]Style, len(rules))
	for k, v := range rules {
		copied[k] = v
	}
	return RuleTable{name: name, rules: copied}
}

// Name returns the table name used in error reporting and legends.
func (t RuleTable) Name() string { return t.name }

// Resolve returns the style for a discriminant value. Deterministic; fails
// with a StyleResolutionError for values outside the table.
func (t RuleTable) Resolve(value string) (Style, error) {
	s, ok := t.rules[value]
	if !ok {
		return Style{}, &StyleResolutionError{Table: t.name, Value: value}
	}
	return s, nil
}

// ResolveInt resolves an integer discriminant such as buffer_km.
func (t RuleTable) ResolveInt(value int) (Style, error) {
	return t.Resolve(strconv.Itoa(value))
}

// Keys returns the table's discriminant values in sorted order. Numeric keys
// sort numerically.
func (t RuleTable) Keys() []string {
	keys := make([]string, 0, len(t.rules))
	for k := range t.rules {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// BufferRules returns the closed rule table keyed by buffer_km. Opacity
// strictly decreases with radius so smaller, higher-confidence ranges stay
// visible on top of larger ones; only the 20 km ring is solid.
func BufferRules() RuleTable {
	return NewRuleTable("buffer_km", map[string]Style{
		"20": {FillOpacity: 0.4, DashArray: "", Weight: 2},
		"25": {FillOpacity: 0.3, DashArray: "5,5", Weight: 2},
		"40": {FillOpacity: 0.2, DashArray: "10,10", Weight: 2},
		"60": {FillOpacity: 0.1, DashArray: "2,8", Weight: 2},
	})
}

// ClusterRules returns the closed rule table keyed by cluster_type. Main
// clusters are solid and opaque; replacements dashed and faint.
func ClusterRules() RuleTable {
	return NewRuleTable("cluster_type", map[string]Style{
		"main":        {FillOpacity: 0.7, DashArray: "", Weight: 2},
		"replacement": {FillOpacity: 0.3, DashArray: "5, 5", Weight: 1},
	})
}

// WithOverrides returns a copy of the table with styles replaced from a YAML
// document of the form {value: {fill_opacity, dash_array, weight}}. The key
// set stays closed: an override for a value not already in the table is an
// error, since it would silently widen the visual contract.
func (t RuleTable) WithOverrides(r io.Reader) (RuleTable, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return RuleTable{}, eris.Wrapf(err, "style: read overrides for table %q", t.name)
	}

	var overrides map[string]Style
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return RuleTable{}, eris.Wrapf(err, "style: parse overrides for table %q", t.name)
	}

	out := NewRuleTable(t.name, t.rules)
	for k, v := range overrides {
		if _, ok := out.rules[k]; !ok {
			return RuleTable{}, eris.Errorf("style: override key %q not in closed table %q", k, t.name)
		}
		out.rules[k] = v
	}
	return out, nil
}
