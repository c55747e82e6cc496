package vtile

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// matchAny as a rule value accepts any value of the key
const matchAny = "*"

type compiledRule struct {
	match      []tagMatch
	layer      string
	kind       GeometryKind
	minZoom    int
	asCentroid bool
	coastline  bool
	attributes []Attribute
	copyTags   []string
	cont       bool
}

type tagMatch struct {
	key, value string
}

// RuleClassifier classifies features with the tag rules of a Config. Rules
// are tried in order; the first match wins unless it sets continue.
type RuleClassifier struct {
	rules []compiledRule
}

// NewRuleClassifier compiles the rules of cfg
func NewRuleClassifier(cfg *Config) (*RuleClassifier, error) {
	c := &RuleClassifier{rules: make([]compiledRule, 0, len(cfg.Rules))}
	for i, r := range cfg.Rules {
		cr := compiledRule{
			layer:      r.Layer,
			minZoom:    r.MinZoom,
			asCentroid: r.AsCentroid,
			coastline:  r.Coastline,
			attributes: r.Attributes,
			copyTags:   r.CopyTags,
			cont:       r.Continue,
		}
		if r.Coastline {
			cr.layer = cfg.Coastline.Layer
			cr.kind = GeomLine
		} else {
			kind, ok := ParseGeometryKind(r.Kind)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidConfig, "rule %d: unknown kind %q", i, r.Kind)
			}
			cr.kind = kind
		}

		keys := make([]string, 0, len(r.Match))
		for k := range r.Match {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cr.match = append(cr.match, tagMatch{key: k, value: r.Match[k]})
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// Classify implements Classifier
func (c *RuleClassifier) Classify(f RawFeature, zoom int) []ClassifiedFeature {
	var out []ClassifiedFeature
	for _, r := range c.rules {
		if !r.matches(f) {
			continue
		}
		out = append(out, r.classify(f))
		if !r.cont {
			break
		}
	}
	return out
}

func (r *compiledRule) matches(f RawFeature) bool {
	for _, m := range r.match {
		v, ok := f.Tag(m.key)
		if !ok || (m.value != matchAny && v != m.value) {
			return false
		}
	}
	return true
}

func (r *compiledRule) classify(f RawFeature) ClassifiedFeature {
	attrs := make([]Attribute, 0, len(r.attributes)+len(r.copyTags))
	attrs = append(attrs, r.attributes...)
	for _, key := range r.copyTags {
		if v, ok := f.Tag(key); ok {
			attrs = append(attrs, Attribute{Key: key, Value: v})
		}
	}

	kind := r.kind
	switch {
	case r.asCentroid:
		kind = GeomPoint
	case kind == GeomPolygon && !f.IsArea():
		// open ways matched by an area rule are drawn as lines
		kind = GeomLine
	}
	return ClassifiedFeature{
		Layer:      r.layer,
		Kind:       kind,
		AsCentroid: r.asCentroid,
		MinZoom:    r.minZoom,
		Coastline:  r.coastline,
		Attributes: attrs,
	}
}
