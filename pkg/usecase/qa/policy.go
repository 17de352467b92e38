package qa

import (
	_ "embed"
	"slices"
	"strings"

	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed policy.yml
var defaultPolicyRaw []byte

// Classification is how the evidence aggregation treats a snippet.
// FactKey groups preference statements that override each other;
// Booking marks event-like snippets that accumulate instead.
type Classification struct {
	FactKey   string
	Booking   bool
	Confirmed bool
}

// ClassifyFunc classifies one snippet. Implementations must be pure.
type ClassifyFunc func(snippet *model.MemorySnippet) Classification

// FactKeyRule groups statements about the same personal fact. A
// snippet matches via category tags first, then via keyword substring.
type FactKeyRule struct {
	Key      string   `yaml:"key"`
	Tags     []string `yaml:"tags"`
	Keywords []string `yaml:"keywords"`
}

// BookingRule detects event-like snippets and their confirmation.
type BookingRule struct {
	Tags              []string `yaml:"tags"`
	Keywords          []string `yaml:"keywords"`
	ConfirmedTags     []string `yaml:"confirmed_tags"`
	ConfirmedKeywords []string `yaml:"confirmed_keywords"`
}

// Policy is the snippet classification config. The embedded default
// covers the common travel-service categories; deployments can load
// their own YAML or override classification entirely with Rego.
type Policy struct {
	FactKeys []FactKeyRule `yaml:"fact_keys"`
	Booking  BookingRule   `yaml:"booking"`
}

// ParsePolicy loads a classification policy from YAML.
func ParsePolicy(raw []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, goerr.Wrap(err, "failed to parse classification policy")
	}
	return &p, nil
}

// DefaultPolicy returns the embedded classification policy.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyRaw)
	if err != nil {
		panic("embedded policy.yml is broken: " + err.Error())
	}
	return p
}

// Classify implements ClassifyFunc. Booking detection runs first so
// that a booking mentioning a seat or hotel does not masquerade as a
// preference statement.
func (p *Policy) Classify(s *model.MemorySnippet) Classification {
	text := strings.ToLower(s.Text)

	if matchRule(s.Categories, text, p.Booking.Tags, p.Booking.Keywords) {
		return Classification{
			Booking:   true,
			Confirmed: matchRule(s.Categories, text, p.Booking.ConfirmedTags, p.Booking.ConfirmedKeywords),
		}
	}

	for _, rule := range p.FactKeys {
		if matchRule(s.Categories, text, rule.Tags, rule.Keywords) {
			return Classification{FactKey: rule.Key}
		}
	}

	return Classification{}
}

// CategoryTags derives the category tags to persist with a snippet at
// ingest time, so that serving-side classification can rely on tags
// instead of re-scanning text.
func (p *Policy) CategoryTags(text string) []string {
	lower := strings.ToLower(text)
	var tags []string

	if matchKeywords(lower, p.Booking.Keywords) {
		tags = appendTags(tags, p.Booking.Tags)
		if matchKeywords(lower, p.Booking.ConfirmedKeywords) {
			tags = appendTags(tags, p.Booking.ConfirmedTags)
		}
	}
	for _, rule := range p.FactKeys {
		if matchKeywords(lower, rule.Keywords) {
			tags = appendTags(tags, rule.Tags)
		}
	}

	slices.Sort(tags)
	return tags
}

func appendTags(tags, add []string) []string {
	for _, t := range add {
		if !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	return tags
}

func matchRule(categories []string, lowerText string, tags, keywords []string) bool {
	for _, tag := range tags {
		if slices.Contains(categories, tag) {
			return true
		}
	}
	return matchKeywords(lowerText, keywords)
}

func matchKeywords(lowerText string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}
