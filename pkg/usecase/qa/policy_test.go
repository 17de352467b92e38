package qa_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/aurora-qa/aurora/pkg/usecase/qa"
	"github.com/m-mizutani/gt"
)

func TestDefaultPolicyClassify(t *testing.T) {
	policy := qa.DefaultPolicy()

	tests := []struct {
		name     string
		snippet  *model.MemorySnippet
		expected qa.Classification
	}{
		{
			name:     "seat preference by keyword",
			snippet:  &model.MemorySnippet{Text: "I always want the window seat"},
			expected: qa.Classification{FactKey: "seat_preference"},
		},
		{
			name:     "dietary preference",
			snippet:  &model.MemorySnippet{Text: "I'm allergic to peanuts"},
			expected: qa.Classification{FactKey: "dietary_preference"},
		},
		{
			name:     "classification by category tag",
			snippet:  &model.MemorySnippet{Text: "something opaque", Categories: []string{"seat_preference"}},
			expected: qa.Classification{FactKey: "seat_preference"},
		},
		{
			name:     "booking intent",
			snippet:  &model.MemorySnippet{Text: "please reserve a table at Noma"},
			expected: qa.Classification{Booking: true},
		},
		{
			name:     "booking confirmed",
			snippet:  &model.MemorySnippet{Text: "booked, confirmation number ABC123"},
			expected: qa.Classification{Booking: true, Confirmed: true},
		},
		{
			name:     "booking wins over preference wording",
			snippet:  &model.MemorySnippet{Text: "booked an aisle seat on the Tokyo flight"},
			expected: qa.Classification{Booking: true},
		},
		{
			name:     "unclassified",
			snippet:  &model.MemorySnippet{Text: "asked about the weather"},
			expected: qa.Classification{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gt.V(t, policy.Classify(tc.snippet)).Equal(tc.expected)
		})
	}
}

func TestCategoryTags(t *testing.T) {
	policy := qa.DefaultPolicy()

	tags := policy.CategoryTags("I'd like to book a flight to Osaka, window seat if possible")
	gt.A(t, tags).Has("booking").Has("seat_preference")

	gt.A(t, policy.CategoryTags("hello there")).Length(0)

	tags = policy.CategoryTags("your booking is confirmed")
	gt.A(t, tags).Has("booking").Has("booking_confirmed")
}

func TestParsePolicy(t *testing.T) {
	p := gt.R1(qa.ParsePolicy([]byte("fact_keys:\n  - key: color\n    keywords: [\"favorite color\"]\n"))).NoError(t)
	gt.V(t, p.Classify(&model.MemorySnippet{Text: "my favorite color is green"})).
		Equal(qa.Classification{FactKey: "color"})

	gt.R1(qa.ParsePolicy([]byte("fact_keys: {broken"))).Error(t)
}

func TestLoadRegoClassifier(t *testing.T) {
	base := qa.DefaultPolicy().Classify
	ctx := context.Background()

	t.Run("empty dir returns nil", func(t *testing.T) {
		fn := gt.R1(qa.LoadRegoClassifier(ctx, t.TempDir(), base)).NoError(t)
		gt.V(t, fn == nil).Equal(true)
	})

	t.Run("policy overrides classification", func(t *testing.T) {
		dir := t.TempDir()
		policy := `package classify

fact_key := "nickname" if {
	contains(lower(input.text), "call me")
}

booking := true if {
	contains(lower(input.text), "charter")
}
`
		gt.NoError(t, os.WriteFile(filepath.Join(dir, "classify.rego"), []byte(policy), 0o600))

		fn := gt.R1(qa.LoadRegoClassifier(ctx, dir, base)).NoError(t)
		gt.V(t, fn != nil).Equal(true)

		c := fn(&model.MemorySnippet{Text: "Please call me Max"})
		gt.V(t, c.FactKey).Equal("nickname")

		c = fn(&model.MemorySnippet{Text: "charter a yacht in Split"})
		gt.V(t, c.Booking).Equal(true)

		// Undefined in Rego falls back to the YAML policy.
		c = fn(&model.MemorySnippet{Text: "I prefer the aisle seat"})
		gt.V(t, c.FactKey).Equal("seat_preference")
	})

	t.Run("broken policy is rejected", func(t *testing.T) {
		dir := t.TempDir()
		gt.NoError(t, os.WriteFile(filepath.Join(dir, "broken.rego"), []byte("not rego at all {"), 0o600))
		gt.R1(qa.LoadRegoClassifier(ctx, dir, base)).Error(t)
	})
}
