package qa

import (
	"context"
	"os"
	"path/filepath"

	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/aurora-qa/aurora/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

// LoadRegoClassifier loads Rego modules from policyDir and returns a
// ClassifyFunc that evaluates data.classify against each snippet,
// falling back to base when the policy is undefined or fails. Returns
// nil when the directory holds no .rego files.
//
// The policy input is {"text": ..., "categories": [...]} and the
// expected document is an object with optional fact_key, booking and
// confirmed fields.
func LoadRegoClassifier(ctx context.Context, policyDir string, base ClassifyFunc) (ClassifyFunc, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files")
	}
	if len(files) == 0 {
		return nil, nil
	}

	options := []func(*rego.Rego){rego.Query("data.classify")}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare classify query", goerr.V("dir", policyDir))
	}

	return func(s *model.MemorySnippet) Classification {
		input := map[string]any{
			"text":       s.Text,
			"categories": s.Categories,
		}

		rs, err := prepared.Eval(context.Background(), rego.EvalInput(input))
		if err != nil {
			logging.Default().Warn("rego classification failed, using default policy",
				"snippet", s.ID, "error", err)
			return base(s)
		}
		if len(rs) == 0 || len(rs[0].Expressions) == 0 {
			return base(s)
		}

		doc, ok := rs[0].Expressions[0].Value.(map[string]any)
		if !ok || len(doc) == 0 {
			return base(s)
		}

		var c Classification
		if v, ok := doc["fact_key"].(string); ok {
			c.FactKey = v
		}
		if v, ok := doc["booking"].(bool); ok {
			c.Booking = v
		}
		if v, ok := doc["confirmed"].(bool); ok {
			c.Confirmed = v
		}
		return c
	}, nil
}
