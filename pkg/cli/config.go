package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/aurora-qa/aurora/pkg/adapter"
	"github.com/aurora-qa/aurora/pkg/repository"
	"github.com/aurora-qa/aurora/pkg/roster"
	"github.com/aurora-qa/aurora/pkg/usecase/qa"
	"github.com/aurora-qa/aurora/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel string

	// Repository
	project  string
	database string

	// Gemini
	geminiProject  string
	geminiLocation string
	geminiModel    string
	embeddingModel string

	// Roster
	rosterPath string

	// QA behavior
	topK          int64
	maxIterations int64
	policyDir     string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("AURORA_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "roster",
			Aliases:     []string{"r"},
			Usage:       "Roster file path (local or gs://bucket/key)",
			Value:       "roster.json",
			Sources:     cli.EnvVars("AURORA_ROSTER"),
			Destination: &cfg.rosterPath,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Generative model for the QA engine",
			Value:       adapter.DefaultGenerativeModel,
			Sources:     cli.EnvVars("AURORA_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model for memory search",
			Value:       adapter.DefaultEmbeddingModel,
			Sources:     cli.EnvVars("AURORA_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
	}
}

// qaFlags returns flags controlling the question answering loop
func qaFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Snippets to retrieve per memory search",
			Value:       repository.DefaultTopK,
			Sources:     cli.EnvVars("AURORA_TOP_K"),
			Destination: &cfg.topK,
		},
		&cli.IntFlag{
			Name:        "max-iterations",
			Usage:       "Engine decision budget per question",
			Value:       qa.DefaultMaxIterations,
			Sources:     cli.EnvVars("AURORA_MAX_ITERATIONS"),
			Destination: &cfg.maxIterations,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory with Rego policies overriding snippet classification",
			Sources:     cli.EnvVars("AURORA_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

// setupLogging installs the default logger per the log-level flag.
// Call first in every command action.
func (cfg *config) setupLogging() {
	logging.SetDefault(logging.New(cfg.logLevel, os.Stderr))
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithGenerativeModel(cfg.geminiModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel))
}

// openRosterReader opens the roster file, locally or on Cloud Storage.
func (cfg *config) openRosterReader(ctx context.Context) (io.ReadCloser, error) {
	if bucket, key, ok := adapter.ParseGSPath(cfg.rosterPath); ok {
		storage, err := adapter.NewStorage(ctx, bucket)
		if err != nil {
			return nil, err
		}
		r, err := storage.Get(ctx, key)
		if errors.Is(err, adapter.ErrObjectNotFound) {
			return nil, goerr.Wrap(roster.ErrRosterNotFound, "roster object missing; run `aurora index` first", goerr.V("path", cfg.rosterPath))
		}
		return r, err
	}

	f, err := os.Open(cfg.rosterPath)
	if os.IsNotExist(err) {
		return nil, goerr.Wrap(roster.ErrRosterNotFound, "roster file missing; run `aurora index` first", goerr.V("path", cfg.rosterPath))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open roster file", goerr.V("path", cfg.rosterPath))
	}
	return f, nil
}

// openRosterWriter opens the roster destination for writing.
func (cfg *config) openRosterWriter(ctx context.Context, path string) (io.WriteCloser, error) {
	if bucket, key, ok := adapter.ParseGSPath(path); ok {
		storage, err := adapter.NewStorage(ctx, bucket)
		if err != nil {
			return nil, err
		}
		return storage.Put(ctx, key)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create roster file", goerr.V("path", path))
	}
	return f, nil
}

// loadRoster reads the roster file into a resolution index.
func (cfg *config) loadRoster(ctx context.Context) (*roster.Index, error) {
	r, err := cfg.openRosterReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	index, err := roster.Load(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load roster", goerr.V("path", cfg.rosterPath))
	}

	logging.From(ctx).Info("roster loaded", "path", cfg.rosterPath, "members", index.Len())
	return index, nil
}

// newClassifier builds the snippet classifier: Rego policies when a
// policy directory is configured, the embedded YAML policy otherwise.
func (cfg *config) newClassifier(ctx context.Context) (qa.ClassifyFunc, error) {
	base := qa.DefaultPolicy().Classify
	if cfg.policyDir == "" {
		return base, nil
	}

	fn, err := qa.LoadRegoClassifier(ctx, cfg.policyDir, base)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return base, nil
	}

	logging.From(ctx).Info("rego classification policies loaded", "dir", cfg.policyDir)
	return fn, nil
}

// newUseCase wires the full QA use case.
func (cfg *config) newUseCase(ctx context.Context, output io.Writer) (*qa.UseCase, error) {
	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}

	index, err := cfg.loadRoster(ctx)
	if err != nil {
		return nil, err
	}

	classify, err := cfg.newClassifier(ctx)
	if err != nil {
		return nil, err
	}

	return qa.New(gemini, repo, index,
		qa.WithTopK(int(cfg.topK)),
		qa.WithMaxIterations(int(cfg.maxIterations)),
		qa.WithClassifier(classify),
		qa.WithOutput(output),
	), nil
}
