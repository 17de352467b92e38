package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionSnippets = "snippets"
	distanceField      = "vector_distance"
)

// Firestore implements Repository on Cloud Firestore with vector
// search. Snippets live in one collection; member scoping is a
// server-side equality filter combined with the nearest-neighbor
// query.
type Firestore struct {
	client *firestore.Client
}

// New creates a Firestore repository client.
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}
	return &Firestore{client: client}, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

// snippetDoc is the persisted form of a memory snippet. Score, rank
// and status are search-time values and never stored.
type snippetDoc struct {
	MemberID   string             `firestore:"member_id"`
	MemberName string             `firestore:"member_name,omitempty"`
	MessageID  string             `firestore:"message_id,omitempty"`
	Text       string             `firestore:"text"`
	Timestamp  time.Time          `firestore:"timestamp"`
	Categories []string           `firestore:"categories,omitempty"`
	Embedding  firestore.Vector32 `firestore:"embedding"`
}

func (r *Firestore) PutSnippet(ctx context.Context, snippet *model.MemorySnippet) error {
	if snippet.ID == "" {
		return goerr.New("snippet ID is empty")
	}
	if len(snippet.Embedding) == 0 {
		return goerr.New("snippet embedding is empty", goerr.V("id", snippet.ID))
	}

	doc := snippetDoc{
		MemberID:   string(snippet.MemberID),
		MemberName: snippet.MemberName,
		MessageID:  snippet.MessageID,
		Text:       snippet.Text,
		Timestamp:  snippet.Timestamp,
		Categories: snippet.Categories,
		Embedding:  snippet.Embedding,
	}

	_, err := r.client.Collection(collectionSnippets).Doc(string(snippet.ID)).Set(ctx, doc)
	if err != nil {
		return goerr.Wrap(err, "failed to put snippet", goerr.V("id", snippet.ID))
	}
	return nil
}

func (r *Firestore) SearchSnippets(ctx context.Context, memberID model.MemberID, embedding []float32, limit int) ([]*model.MemorySnippet, error) {
	if memberID == "" {
		return nil, goerr.New("member ID is empty")
	}
	limit = ClampTopK(limit)

	query := r.client.Collection(collectionSnippets).
		Where("member_id", "==", string(memberID)).
		FindNearest("embedding", firestore.Vector32(embedding), limit,
			firestore.DistanceMeasureCosine,
			&firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := query.Documents(ctx)
	defer iter.Stop()

	var results []*model.MemorySnippet
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapSearchErr(err)
		}

		var rec snippetDoc
		if err := doc.DataTo(&rec); err != nil {
			return nil, goerr.Wrap(err, "failed to decode snippet", goerr.V("doc", doc.Ref.ID))
		}

		snippet := &model.MemorySnippet{
			ID:         model.SnippetID(doc.Ref.ID),
			MemberID:   model.MemberID(rec.MemberID),
			MemberName: rec.MemberName,
			MessageID:  rec.MessageID,
			Text:       rec.Text,
			Timestamp:  rec.Timestamp,
			Categories: rec.Categories,
			SourceRank: len(results),
		}
		// Cosine distance is 0 for identical vectors; invert to a
		// relevance score so larger means closer.
		if d, ok := doc.Data()[distanceField].(float64); ok {
			snippet.Score = 1.0 - d
		}
		results = append(results, snippet)
	}

	return results, nil
}

// wrapSearchErr classifies transient gRPC failures as retryable.
func wrapSearchErr(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
		return goerr.Wrap(ErrRetrievalUnavailable, "firestore query failed", goerr.V("cause", err.Error()))
	default:
		return goerr.Wrap(err, "failed to search snippets")
	}
}
