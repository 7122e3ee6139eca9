package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tearsheet-api/internal/models"
)

const firestoreCollection = "price_series"

// Firestore keeps one document per cache key. The series itself is stored as
// a JSON string so dates keep their wire format.
type Firestore struct {
	client *firestore.Client
}

type seriesDoc struct {
	Symbol    string    `firestore:"symbol"`
	Payload   string    `firestore:"payload"`
	FetchedAt time.Time `firestore:"fetched_at"`
}

func OpenFirestore(ctx context.Context, project string) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("initialize firestore: %w", err)
	}
	return &Firestore{client: client}, nil
}

// docID makes a key safe as a document id.
func docID(key string) string { return strings.ReplaceAll(key, "/", "_") }

func (f *Firestore) Name() string { return "firestore" }

func (f *Firestore) Get(ctx context.Context, key string) (*models.PriceSeries, error) {
	snap, err := f.client.Collection(firestoreCollection).Doc(docID(key)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var doc seriesDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return decode([]byte(doc.Payload))
}

func (f *Firestore) Put(ctx context.Context, key string, s *models.PriceSeries) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	_, err = f.client.Collection(firestoreCollection).Doc(docID(key)).Set(ctx, seriesDoc{
		Symbol:    s.Symbol,
		Payload:   string(b),
		FetchedAt: fetchedAt(s),
	})
	return err
}

func (f *Firestore) Purge(ctx context.Context) error {
	docs, err := f.client.Collection(firestoreCollection).Documents(ctx).GetAll()
	if err != nil {
		return err
	}
	for _, d := range docs {
		if _, err := d.Ref.Delete(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Ping reads a document that need not exist; only transport errors count.
func (f *Firestore) Ping(ctx context.Context) error {
	_, err := f.client.Collection(firestoreCollection).Doc("_ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

func (f *Firestore) Close() error { return f.client.Close() }
