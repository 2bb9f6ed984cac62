package directory

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/janisto/identity-gateway/internal/platform/logging"
)

const usersCollection = "users"

type firestoreRecord struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
}

// FirestoreStore implements Service on the "users" collection.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// Upsert overwrites users/{id}. Writing the same record twice is harmless,
// which is what makes retries safe.
func (s *FirestoreStore) Upsert(ctx context.Context, id string, rec Record) error {
	_, err := s.client.Collection(usersCollection).Doc(id).Set(ctx, firestoreRecord(rec))
	if err != nil {
		logging.LogAudit(ctx, logging.AuditEvent{
			Action: "upsert", Actor: id, Resource: "profile", ResourceID: id,
			Result:  logging.AuditFailure,
			Details: map[string]any{"error": grpcCategory(err)},
		})
		return fmt.Errorf("%w: upsert %s: %w", ErrStorage, id, err)
	}
	logging.LogAudit(ctx, logging.AuditEvent{
		Action: "upsert", Actor: id, Resource: "profile", ResourceID: id, Result: logging.AuditSuccess,
	})
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*Profile, error) {
	doc, err := s.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %s: %w", ErrStorage, id, err)
	}
	p, err := toProfile(doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every profile, or those whose name equals filter.Name
// exactly. An empty result is ErrNotFound.
func (s *FirestoreStore) List(ctx context.Context, filter Filter) ([]Profile, error) {
	q := s.client.Collection(usersCollection).Query
	if filter.Name != "" {
		q = q.Where("name", "==", filter.Name)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var profiles []Profile
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: list: %w", ErrStorage, err)
		}
		p, err := toProfile(doc)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if len(profiles) == 0 {
		return nil, ErrNotFound
	}
	return profiles, nil
}

func toProfile(doc *firestore.DocumentSnapshot) (Profile, error) {
	var rec firestoreRecord
	if err := doc.DataTo(&rec); err != nil {
		return Profile{}, fmt.Errorf("%w: decode %s: %w", ErrStorage, doc.Ref.ID, err)
	}
	return Profile{ID: doc.Ref.ID, Name: rec.Name, Email: rec.Email}, nil
}

// grpcCategory is an audit-safe label for a Firestore failure.
func grpcCategory(err error) string {
	switch status.Code(err) {
	case codes.DeadlineExceeded, codes.Canceled:
		return "timeout"
	case codes.Unavailable:
		return "unavailable"
	case codes.PermissionDenied, codes.Unauthenticated:
		return "permission_denied"
	default:
		return "internal_error"
	}
}

var _ Service = (*FirestoreStore)(nil)
