package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"YoloPipeline/internal/entity"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DefaultCredentialsFile = "config/firebase-service-account.json"
	DefaultCollection      = "predictions"

	datastoreScope = "https://www.googleapis.com/auth/datastore"
)

var (
	ErrUnavailable = errors.New("document store not initialised")
	ErrNotFound    = errors.New("document not found")
	ErrCredentials = errors.New("invalid document store credentials")
)

// IDocStore keeps full detection results as documents, newest first by created_at.
type IDocStore interface {
	Create(ctx context.Context, data map[string]any) (string, error)
	List(ctx context.Context, limit int) ([]entity.StoredOutput, error)
	Get(ctx context.Context, id string) (entity.StoredOutput, error)
	Update(ctx context.Context, id string, updates map[string]any) error
	Delete(ctx context.Context, id string) error
	Available() bool
	Close() error
}

type Config struct {
	CredentialsFile string
	ProjectID       string
	Collection      string
	EmulatorHost    string
}

func ConfigFromEnv() Config {
	cfg := Config{
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		ProjectID:       os.Getenv("FIRESTORE_PROJECT_ID"),
		Collection:      os.Getenv("FIRESTORE_COLLECTION"),
		EmulatorHost:    os.Getenv("FIRESTORE_EMULATOR_HOST"),
	}
	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = DefaultCredentialsFile
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	return cfg
}

// LoadCredentials checks that path is a regular file holding Google credentials JSON.
func LoadCredentials(ctx context.Context, path string) (*google.Credentials, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: credentials file not found at %s", ErrCredentials, path)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrCredentials, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentials, err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, datastoreScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCredentials, path, err)
	}
	return creds, nil
}

type firestoreStore struct {
	client     *firestore.Client
	collection string
	log        *logrus.Logger
	now        func() time.Time
}

// New opens a Firestore client. Callers that can run without a document store
// fall back to Unavailable() when it fails.
func New(ctx context.Context, cfg Config, log *logrus.Logger) (IDocStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	var opts []option.ClientOption
	projectID := cfg.ProjectID

	if cfg.EmulatorHost == "" {
		creds, err := LoadCredentials(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		if projectID == "" {
			projectID = creds.ProjectID
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	if projectID == "" {
		return nil, fmt.Errorf("%w: no project id configured", ErrCredentials)
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("open firestore client: %w", err)
	}

	log.WithFields(logrus.Fields{
		"project_id": projectID,
		"collection": cfg.Collection,
	}).Info("Initialised Firestore client")

	return &firestoreStore{
		client:     client,
		collection: cfg.Collection,
		log:        log,
		now:        time.Now,
	}, nil
}

func (s *firestoreStore) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *firestoreStore) Create(ctx context.Context, data map[string]any) (string, error) {
	doc := make(map[string]any, len(data)+1)
	for k, v := range data {
		doc[k] = v
	}
	if _, ok := doc["created_at"]; !ok {
		doc["created_at"] = s.now().UTC()
	}

	ref := s.col().NewDoc()
	if _, err := ref.Set(ctx, doc); err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return ref.ID, nil
}

func (s *firestoreStore) List(ctx context.Context, limit int) ([]entity.StoredOutput, error) {
	snaps, err := s.col().
		OrderBy("created_at", firestore.Desc).
		Limit(limit).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	outputs := make([]entity.StoredOutput, 0, len(snaps))
	for _, snap := range snaps {
		outputs = append(outputs, entity.StoredOutput{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return outputs, nil
}

func (s *firestoreStore) Get(ctx context.Context, id string) (entity.StoredOutput, error) {
	snap, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return entity.StoredOutput{}, ErrNotFound
		}
		return entity.StoredOutput{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return entity.StoredOutput{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (s *firestoreStore) Update(ctx context.Context, id string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	fields := make([]firestore.Update, 0, len(updates))
	for k, v := range updates {
		fields = append(fields, firestore.Update{Path: k, Value: v})
	}

	if _, err := s.col().Doc(id).Update(ctx, fields); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("update document %s: %w", id, err)
	}
	return nil
}

func (s *firestoreStore) Delete(ctx context.Context, id string) error {
	if _, err := s.col().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func (s *firestoreStore) Available() bool {
	return true
}

func (s *firestoreStore) Close() error {
	return s.client.Close()
}

type unavailableStore struct{}

// Unavailable is the store used when Firestore could not be initialised.
// Create reports ErrUnavailable, List is empty, Get finds nothing, Update and Delete do nothing.
func Unavailable() IDocStore {
	return unavailableStore{}
}

func (unavailableStore) Create(context.Context, map[string]any) (string, error) {
	return "", ErrUnavailable
}

func (unavailableStore) List(context.Context, int) ([]entity.StoredOutput, error) {
	return []entity.StoredOutput{}, nil
}

func (unavailableStore) Get(context.Context, string) (entity.StoredOutput, error) {
	return entity.StoredOutput{}, ErrNotFound
}

func (unavailableStore) Update(context.Context, string, map[string]any) error {
	return nil
}

func (unavailableStore) Delete(context.Context, string) error {
	return nil
}

func (unavailableStore) Available() bool {
	return false
}

func (unavailableStore) Close() error {
	return nil
}
