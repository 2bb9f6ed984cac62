// Package firebase builds the Admin SDK clients the server shares between the
// identity provider client, the token verifier and the profile directory.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Config selects the Firebase project and credentials.
type Config struct {
	ProjectID string
	// CredentialsFile is a service account JSON path. Empty uses Application
	// Default Credentials, or no credentials when talking to the emulators.
	CredentialsFile string
	// Emulated is true when FIREBASE_AUTH_EMULATOR_HOST points at a local
	// emulator.
	Emulated bool
}

// Clients are created once at startup and passed explicitly to every component.
type Clients struct {
	Auth      *auth.Client
	Firestore *firestore.Client
}

// New initializes the Firebase app and its Auth and Firestore clients.
func New(ctx context.Context, cfg Config) (*Clients, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	ac, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}
	fc, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore: %w", err)
	}
	return &Clients{Auth: ac, Firestore: fc}, nil
}

func clientOptions(cfg Config) ([]option.ClientOption, error) {
	switch {
	case cfg.CredentialsFile != "":
		creds, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		return []option.ClientOption{option.WithCredentialsJSON(creds)}, nil
	case cfg.Emulated:
		return []option.ClientOption{option.WithoutAuthentication()}, nil
	default:
		return nil, nil
	}
}

// Close releases the Firestore connection. Auth holds no resources.
func (c *Clients) Close() error {
	if c == nil || c.Firestore == nil {
		return nil
	}
	if err := c.Firestore.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close firestore: %w", err)
	}
	return nil
}
