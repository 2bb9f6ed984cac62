// Package testutil holds helpers for tests that run against the Firebase
// Auth and Firestore emulators. Tests skip when the emulators are down.
package testutil

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	fbauth "firebase.google.com/go/v4/auth"

	"github.com/janisto/identity-gateway/internal/platform/firebase"
)

const (
	AuthEmulatorHost      = "127.0.0.1:7110"
	FirestoreEmulatorHost = "127.0.0.1:7130"
	ProjectID             = "demo-test-project"
	// FakeAPIKey is accepted by the Auth emulator.
	FakeAPIKey = "fake-api-key" //nolint:gosec // emulator only
)

func reachable(host string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// SkipIfEmulatorUnavailable skips unless both emulators accept connections.
func SkipIfEmulatorUnavailable(t *testing.T) {
	t.Helper()
	if !reachable(AuthEmulatorHost) || !reachable(FirestoreEmulatorHost) {
		t.Skip("Firebase emulators not available")
	}
}

// SkipIfFirestoreUnavailable skips unless the Firestore emulator is up.
func SkipIfFirestoreUnavailable(t *testing.T) {
	t.Helper()
	if !reachable(FirestoreEmulatorHost) {
		t.Skip("Firestore emulator not available")
	}
}

// SetupEmulator points the Admin SDK at the emulators for the test's duration.
func SetupEmulator(t *testing.T) {
	t.Helper()
	t.Setenv("FIREBASE_AUTH_EMULATOR_HOST", AuthEmulatorHost)
	t.Setenv("FIRESTORE_EMULATOR_HOST", FirestoreEmulatorHost)
}

// Clients builds emulator-backed Admin SDK clients, closed on cleanup.
func Clients(t *testing.T) (*fbauth.Client, *firestore.Client) {
	t.Helper()
	SetupEmulator(t)
	c, err := firebase.New(context.Background(), firebase.Config{ProjectID: ProjectID, Emulated: true})
	if err != nil {
		t.Fatalf("firebase clients: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c.Auth, c.Firestore
}

func emulatorDelete(t *testing.T, url string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("emulator reset %s: %v", url, err)
	}
	_ = resp.Body.Close()
}

// ClearAccounts removes all users from the Auth emulator.
func ClearAccounts(t *testing.T) {
	t.Helper()
	emulatorDelete(t, fmt.Sprintf("http://%s/emulator/v1/projects/%s/accounts", AuthEmulatorHost, ProjectID))
}

// ClearFirestore removes all documents from the Firestore emulator.
func ClearFirestore(t *testing.T) {
	t.Helper()
	emulatorDelete(t, fmt.Sprintf("http://%s/emulator/v1/projects/%s/databases/(default)/documents",
		FirestoreEmulatorHost, ProjectID))
}

// ClearEmulators resets both emulators.
func ClearEmulators(t *testing.T) {
	t.Helper()
	ClearAccounts(t)
	ClearFirestore(t)
}
