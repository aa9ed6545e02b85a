//go:build integration

package server_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"testing"

	"newsletter/internal/testapp"
)

func TestMain(m *testing.M) {
	os.Exit(testapp.Main(m))
}

func TestHealthCheckWorks(t *testing.T) {
	t.Parallel()
	app := testapp.Spawn(t)

	resp := app.GetHealthCheck(t)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Errorf("expected empty body, got %q", body)
	}
}

func TestSubscribeReturns200ForValidFormData(t *testing.T) {
	t.Parallel()
	app := testapp.Spawn(t)

	resp := app.PostSubscriptions(t, "name=le%20guin&email=ursula_le_guin%40gmail.com")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var email, name string
	err := app.Pool.QueryRow(context.Background(), "SELECT email, name FROM subscriptions").Scan(&email, &name)
	if err != nil {
		t.Fatalf("failed to fetch saved subscription: %v", err)
	}
	if email != "ursula_le_guin@gmail.com" || name != "le guin" {
		t.Errorf("saved row = (%q, %q)", email, name)
	}
}

func TestSubscribeStoresExactlyOneRow(t *testing.T) {
	t.Parallel()
	app := testapp.Spawn(t)

	resp := app.PostForm(t, url.Values{"name": {"Jo Soap"}, "email": {"josoap@example.com"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	rows, err := app.Store.ListByEmail(context.Background(), "josoap@example.com")
	if err != nil {
		t.Fatalf("ListByEmail: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Name != "Jo Soap" || rows[0].SubscribedAt.IsZero() {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}

func TestSubscribeReturns400WhenDataIsMissing(t *testing.T) {
	t.Parallel()
	app := testapp.Spawn(t)

	tests := []struct {
		body string
		desc string
	}{
		{"name=le%20guin", "missing the email"},
		{"email=ursula_le_guin%40gmail.com", "missing the name"},
		{"", "missing both name and email"},
	}

	for _, tt := range tests {
		resp := app.PostSubscriptions(t, tt.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("did not fail with 400 when the payload was %s: got %d", tt.desc, resp.StatusCode)
		}
	}

	n, err := app.Store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no rows after rejected requests, got %d", n)
	}
}

func TestSubscribeTwiceStoresTwoRows(t *testing.T) {
	t.Parallel()
	app := testapp.Spawn(t)

	for i := 0; i < 2; i++ {
		if resp := app.PostSubscriptions(t, "name=Jo&email=jo%40example.com"); resp.StatusCode != http.StatusOK {
			t.Fatalf("attempt %d: status = %d, want 200", i, resp.StatusCode)
		}
	}

	rows, err := app.Store.ListByEmail(context.Background(), "jo@example.com")
	if err != nil {
		t.Fatalf("ListByEmail: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID == rows[1].ID {
		t.Error("expected distinct ids")
	}
}

func TestSpawnedAppsAreIsolated(t *testing.T) {
	t.Parallel()
	a := testapp.Spawn(t)
	b := testapp.Spawn(t)

	if a.Port == b.Port {
		t.Fatalf("both apps bound port %d", a.Port)
	}
	if a.Settings.Database.DatabaseName == b.Settings.Database.DatabaseName {
		t.Fatal("apps share a database")
	}

	if resp := a.PostSubscriptions(t, "name=Jo&email=jo%40example.com"); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	n, err := b.Store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("second app sees %d rows from the first", n)
	}
}

func TestReadyReportsDatabase(t *testing.T) {
	t.Parallel()
	app := testapp.Spawn(t)

	resp, err := app.Client.Get(app.Address + "/ready")
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
