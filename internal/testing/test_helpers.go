// Package testing holds end-to-end tests that run the assembled app against
// a temporary SQLite snapshot store.
package testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"loungebackend/internal/app"
	"loungebackend/internal/billing"
	"loungebackend/internal/clock"
	"loungebackend/internal/data"
	"loungebackend/internal/middleware"
)

var suiteStart = time.Date(2026, 10, 15, 16, 50, 0, 0, time.UTC)

// TestConfig holds configuration for test runs
type TestConfig struct {
	DBPath        string
	InventoryPath string
	TestDataDir   string
}

// TestSuite runs one app instance behind an httptest server.
type TestSuite struct {
	Config TestConfig
	App    *app.App
	Server *httptest.Server
	Client *http.Client
	Clock  *clock.Fake
	token  string
}

// NewTestSuite creates a suite with a fresh database and seeded inventory.
func NewTestSuite(t *testing.T) *TestSuite {
	t.Helper()

	testDir := t.TempDir()
	inventoryPath := filepath.Join(testDir, "test_inventory.json")
	if err := createTestInventory(inventoryPath); err != nil {
		t.Fatalf("Failed to create test inventory: %v", err)
	}

	suite := &TestSuite{
		Config: TestConfig{
			DBPath:        filepath.Join(testDir, "lounge_test.db"),
			InventoryPath: inventoryPath,
			TestDataDir:   testDir,
		},
	}
	suite.start(t)
	t.Cleanup(suite.Cleanup)
	return suite
}

func (ts *TestSuite) options() app.Options {
	cfg := billing.DefaultConfig()
	cfg.Location = time.UTC

	return app.Options{
		Billing:  cfg,
		Store:    data.Config{Backend: data.BackendSQLite, SQLitePath: ts.Config.DBPath},
		SeedFile: ts.Config.InventoryPath,
		Currency: "L.E",
		Clock:    ts.Clock,
	}
}

func (ts *TestSuite) start(t *testing.T) {
	t.Helper()

	ts.Clock = clock.NewFake(suiteStart)
	a, err := app.New(context.Background(), ts.options())
	if err != nil {
		t.Fatalf("Failed to build app: %v", err)
	}
	ts.App = a
	ts.Server = httptest.NewServer(a.Handler())
	ts.Client = ts.Server.Client()
	ts.token = ""
	ts.SignIn(t)
}

// Restart closes the running app and starts a new one on the same database,
// as after a reload of the front desk.
func (ts *TestSuite) Restart(t *testing.T) {
	t.Helper()
	ts.Cleanup()
	ts.start(t)
}

// Cleanup stops the server and releases the database.
func (ts *TestSuite) Cleanup() {
	if ts.Server != nil {
		ts.Server.Close()
		ts.Server = nil
	}
	if ts.App != nil {
		ts.App.Close()
		ts.App = nil
	}
}

// SignIn opens a session used by every later request.
func (ts *TestSuite) SignIn(t *testing.T) {
	t.Helper()

	resp := ts.MakeRequest(t, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    "frontdesk@lounge.test",
		"password": "secret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Sign in failed: %d %s", resp.StatusCode, resp.Body)
	}

	var sess struct {
		Token string `json:"token"`
	}
	resp.Decode(t, &sess)
	ts.token = sess.Token
}

// TestResponse is a fully read HTTP response.
type TestResponse struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Decode unwraps the success envelope into v.
func (r TestResponse) Decode(t *testing.T, v interface{}) {
	t.Helper()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(r.Body, &env); err != nil {
		t.Fatalf("Invalid response body %q: %v", r.Body, err)
	}
	if !env.Success {
		t.Fatalf("Expected success envelope, got %s", r.Body)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
}

// ErrorCode returns the code of an error envelope.
func (r TestResponse) ErrorCode(t *testing.T) string {
	t.Helper()

	var apiErr middleware.APIError
	if err := json.Unmarshal(r.Body, &apiErr); err != nil {
		t.Fatalf("Invalid error body %q: %v", r.Body, err)
	}
	return apiErr.Code
}

// MakeRequest sends body as JSON with the suite's session token.
func (ts *TestSuite) MakeRequest(t *testing.T, method, path string, body interface{}) TestResponse {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ts.token != "" {
		req.Header.Set(middleware.SessionHeader, ts.token)
	}

	resp, err := ts.Client.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return TestResponse{StatusCode: resp.StatusCode, Body: raw, Header: resp.Header}
}

// Expect fails the test unless resp has the given status.
func Expect(t *testing.T, resp TestResponse, status int) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("Expected status %d, got %d: %s", status, resp.StatusCode, resp.Body)
	}
}

func guestPath(number int, suffix string) string {
	return fmt.Sprintf("/api/guests/%d%s", number, suffix)
}

func createTestInventory(path string) error {
	payload, err := json.MarshalIndent(testInventory, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0644)
}
