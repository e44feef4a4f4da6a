package handlers_test

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

	"github.com/shopspring/decimal"

	"lms/internal/app/server"
	"lms/internal/platform/config"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestApp(t *testing.T) (*server.App, *httptest.Server) {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	chdirModuleRoot(t)

	cfg := config.Load()
	cfg.DatabaseURL = dbURL
	cfg.JWTSecret = "test-secret"
	cfg.Environment = "test"
	cfg.SeedAdminEmail = "admin@test.local"
	cfg.SeedAdminPassword = "ChangeMe123!"
	cfg.RunMigrations = true
	cfg.RunSeed = true
	cfg.RateLimitPerMinute = 1000

	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)
	return app, ts
}

// chdirModuleRoot walks up to the directory holding go.mod so the migration
// runner finds its files.
func chdirModuleRoot(t *testing.T) {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above test directory")
		}
		dir = parent
	}
	prev, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func do(t *testing.T, client *http.Client, method, url, token string, payload any) (int, envelope) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decoding response: %v", method, url, err)
	}
	return resp.StatusCode, env
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) (string, string) {
	t.Helper()
	status, env := do(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d, error %+v", email, status, env.Error)
	}
	var data struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	return data.Token, data.User.ID
}

func findRoleID(t *testing.T, client *http.Client, baseURL, token, roleName string) string {
	t.Helper()
	status, env := do(t, client, http.MethodGet, baseURL+"/api/v1/directory/roles", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list roles: status %d", status)
	}
	var roles []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(env.Data, &roles); err != nil {
		t.Fatal(err)
	}
	for _, role := range roles {
		if role.Name == roleName {
			return role.ID
		}
	}
	t.Fatalf("role %s not seeded", roleName)
	return ""
}

func findLeaveTypeID(t *testing.T, client *http.Client, baseURL, token, name string) string {
	t.Helper()
	status, env := do(t, client, http.MethodGet, baseURL+"/api/v1/leave/types", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list leave types: status %d", status)
	}
	var types []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(env.Data, &types); err != nil {
		t.Fatal(err)
	}
	for _, lt := range types {
		if lt.Name == name {
			return lt.ID
		}
	}
	t.Fatalf("leave type %s not seeded", name)
	return ""
}

// nextMonday returns the first Monday at least a week out, keeping request
// dates clear of today's edge cases.
func nextMonday() time.Time {
	day := time.Now().AddDate(0, 0, 7)
	for day.Weekday() != time.Monday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func TestLeaveRequestJourney(t *testing.T) {
	_, ts := newTestApp(t)
	client := ts.Client()

	adminToken, adminID := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")
	employeeRoleID := findRoleID(t, client, ts.URL, adminToken, "employee")

	// Admin is both manager and assigned HR so it can clear every step of a
	// short-leave plan.
	employeeEmail := fmt.Sprintf("journey-%d@example.com", time.Now().UnixNano())
	status, env := do(t, client, http.MethodPost, ts.URL+"/api/v1/directory/users", adminToken, map[string]any{
		"email":     employeeEmail,
		"firstName": "Journey",
		"lastName":  "Employee",
		"gender":    "female",
		"roleId":    employeeRoleID,
		"managerId": adminID,
		"hrId":      adminID,
		"isActive":  true,
		"password":  "Password123!",
	})
	if status != http.StatusCreated {
		t.Fatalf("create employee: status %d, error %+v", status, env.Error)
	}

	annualTypeID := findLeaveTypeID(t, client, ts.URL, adminToken, "Annual Leave")

	// The advisory check reads the current year's row while the debit targets
	// the start date's year, so both must exist when the window straddles
	// New Year.
	for _, year := range []int{time.Now().Year(), nextMonday().Year()} {
		status, _ = do(t, client, http.MethodPost, ts.URL+"/api/v1/leave/balances/initialize", adminToken, map[string]any{
			"year": year,
		})
		if status != http.StatusOK {
			t.Fatalf("initialize balances for %d: status %d", year, status)
		}
	}

	employeeToken, employeeID := login(t, client, ts.URL, employeeEmail, "Password123!")

	start := nextMonday()
	end := start.AddDate(0, 0, 1)
	status, env = do(t, client, http.MethodPost, ts.URL+"/api/v1/leave/requests/", employeeToken, map[string]string{
		"leaveTypeId": annualTypeID,
		"startDate":   start.Format("2006-01-02"),
		"endDate":     end.Format("2006-01-02"),
		"requestType": "full_day",
		"reason":      "journey test",
	})
	if status != http.StatusCreated {
		t.Fatalf("submit request: status %d, error %+v", status, env.Error)
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Plan   struct {
			Steps []struct {
				Role string `json:"role"`
			} `json:"steps"`
		} `json:"plan"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.Status != "pending" {
		t.Fatalf("fresh request status = %s", created.Status)
	}
	if len(created.Plan.Steps) != 2 {
		t.Fatalf("two-day request planned %d steps", len(created.Plan.Steps))
	}

	// Walk the plan: admin is eligible for every step by construction.
	var final string
	for range created.Plan.Steps {
		status, env = do(t, client, http.MethodPost, ts.URL+"/api/v1/leave/requests/"+created.ID+"/decide", adminToken, map[string]string{
			"decision": "approve",
			"comment":  "ok",
		})
		if status != http.StatusOK {
			t.Fatalf("decide: status %d, error %+v", status, env.Error)
		}
		var updated struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(env.Data, &updated); err != nil {
			t.Fatal(err)
		}
		final = updated.Status
	}
	if final != "approved" {
		t.Fatalf("final status = %s", final)
	}

	// The approval debited the employee's ledger.
	status, env = do(t, client, http.MethodGet, ts.URL+"/api/v1/leave/balances/"+employeeID+"?year="+fmt.Sprint(start.Year()), adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("balances: status %d", status)
	}
	var balances []struct {
		LeaveTypeID string          `json:"leaveTypeId"`
		Used        decimal.Decimal `json:"used"`
	}
	if err := json.Unmarshal(env.Data, &balances); err != nil {
		t.Fatal(err)
	}
	used := decimal.NewFromInt(-1)
	for _, b := range balances {
		if b.LeaveTypeID == annualTypeID {
			used = b.Used
		}
	}
	if !used.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("annual used = %s, want 2", used)
	}

	// A second request can be cancelled by its submitter but not decided after.
	start2 := start.AddDate(0, 0, 14)
	status, env = do(t, client, http.MethodPost, ts.URL+"/api/v1/leave/requests/", employeeToken, map[string]string{
		"leaveTypeId": annualTypeID,
		"startDate":   start2.Format("2006-01-02"),
		"endDate":     start2.Format("2006-01-02"),
	})
	if status != http.StatusCreated {
		t.Fatalf("second submit: status %d, error %+v", status, env.Error)
	}
	var second struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &second); err != nil {
		t.Fatal(err)
	}

	status, _ = do(t, client, http.MethodPost, ts.URL+"/api/v1/leave/requests/"+second.ID+"/cancel", employeeToken, nil)
	if status != http.StatusOK {
		t.Fatalf("cancel: status %d", status)
	}
	status, env = do(t, client, http.MethodPost, ts.URL+"/api/v1/leave/requests/"+second.ID+"/decide", adminToken, map[string]string{
		"decision": "approve",
	})
	if status != http.StatusConflict {
		t.Fatalf("decide after cancel: status %d, error %+v", status, env.Error)
	}
}

func TestEmployeeCannotReadOthersBalances(t *testing.T) {
	_, ts := newTestApp(t)
	client := ts.Client()

	adminToken, adminID := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")
	employeeRoleID := findRoleID(t, client, ts.URL, adminToken, "employee")

	employeeEmail := fmt.Sprintf("rbac-%d@example.com", time.Now().UnixNano())
	status, env := do(t, client, http.MethodPost, ts.URL+"/api/v1/directory/users", adminToken, map[string]any{
		"email":     employeeEmail,
		"firstName": "Rbac",
		"lastName":  "Employee",
		"roleId":    employeeRoleID,
		"isActive":  true,
		"password":  "Password123!",
	})
	if status != http.StatusCreated {
		t.Fatalf("create employee: status %d, error %+v", status, env.Error)
	}
	employeeToken, _ := login(t, client, ts.URL, employeeEmail, "Password123!")

	// Per-user balance reads require the leave admin permission.
	status, _ = do(t, client, http.MethodGet, ts.URL+"/api/v1/leave/balances/"+adminID, employeeToken, nil)
	if status != http.StatusForbidden {
		t.Fatalf("employee read of another user's balances: status %d", status)
	}

	// Unauthenticated requests are rejected outright.
	status, _ = do(t, client, http.MethodGet, ts.URL+"/api/v1/leave/balances", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("anonymous balances read: status %d", status)
	}
}
