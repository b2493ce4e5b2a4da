package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"budget/internal/auth"
	"budget/internal/middleware/ratelimit"
	"budget/internal/prefs"
	"budget/internal/report"
	"budget/internal/repository"
	"budget/internal/storage"
)

var testNow = time.Date(2025, 5, 10, 9, 30, 0, 0, time.UTC)

type testAPI struct {
	t    *testing.T
	srv  *Server
	repo *repository.Local
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func newTestAPI(t *testing.T, opts ...Option) *testAPI {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	repo := repository.NewLocal(st, prefs.New(st, "en"))
	reports := report.NewService(repo, st.Notifier(), 8, 0)
	t.Cleanup(reports.Close)

	deps := Deps{
		Repo:    repo,
		Auth:    auth.NewService(repo, auth.WithCost(bcrypt.MinCost)),
		Reports: reports,
		Store:   st,
	}
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithRateLimit(ratelimit.Config{RequestsPerMinute: 1000}),
	}, opts...)
	srv := NewServer(":0", deps, opts...)
	t.Cleanup(func() { srv.Close() })
	return &testAPI{t: t, srv: srv, repo: repo}
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

// expect performs the request and fails unless it answers with status.
func (a *testAPI) expect(status int, method, path, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	rr := a.do(method, path, body)
	if rr.Code != status {
		a.t.Fatalf("%s %s: status = %d, want %d; body %s", method, path, rr.Code, status, rr.Body.String())
	}
	return rr
}

func (a *testAPI) login() {
	a.t.Helper()
	a.expect(http.StatusCreated, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secret1"}`)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func idPath(prefix string, id int64) string {
	return prefix + "/" + strconv.FormatInt(id, 10)
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t)

	rr := api.expect(http.StatusOK, http.MethodGet, "/healthz", "")
	if got := decode[map[string]any](t, rr)["status"]; got != "ok" {
		t.Errorf("health status = %v", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	api.expect(http.StatusOK, http.MethodGet, "/readyz", "")

	api.srv.deps.Store = failingPinger{}
	rr = api.expect(http.StatusServiceUnavailable, http.MethodGet, "/readyz", "")
	if got := decode[map[string]any](t, rr)["status"]; got != "not_ready" {
		t.Errorf("ready status = %v", got)
	}

	api.expect(http.StatusNotFound, http.MethodGet, "/api/nope", "")
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)

	api.expect(http.StatusUnauthorized, http.MethodGet, "/api/dashboard", "")
	api.expect(http.StatusUnauthorized, http.MethodGet, "/api/auth/me", "")
	api.expect(http.StatusUnprocessableEntity, http.MethodPost, "/api/auth/register", `{"username":"bob","password":"123"}`)

	rr := api.expect(http.StatusCreated, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secret1"}`)
	user := decode[userJSON](t, rr)
	if user.ID == 0 || user.Username != "alice" {
		t.Fatalf("registered user = %+v", user)
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Errorf("response leaks password data: %s", rr.Body.String())
	}

	rr = api.expect(http.StatusOK, http.MethodGet, "/api/auth/me", "")
	if me := decode[userJSON](t, rr); me.ID != user.ID {
		t.Errorf("me = %+v, want id %d", me, user.ID)
	}
	api.expect(http.StatusOK, http.MethodGet, "/api/dashboard", "")

	api.expect(http.StatusNoContent, http.MethodPost, "/api/auth/logout", "")
	api.expect(http.StatusUnauthorized, http.MethodGet, "/api/dashboard", "")

	api.expect(http.StatusConflict, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"another1"}`)
	api.expect(http.StatusUnauthorized, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong-pass"}`)
	api.expect(http.StatusUnauthorized, http.MethodPost, "/api/auth/login", `{"username":"nobody","password":"secret1"}`)
	api.expect(http.StatusOK, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secret1"}`)
	api.expect(http.StatusOK, http.MethodGet, "/api/dashboard", "")
}

func TestTransactionsCRUD(t *testing.T) {
	api := newTestAPI(t)
	api.login()

	food := decode[categoryJSON](t, api.expect(http.StatusCreated, http.MethodPost, "/api/categories", `{"name":"Food"}`))
	rent := decode[categoryJSON](t, api.expect(http.StatusCreated, http.MethodPost, "/api/categories", `{"name":"Rent"}`))

	body := `{"amount":"12,50","type":"expense","category_id":` + strconv.FormatInt(food.ID, 10) + `,"date":"2025-05-02","note":"lunch"}`
	created := decode[transactionJSON](t, api.expect(http.StatusCreated, http.MethodPost, "/api/transactions", body))
	if created.ID == 0 || created.Amount.Cents != 1250 || created.Amount.Formatted != "12.50" || created.Type != "EXPENSE" || created.Note != "lunch" {
		t.Fatalf("created = %+v", created)
	}

	// type and date default to a new expense dated today
	body = `{"amount":40,"category_id":` + strconv.FormatInt(rent.ID, 10) + `}`
	defaulted := decode[transactionJSON](t, api.expect(http.StatusCreated, http.MethodPost, "/api/transactions", body))
	if defaulted.Type != "EXPENSE" || defaulted.Date != "2025-05-10" || defaulted.Amount.Cents != 4000 {
		t.Fatalf("defaulted = %+v", defaulted)
	}

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad amount", `{"amount":"abc","category_id":1}`, "amount"},
		{"zero amount", `{"amount":"0","category_id":1}`, "amount"},
		{"no category", `{"amount":"1"}`, "category"},
		{"bad type", `{"amount":"1","type":"gift","category_id":1}`, "type"},
		{"bad date", `{"amount":"1","category_id":1,"date":"yesterday"}`, "date"},
		{"malformed", `{"amount":`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.expect(http.StatusUnprocessableEntity, http.MethodPost, "/api/transactions", tt.body)
			if got := decode[errorBody](t, rr); got.Field != tt.field {
				t.Errorf("field = %q, want %q", got.Field, tt.field)
			}
		})
	}

	list := decode[[]transactionJSON](t, api.expect(http.StatusOK, http.MethodGet, "/api/transactions", ""))
	if len(list) != 2 || list[0].ID != defaulted.ID {
		t.Fatalf("list = %+v, want newest first", list)
	}
	filtered := decode[[]transactionJSON](t, api.expect(http.StatusOK, http.MethodGet, "/api/transactions?category_id="+strconv.FormatInt(food.ID, 10), ""))
	if len(filtered) != 1 || filtered[0].ID != created.ID {
		t.Fatalf("filtered = %+v", filtered)
	}
	api.expect(http.StatusUnprocessableEntity, http.MethodGet, "/api/transactions?category_id=x", "")

	path := idPath("/api/transactions", created.ID)
	updated := decode[transactionJSON](t, api.expect(http.StatusOK, http.MethodPut, path, `{"amount":"20"}`))
	if updated.ID != created.ID || updated.Amount.Cents != 2000 || updated.Note != "lunch" || updated.Date != "2025-05-02" {
		t.Fatalf("updated = %+v", updated)
	}
	got := decode[transactionJSON](t, api.expect(http.StatusOK, http.MethodGet, path, ""))
	if got != updated {
		t.Fatalf("get = %+v, want %+v", got, updated)
	}

	api.expect(http.StatusNoContent, http.MethodDelete, path, "")
	api.expect(http.StatusNotFound, http.MethodGet, path, "")
	api.expect(http.StatusNotFound, http.MethodDelete, path, "")
	api.expect(http.StatusNotFound, http.MethodPut, path, `{"amount":"1"}`)
}

func TestCategoryRules(t *testing.T) {
	api := newTestAPI(t)
	api.login()

	api.expect(http.StatusUnprocessableEntity, http.MethodPost, "/api/categories", `{"name":"   "}`)
	food := decode[categoryJSON](t, api.expect(http.StatusCreated, http.MethodPost, "/api/categories", `{"name":"Food"}`))

	path := idPath("/api/categories", food.ID)
	renamed := decode[categoryJSON](t, api.expect(http.StatusOK, http.MethodPut, path, `{"name":"Groceries"}`))
	if renamed.ID != food.ID || renamed.Name != "Groceries" {
		t.Fatalf("renamed = %+v", renamed)
	}

	tx := decode[transactionJSON](t, api.expect(http.StatusCreated, http.MethodPost, "/api/transactions",
		`{"amount":"5","category_id":`+strconv.FormatInt(food.ID, 10)+`}`))

	rr := api.expect(http.StatusConflict, http.MethodDelete, path, "")
	if e := decode[errorBody](t, rr); e.Field != "category" {
		t.Errorf("error = %+v", e)
	}

	api.expect(http.StatusNoContent, http.MethodDelete, idPath("/api/transactions", tx.ID), "")
	api.expect(http.StatusNoContent, http.MethodDelete, path, "")

	cats := decode[[]categoryJSON](t, api.expect(http.StatusOK, http.MethodGet, "/api/categories", ""))
	if len(cats) != 0 {
		t.Fatalf("categories = %+v", cats)
	}
	api.expect(http.StatusNotFound, http.MethodGet, path, "")
}

func TestGoals(t *testing.T) {
	api := newTestAPI(t)
	api.login()

	goal := decode[goalJSON](t, api.expect(http.StatusCreated, http.MethodPost, "/api/goals", `{"name":"Bike","target":"500","target_date":"2025-12-31"}`))
	if goal.Current.Cents != 0 || goal.Target.Cents != 50000 || goal.TargetDate != "2025-12-31" || goal.Progress != 0 {
		t.Fatalf("goal = %+v", goal)
	}

	contrib := idPath("/api/goals", goal.ID) + "/contributions"
	after := decode[goalJSON](t, api.expect(http.StatusOK, http.MethodPost, contrib, `{"amount":"125.50"}`))
	if after.Current.Cents != 12550 || after.Progress != 0.251 {
		t.Fatalf("after contribution = %+v", after)
	}
	api.expect(http.StatusUnprocessableEntity, http.MethodPost, contrib, `{"amount":"-1"}`)
	api.expect(http.StatusNotFound, http.MethodPost, "/api/goals/999/contributions", `{"amount":"1"}`)

	renamed := decode[goalJSON](t, api.expect(http.StatusOK, http.MethodPut, idPath("/api/goals", goal.ID), `{"name":"Road bike"}`))
	if renamed.Name != "Road bike" || renamed.Current.Cents != 12550 || renamed.Target.Cents != 50000 {
		t.Fatalf("renamed = %+v", renamed)
	}
	api.expect(http.StatusUnprocessableEntity, http.MethodPut, idPath("/api/goals", goal.ID), `{"target":"0"}`)

	goals := decode[[]goalJSON](t, api.expect(http.StatusOK, http.MethodGet, "/api/goals", ""))
	if len(goals) != 1 {
		t.Fatalf("goals = %+v", goals)
	}
	api.expect(http.StatusNoContent, http.MethodDelete, idPath("/api/goals", goal.ID), "")
	api.expect(http.StatusNotFound, http.MethodGet, idPath("/api/goals", goal.ID), "")
}

func seedMay(t *testing.T, api *testAPI) {
	t.Helper()
	salary := decode[categoryJSON](t, api.expect(http.StatusCreated, http.MethodPost, "/api/categories", `{"name":"Salary"}`))
	food := decode[categoryJSON](t, api.expect(http.StatusCreated, http.MethodPost, "/api/categories", `{"name":"Food"}`))
	api.expect(http.StatusCreated, http.MethodPost, "/api/transactions",
		`{"amount":"100","type":"income","date":"2025-05-01","category_id":`+strconv.FormatInt(salary.ID, 10)+`}`)
	api.expect(http.StatusCreated, http.MethodPost, "/api/transactions",
		`{"amount":"40","type":"expense","date":"2025-05-03","category_id":`+strconv.FormatInt(food.ID, 10)+`}`)
	api.expect(http.StatusCreated, http.MethodPost, "/api/transactions",
		`{"amount":"7","type":"expense","date":"2025-04-30","category_id":`+strconv.FormatInt(food.ID, 10)+`}`)
}

func TestDashboardAndReport(t *testing.T) {
	api := newTestAPI(t)
	api.login()
	seedMay(t, api)

	dash := decode[dashboardJSON](t, api.expect(http.StatusOK, http.MethodGet, "/api/dashboard", ""))
	if dash.Balance.Cents != 5300 || len(dash.Recent) != 3 || dash.Recent[0].Date != "2025-05-03" {
		t.Fatalf("dashboard = %+v", dash)
	}

	// no range means the month containing the server clock
	rep := decode[reportJSON](t, api.expect(http.StatusOK, http.MethodGet, "/api/report", ""))
	if rep.From != "2025-05-01" || rep.To != "2025-05-31" {
		t.Fatalf("default range = %s..%s", rep.From, rep.To)
	}
	if rep.TotalIncome.Cents != 10000 || rep.TotalExpense.Cents != 4000 || rep.Net.Cents != 6000 {
		t.Fatalf("report totals = %+v", rep)
	}
	if len(rep.ByCategory) != 1 || rep.ByCategory[0].Name != "Food" || len(rep.ByDay) != 1 {
		t.Fatalf("report breakdown = %+v", rep)
	}

	rep = decode[reportJSON](t, api.expect(http.StatusOK, http.MethodGet, "/api/report?from=2025-04-01&to=2025-05-31&reload=true", ""))
	if rep.TotalExpense.Cents != 4700 || len(rep.ByDay) != 2 {
		t.Fatalf("wide report = %+v", rep)
	}

	api.expect(http.StatusUnprocessableEntity, http.MethodGet, "/api/report?from=2025-06-01&to=2025-05-01", "")
	api.expect(http.StatusUnprocessableEntity, http.MethodGet, "/api/report?from=2025-06-01", "")
}

func TestSettingsLanguage(t *testing.T) {
	api := newTestAPI(t)
	api.login()

	got := decode[languageJSON](t, api.expect(http.StatusOK, http.MethodGet, "/api/settings/language", ""))
	if got.Language != "en" {
		t.Fatalf("default language = %q", got.Language)
	}
	got = decode[languageJSON](t, api.expect(http.StatusOK, http.MethodPut, "/api/settings/language", `{"language":"it"}`))
	if got.Language != "it" {
		t.Fatalf("language = %q", got.Language)
	}
	got = decode[languageJSON](t, api.expect(http.StatusOK, http.MethodGet, "/api/settings/language", ""))
	if got.Language != "it" {
		t.Fatalf("persisted language = %q", got.Language)
	}
	api.expect(http.StatusUnprocessableEntity, http.MethodPut, "/api/settings/language", `{"language":"!!"}`)
}

func TestRateLimitOnWrites(t *testing.T) {
	api := newTestAPI(t, WithRateLimit(ratelimit.Config{RequestsPerMinute: 2, Methods: []string{http.MethodPost}}))

	api.expect(http.StatusCreated, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secret1"}`)
	api.expect(http.StatusOK, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secret1"}`)
	rr := api.expect(http.StatusTooManyRequests, http.MethodPost, "/api/categories", `{"name":"Food"}`)
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	api.expect(http.StatusOK, http.MethodGet, "/api/categories", "")
}

// readEvent returns the data line of the next "dashboard" event.
func readEvent(t *testing.T, sc *bufio.Scanner) dashboardJSON {
	t.Helper()
	event := ""
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event == "dashboard":
			var d dashboardJSON
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &d); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			return d
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return dashboardJSON{}
}

func TestDashboardEvents(t *testing.T) {
	api := newTestAPI(t)
	api.login()
	food := decode[categoryJSON](t, api.expect(http.StatusCreated, http.MethodPost, "/api/categories", `{"name":"Food"}`))

	ts := httptest.NewServer(api.srv.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/dashboard/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("status %d, content type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	sc := bufio.NewScanner(resp.Body)
	if first := readEvent(t, sc); first.Balance.Cents != 0 || len(first.Recent) != 0 {
		t.Fatalf("first event = %+v", first)
	}

	api.expect(http.StatusCreated, http.MethodPost, "/api/transactions",
		`{"amount":"30","type":"income","category_id":`+strconv.FormatInt(food.ID, 10)+`}`)

	for {
		ev := readEvent(t, sc)
		if ev.Balance.Cents == 3000 && len(ev.Recent) == 1 {
			break
		}
	}
}
