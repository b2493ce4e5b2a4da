package viewmodel

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/live"
	"budget/internal/prefs"
	"budget/internal/repository"
	"budget/internal/storage"
)

func newTestRepo(t *testing.T) *repository.Local {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "vm.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return repository.NewLocal(st, prefs.New(st, "en"))
}

func newTestScope(t *testing.T) *Scope {
	t.Helper()
	s := NewScope(context.Background())
	t.Cleanup(func() { s.Close() })
	return s
}

// waitFor polls get until ok accepts its result.
func waitFor[S any](t *testing.T, get func() S, ok func(S) bool) S {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		st := get()
		if ok(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out, last state %+v", st)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScopeClosedRejectsWork(t *testing.T) {
	s := NewScope(context.Background())
	if !s.Active() {
		t.Fatalf("new scope should be active")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.Active() {
		t.Fatalf("closed scope should not be active")
	}
	if s.Go(func(context.Context) error { return nil }) {
		t.Fatalf("Go on closed scope should return false")
	}
	ran := false
	if s.Publish(func() { ran = true }) || ran {
		t.Fatalf("Publish on closed scope should not run")
	}
}

func TestDashboardBalanceAndRecent(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()

	d := NewDashboard(scope, repo)
	st := waitFor(t, d.State, func(s DashboardState) bool { return !s.Loading })
	if st.Balance.Cents != 0 || len(st.Recent) != 0 {
		t.Fatalf("empty dashboard = %+v", st)
	}

	catID, err := repo.InsertCategory(ctx, core.Category{Name: "General"})
	if err != nil {
		t.Fatalf("insert category: %v", err)
	}
	for _, tx := range []core.Transaction{
		{Amount: core.Money{Cents: 10000}, Type: core.Income, CategoryID: catID, Date: core.NewDate(2025, 3, 1)},
		{Amount: core.Money{Cents: 4000}, Type: core.Expense, CategoryID: catID, Date: core.NewDate(2025, 3, 2)},
	} {
		if _, err := repo.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("insert transaction: %v", err)
		}
	}

	st = waitFor(t, d.State, func(s DashboardState) bool { return len(s.Recent) == 2 })
	if st.Balance.Cents != 6000 {
		t.Errorf("balance = %d, want 6000", st.Balance.Cents)
	}
	if st.Recent[0].Type != core.Expense {
		t.Errorf("recent[0] = %+v, want the newest (expense)", st.Recent[0])
	}

	if _, err := repo.InsertGoal(ctx, core.Goal{Name: "Bike", Target: core.Money{Cents: 50000}}); err != nil {
		t.Fatalf("insert goal: %v", err)
	}
	st = waitFor(t, d.State, func(s DashboardState) bool { return len(s.Goals) == 1 })
	if st.Goals[0].Name != "Bike" {
		t.Errorf("goal = %+v", st.Goals[0])
	}
}

func TestTransactionListLoadingThenItems(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()

	catA, _ := repo.InsertCategory(ctx, core.Category{Name: "A"})
	catB, _ := repo.InsertCategory(ctx, core.Category{Name: "B"})
	for _, c := range []int64{catA, catA, catB} {
		_, err := repo.InsertTransaction(ctx, core.Transaction{
			Amount: core.Money{Cents: 100}, Type: core.Expense, CategoryID: c, Date: core.NewDate(2025, 1, 1),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	all := NewTransactionList(scope, repo, core.NewID)
	byA := NewTransactionList(scope, repo, catA)

	st := waitFor(t, all.State, func(s ListState[core.Transaction]) bool { return !s.Loading })
	if len(st.Items) != 3 {
		t.Errorf("all items = %d, want 3", len(st.Items))
	}
	st = waitFor(t, byA.State, func(s ListState[core.Transaction]) bool { return !s.Loading })
	if len(st.Items) != 2 {
		t.Errorf("category items = %d, want 2", len(st.Items))
	}
}

func TestTransactionEditValidityGatesSave(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()
	catID, _ := repo.InsertCategory(ctx, core.Category{Name: "Food"})

	e := NewTransactionEdit(scope, repo, core.NewID, time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))
	st := e.State()
	if st.Valid {
		t.Fatalf("blank draft should be invalid")
	}
	if st.Draft.Date != "2025-06-15" || st.Draft.Type != core.Expense {
		t.Fatalf("defaults = %+v", st.Draft)
	}
	if _, err := e.Save(ctx); !core.IsValidation(err) {
		t.Fatalf("save invalid draft: err = %v, want validation error", err)
	}

	e.SetAmount("12,50")
	e.SetCategory(catID)
	if !e.State().Valid {
		t.Fatalf("draft should be valid, invalid = %v", e.State().Invalid)
	}

	id, err := e.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := e.State(); !got.Saved || got.Draft.ID != id {
		t.Fatalf("after save state = %+v", got)
	}

	// a second save updates the same row
	e.SetNote("lunch")
	id2, err := e.Save(ctx)
	if err != nil || id2 != id {
		t.Fatalf("second save = %d, %v; want %d", id2, err, id)
	}

	list := NewTransactionList(scope, repo, core.NewID)
	ls := waitFor(t, list.State, func(s ListState[core.Transaction]) bool { return !s.Loading })
	if len(ls.Items) != 1 || ls.Items[0].Note != "lunch" || ls.Items[0].Amount.Cents != 1250 {
		t.Fatalf("items = %+v", ls.Items)
	}
}

func TestTransactionEditLoadsExisting(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()
	catID, _ := repo.InsertCategory(ctx, core.Category{Name: "Rent"})
	id, err := repo.InsertTransaction(ctx, core.Transaction{
		Amount: core.Money{Cents: 90000}, Type: core.Expense, CategoryID: catID, Date: core.NewDate(2025, 2, 1), Note: "Feb",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	e := NewTransactionEdit(scope, repo, id, time.Now())
	st, err := e.Ready(ctx)
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if st.Draft.Amount != "900.00" || st.Draft.Date != "2025-02-01" || !st.Valid {
		t.Fatalf("loaded draft = %+v", st)
	}

	if err := e.Delete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !e.State().Deleted {
		t.Fatalf("state should be deleted")
	}
}

func TestCategoryEditDeleteInUse(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()

	e := NewCategoryEdit(scope, repo, core.NewID)
	e.SetName("  ")
	if e.State().Valid {
		t.Fatalf("blank name should be invalid")
	}
	e.SetName("Travel")
	catID, err := e.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := repo.InsertTransaction(ctx, core.Transaction{
		Amount: core.Money{Cents: 100}, Type: core.Expense, CategoryID: catID, Date: core.NewDate(2025, 1, 1),
	}); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}

	err = e.Delete(ctx)
	if !errors.Is(err, core.ErrCategoryInUse) {
		t.Fatalf("delete err = %v, want ErrCategoryInUse", err)
	}
	if e.State().Err == nil {
		t.Fatalf("state should carry the delete error")
	}
}

func TestGoalEditContribute(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()

	e := NewGoalEdit(scope, repo, core.NewID)
	e.SetName("Holiday")
	e.SetTarget("1000")
	if !e.State().Valid {
		t.Fatalf("goal with blank current should be valid: %v", e.State().Invalid)
	}
	if _, err := e.Contribute(ctx, "10"); err == nil {
		t.Fatalf("contribute to unsaved goal should fail")
	}
	if _, err := e.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	g, err := e.Contribute(ctx, "250.5")
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if g.Current.Cents != 25050 {
		t.Fatalf("current = %d, want 25050", g.Current.Cents)
	}
	if e.State().Draft.Current != "250.50" {
		t.Fatalf("draft current = %q", e.State().Draft.Current)
	}
	if _, err := e.Contribute(ctx, "-5"); !core.IsValidation(err) {
		t.Fatalf("negative contribution err = %v", err)
	}

	e.SetTargetDate("not a date")
	if e.State().Valid {
		t.Fatalf("bad target date should be invalid")
	}
}

func TestTransactionEditSaveUnchangedIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()
	catID, _ := repo.InsertCategory(ctx, core.Category{Name: "Rent"})
	id, err := repo.InsertTransaction(ctx, core.Transaction{
		Amount: core.Money{Cents: 123456}, Type: core.Income, CategoryID: catID, Date: core.NewDate(2024, 12, 31), Note: "Bonus",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	before, err := live.First(ctx, repo.Transaction(id))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	e := NewTransactionEdit(scope, repo, id, time.Now())
	if _, err := e.Ready(ctx); err != nil {
		t.Fatalf("ready: %v", err)
	}
	for i := 0; i < 2; i++ {
		got, err := e.Save(ctx)
		if err != nil || got != id {
			t.Fatalf("save %d = %d, %v; want %d", i, got, err, id)
		}
		after, err := live.First(ctx, repo.Transaction(id))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if after.Amount != before.Amount || after.Type != before.Type || after.CategoryID != before.CategoryID ||
			!after.Date.Equal(before.Date.Time) || after.Note != before.Note {
			t.Fatalf("save %d changed %+v into %+v", i, before, after)
		}
	}
	txs, _ := live.First(ctx, repo.Transactions())
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
}

func TestGoalEditSaveUnchangedIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()

	cases := []struct {
		name string
		goal core.Goal
	}{
		{"with deadline", core.Goal{Name: "Car", Target: core.Money{Cents: 1500000}, Current: core.Money{Cents: 32050}, TargetDate: core.NewDate(2026, 6, 30)}},
		{"empty", core.Goal{Name: "Rainy day", Target: core.Money{Cents: 100}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := repo.InsertGoal(ctx, tc.goal)
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			before, err := live.First(ctx, repo.Goal(id))
			if err != nil {
				t.Fatalf("read: %v", err)
			}

			e := NewGoalEdit(scope, repo, id)
			if _, err := e.Ready(ctx); err != nil {
				t.Fatalf("ready: %v", err)
			}
			for i := 0; i < 2; i++ {
				if _, err := e.Save(ctx); err != nil {
					t.Fatalf("save %d: %v", i, err)
				}
				after, err := live.First(ctx, repo.Goal(id))
				if err != nil {
					t.Fatalf("read: %v", err)
				}
				if after.Name != before.Name || after.Target != before.Target || after.Current != before.Current ||
					!after.CreatedAt.Equal(before.CreatedAt) || after.TargetDate.IsZero() != before.TargetDate.IsZero() ||
					!after.TargetDate.Equal(before.TargetDate.Time) {
					t.Fatalf("save %d changed %+v into %+v", i, before, after)
				}
			}
		})
	}
}

func TestEditSaveBeforeLoadUpdatesExisting(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()
	catID, _ := repo.InsertCategory(ctx, core.Category{Name: "Rent"})
	id, err := repo.InsertTransaction(ctx, core.Transaction{
		Amount: core.Money{Cents: 100}, Type: core.Expense, CategoryID: catID, Date: core.NewDate(2025, 1, 1),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	e := NewTransactionEdit(scope, repo, id, time.Now())
	if got := e.State().Draft.ID; got != id {
		t.Fatalf("initial draft id = %d, want %d", got, id)
	}
	e.Apply(TransactionDraft{Amount: "2", Type: core.Expense, CategoryID: catID, Date: "2025-01-02"})
	got, err := e.Save(ctx)
	if err != nil || got != id {
		t.Fatalf("save = %d, %v; want %d", got, err, id)
	}
	txs, _ := live.First(ctx, repo.Transactions())
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}

	if got := NewGoalEdit(scope, repo, 42).State().Draft.ID; got != 42 {
		t.Fatalf("goal draft id = %d, want 42", got)
	}
	if got := NewCategoryEdit(scope, repo, catID).State().Draft.ID; got != catID {
		t.Fatalf("category draft id = %d, want %d", got, catID)
	}
}

func TestEditReadsOwnWriteWhileListOpen(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()
	catID, _ := repo.InsertCategory(ctx, core.Category{Name: "Rent"})

	list := NewTransactionList(scope, repo, core.NewID)
	waitFor(t, list.State, func(s ListState[core.Transaction]) bool { return !s.Loading })

	e := NewTransactionEdit(scope, repo, core.NewID, time.Now())
	e.Apply(TransactionDraft{Amount: "10", Type: core.Expense, CategoryID: catID, Date: "2025-03-01", Note: "first"})
	id, err := e.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	e.SetNote("second")
	if _, err := e.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	st, err := NewTransactionEdit(scope, repo, id, time.Now()).Ready(ctx)
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if st.Draft.Note != "second" {
		t.Fatalf("reloaded note = %q, want second", st.Draft.Note)
	}
}

func TestParseOptionalAmount(t *testing.T) {
	tests := []struct {
		in      string
		cents   int64
		wantErr bool
	}{
		{"", 0, false},
		{"   ", 0, false},
		{"0", 0, false},
		{"0.00", 0, false},
		{"0,0", 0, false},
		{"12.50", 1250, false},
		{"...", 0, true},
		{",.,", 0, true},
		{".", 0, true},
		{"0.0.0", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := parseOptionalAmount(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseOptionalAmount(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && m.Cents != tt.cents {
				t.Fatalf("parseOptionalAmount(%q) = %d, want %d", tt.in, m.Cents, tt.cents)
			}
		})
	}
	if _, err := (GoalDraft{Name: "Trip", Target: "100", Current: "..."}).Goal(); !core.IsValidation(err) {
		t.Fatalf("garbage current: expected validation error, got %v", err)
	}
}

type fakeReporter struct {
	mu      sync.Mutex
	calls   []core.DateRange
	reloads int
	block   chan struct{}
}

func (f *fakeReporter) Load(ctx context.Context, r core.DateRange) (core.Report, error) {
	f.mu.Lock()
	f.calls = append(f.calls, r)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return core.Report{}, ctx.Err()
		}
	}
	return core.Report{Range: r, TotalIncome: core.Money{Cents: int64(r.From.Day())}}, nil
}

func (f *fakeReporter) Reload(ctx context.Context, r core.DateRange) (core.Report, error) {
	f.mu.Lock()
	f.reloads++
	f.mu.Unlock()
	return f.Load(ctx, r)
}

func TestReportSetRange(t *testing.T) {
	scope := newTestScope(t)
	svc := &fakeReporter{}
	now := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)

	h := NewReport(scope, svc, now)
	st := waitFor(t, h.State, func(s ReportState) bool { return !s.Loading })
	if st.Range != core.CurrentMonth(now) || st.Err != nil {
		t.Fatalf("initial = %+v", st)
	}

	bad := core.DateRange{From: core.NewDate(2025, 5, 2), To: core.NewDate(2025, 5, 1)}
	if err := h.SetRange(bad); !errors.Is(err, core.ErrInvalidRange) {
		t.Fatalf("SetRange(bad) = %v", err)
	}
	if h.State().Range != st.Range {
		t.Fatalf("invalid range must not replace the current one")
	}

	r := core.DateRange{From: core.NewDate(2025, 1, 7), To: core.NewDate(2025, 1, 31)}
	if err := h.SetRange(r); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	st = waitFor(t, h.State, func(s ReportState) bool { return !s.Loading && s.Range == r })
	if st.Report.TotalIncome.Cents != 7 {
		t.Fatalf("report = %+v", st.Report)
	}

	h.Reload()
	waitFor(t, h.State, func(s ReportState) bool { return !s.Loading })
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.reloads != 1 {
		t.Fatalf("reloads = %d, want 1", svc.reloads)
	}
}

func TestReportLatestRequestWins(t *testing.T) {
	scope := newTestScope(t)
	svc := &fakeReporter{block: make(chan struct{})}
	h := NewReport(scope, svc, time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC))

	last := core.DateRange{From: core.NewDate(2025, 2, 3), To: core.NewDate(2025, 2, 28)}
	if err := h.SetRange(last); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	close(svc.block)

	st := waitFor(t, h.State, func(s ReportState) bool { return !s.Loading })
	if st.Range != last || st.Report.Range != last {
		t.Fatalf("state = %+v, want range %v", st, last)
	}
}

func TestSessionFollowsCurrentUser(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()

	s := NewSession(scope, fakeAuth{repo: repo}, repo.CurrentUserID())
	st := waitFor(t, s.State, func(st SessionState) bool { return !st.Loading })
	if st.LoggedIn {
		t.Fatalf("fresh install should not be logged in")
	}

	if _, err := s.Login(ctx, "bob", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	waitFor(t, s.State, func(st SessionState) bool { return st.LoggedIn && st.UserID == 42 })

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	waitFor(t, s.State, func(st SessionState) bool { return !st.LoggedIn })
}

type fakeAuth struct {
	repo *repository.Local
}

func (f fakeAuth) Register(ctx context.Context, username, password string) (core.User, error) {
	return f.Login(ctx, username, password)
}

func (f fakeAuth) Login(ctx context.Context, username, _ string) (core.User, error) {
	return core.User{ID: 42, Username: username}, f.repo.SetCurrentUserID(ctx, 42)
}

func (f fakeAuth) Logout(ctx context.Context) error {
	return f.repo.ClearCurrentUser(ctx)
}

func TestSettingsLanguage(t *testing.T) {
	repo := newTestRepo(t)
	scope := newTestScope(t)
	ctx := context.Background()

	s := NewSettings(scope, repo)
	st := waitFor(t, s.State, func(st SettingsState) bool { return !st.Loading })
	if st.Language != "en" {
		t.Fatalf("default language = %q", st.Language)
	}
	if err := s.SetLanguage(ctx, "it"); err != nil {
		t.Fatalf("set language: %v", err)
	}
	waitFor(t, s.State, func(st SettingsState) bool { return st.Language == "it" })

	if err := s.SetLanguage(ctx, "not a language!"); !core.IsValidation(err) {
		t.Fatalf("bad language err = %v", err)
	}
}
