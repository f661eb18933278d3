package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/floodsim/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}

func TestUpsertAndGetDays(t *testing.T) {
	store := setupTestStore(t)

	days := []models.Day{
		{Date: day("2005-10-01"), Inflow: 1.5, Storage: 500},
		{Date: day("2005-10-02"), Inflow: 2.5, Storage: 501},
		{Date: day("2005-10-03"), Inflow: 3.5, Storage: 502},
	}
	n, err := store.UpsertDays(days)
	if err != nil {
		t.Fatalf("UpsertDays: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}

	got, err := store.GetDays(day("2005-10-02"), day("2005-10-03"))
	if err != nil {
		t.Fatalf("GetDays: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(days) = %d, want 1 (end is exclusive)", len(got))
	}
	if !got[0].Date.Equal(day("2005-10-02")) || got[0].Inflow != 2.5 || got[0].Storage != 501 {
		t.Errorf("day = %+v", got[0])
	}

	all, err := store.GetDays(time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GetDays(all): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}

	first, last, count, err := store.GetDayRange()
	if err != nil {
		t.Fatalf("GetDayRange: %v", err)
	}
	if !first.Equal(day("2005-10-01")) || !last.Equal(day("2005-10-03")) || count != 3 {
		t.Errorf("range = %v..%v (%d)", first, last, count)
	}
}

func TestUpsertDays_Update(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.UpsertDays([]models.Day{{Date: day("2005-10-01"), Inflow: 1, Storage: 2}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpsertDays([]models.Day{{Date: day("2005-10-01"), Inflow: 9, Storage: 8}}); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetDays(day("2005-01-01"), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Inflow != 9 || got[0].Storage != 8 {
		t.Errorf("days = %+v", got)
	}
}

func TestGetDayRange_Empty(t *testing.T) {
	store := setupTestStore(t)
	first, last, count, err := store.GetDayRange()
	if err != nil {
		t.Fatalf("GetDayRange: %v", err)
	}
	if !first.IsZero() || !last.IsZero() || count != 0 {
		t.Errorf("range = %v..%v (%d), want empty", first, last, count)
	}
}

func TestReplaceAndGetDemand(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.ReplaceDemand([]float64{1, 2, 3, 4}); err != nil {
		t.Fatalf("ReplaceDemand: %v", err)
	}
	if _, err := store.ReplaceDemand([]float64{5, 6}); err != nil {
		t.Fatalf("ReplaceDemand again: %v", err)
	}

	demand, err := store.GetDemand()
	if err != nil {
		t.Fatalf("GetDemand: %v", err)
	}
	if len(demand) != 2 || demand[0] != 5 || demand[1] != 6 {
		t.Errorf("demand = %v, want [5 6]", demand)
	}
}

func TestImportRuns(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.StartImportRun("days", "data/folsom.csv")
	if err != nil {
		t.Fatalf("StartImportRun: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("expected run ID")
	}

	run.Success = true
	run.RecordsParsed = sql.NullInt64{Int64: 10, Valid: true}
	run.RecordsStored = sql.NullInt64{Int64: 10, Valid: true}
	if err := store.CompleteImportRun(run); err != nil {
		t.Fatalf("CompleteImportRun: %v", err)
	}

	runs, err := store.GetRecentImports(5)
	if err != nil {
		t.Fatalf("GetRecentImports: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	if !runs[0].Success || runs[0].RecordsStored.Int64 != 10 || !runs[0].FinishedAt.Valid {
		t.Errorf("run = %+v", runs[0])
	}
	if err := store.CompleteImportRun(nil); err != nil {
		t.Errorf("CompleteImportRun(nil): %v", err)
	}
}

func TestSourceFiles(t *testing.T) {
	store := setupTestStore(t)

	content := []byte("date,inflow,storage\n2005-10-01,1,2\n")
	id, err := store.StoreSourceFile(nil, "days", "ftp://example/folsom.csv", content)
	if err != nil {
		t.Fatalf("StoreSourceFile: %v", err)
	}
	if id == 0 {
		t.Fatal("expected new file ID")
	}

	dup, err := store.StoreSourceFile(nil, "days", "ftp://example/folsom.csv", content)
	if err != nil {
		t.Fatalf("StoreSourceFile dup: %v", err)
	}
	if dup != 0 {
		t.Errorf("duplicate ID = %d, want 0", dup)
	}

	got, err := store.GetSourceFile(id)
	if err != nil {
		t.Fatalf("GetSourceFile: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content = %q", got)
	}

	files, err := store.ListSourceFiles(10)
	if err != nil {
		t.Fatalf("ListSourceFiles: %v", err)
	}
	if len(files) != 1 || files[0].Kind != "days" || len(files[0].ContentHash) != 64 {
		t.Errorf("files = %+v", files)
	}
}

func TestEvaluationRunAndTrace(t *testing.T) {
	store := setupTestStore(t)

	run := &models.EvaluationRun{
		PolicyName: "Release_Demand",
		Mode:       "simulation",
		StartDate:  day("2005-10-01"),
		EndDate:    day("2005-10-02"),
		Days:       2,
	}
	if err := store.StartEvaluationRun(run); err != nil {
		t.Fatalf("StartEvaluationRun: %v", err)
	}

	rows := []models.TraceRow{
		{RunID: run.ID, Date: day("2005-10-01"), Inflow: 0, Storage: 900, SimulatedStorage: 900, SimulatedRelease: 10, Demand: 10},
		{RunID: run.ID, Date: day("2005-10-02"), Inflow: 5, Storage: 890, SimulatedStorage: 895, SimulatedRelease: 10, Demand: 10, Target: 10, Policy: "Release_Demand", Flood: true},
	}
	if err := store.InsertTrace(rows); err != nil {
		t.Fatalf("InsertTrace: %v", err)
	}

	run.Success = true
	run.Score = sql.NullFloat64{Float64: 12.5, Valid: true}
	if err := store.CompleteEvaluationRun(run); err != nil {
		t.Fatalf("CompleteEvaluationRun: %v", err)
	}

	got, err := store.GetEvaluationRun(run.ID)
	if err != nil {
		t.Fatalf("GetEvaluationRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetEvaluationRun returned nil")
	}
	if !got.Success || got.Score.Float64 != 12.5 || got.Days != 2 || !got.EndDate.Equal(day("2005-10-02")) {
		t.Errorf("run = %+v", got)
	}

	trace, err := store.GetTrace(run.ID)
	if err != nil {
		t.Fatalf("GetTrace: %v", err)
	}
	if len(trace) != 2 {
		t.Fatalf("len(trace) = %d, want 2", len(trace))
	}
	if trace[0].Policy != "" || trace[1].Policy != "Release_Demand" || trace[1].SimulatedStorage != 895 {
		t.Errorf("trace = %+v", trace)
	}
	if trace[0].Flood || !trace[1].Flood {
		t.Errorf("trace = %+v", trace)
	}

	missing, err := store.GetEvaluationRun(run.ID + 100)
	if err != nil || missing != nil {
		t.Errorf("GetEvaluationRun(missing) = %v, %v", missing, err)
	}

	runs, err := store.ListEvaluationRuns(10)
	if err != nil {
		t.Fatalf("ListEvaluationRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].PolicyName != "Release_Demand" {
		t.Errorf("runs = %+v", runs)
	}
}
