package db

import (
	"context"
	"github.com/uptrace/bun"
	"testing"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := OpenSqlite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := CreateSchema(ctx, db); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	return db
}

func ptr[T any](v T) *T {
	return &v
}

func TestCreateSchema_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	if err := CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("second CreateSchema: %v", err)
	}
}

func TestInsertEmployer_ConflictIsSkipped(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	employer := &EmployerModel{EmployerId: 1740, Name: "Yandex", Url: "https://hh.ru/employer/1740"}

	outcome, err := InsertEmployer(ctx, db, employer)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if outcome != OutcomeInserted {
		t.Errorf("expected inserted, got %s", outcome)
	}

	again := &EmployerModel{EmployerId: 1740, Name: "Renamed", Url: ""}
	outcome, err = InsertEmployer(ctx, db, again)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("expected skipped, got %s", outcome)
	}

	var stored EmployerModel
	if err := db.NewSelect().Model(&stored).Where("employer_id = ?", 1740).Scan(ctx); err != nil {
		t.Fatalf("select: %v", err)
	}
	if stored.Name != "Yandex" {
		t.Errorf("expected the first row to be kept, got name %q", stored.Name)
	}
}

func TestInsertVacancy_OutcomesAndNullSalary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := InsertEmployer(ctx, db, &EmployerModel{EmployerId: 1, Name: "Acme"}); err != nil {
		t.Fatalf("insert employer: %v", err)
	}

	vacancy := &VacancyModel{VacancyId: 10, Title: "Go developer", EmployerId: 1, Url: "https://hh.ru/vacancy/10"}

	outcome, err := InsertVacancy(ctx, db, vacancy)
	if err != nil {
		t.Fatalf("insert vacancy: %v", err)
	}
	if outcome != OutcomeInserted {
		t.Errorf("expected inserted, got %s", outcome)
	}

	outcome, err = InsertVacancy(ctx, db, vacancy)
	if err != nil {
		t.Fatalf("re-insert vacancy: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("expected skipped, got %s", outcome)
	}

	var stored VacancyModel
	if err := db.NewSelect().Model(&stored).Where("vacancy_id = ?", 10).Scan(ctx); err != nil {
		t.Fatalf("select: %v", err)
	}
	if stored.SalaryFrom != nil || stored.SalaryTo != nil || stored.Currency != nil {
		t.Errorf("expected null salary, got %v %v %v", stored.SalaryFrom, stored.SalaryTo, stored.Currency)
	}
}

func TestInsertVacancy_Orphan(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	outcome, err := InsertVacancy(ctx, db, &VacancyModel{VacancyId: 11, Title: "Orphan", EmployerId: 999})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if outcome != OutcomeOrphan {
		t.Errorf("expected orphan, got %s", outcome)
	}

	count, err := db.NewSelect().Model((*VacancyModel)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no stored vacancies, got %d", count)
	}
}

func TestWithSavepoint_RollsBackOnlyTheFailedRecord(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	err = WithSavepoint(ctx, tx, func() error {
		_, err := InsertEmployer(ctx, tx, &EmployerModel{EmployerId: 1, Name: "Kept"})
		return err
	})
	if err != nil {
		t.Fatalf("first savepoint: %v", err)
	}

	err = WithSavepoint(ctx, tx, func() error {
		if _, err := InsertEmployer(ctx, tx, &EmployerModel{EmployerId: 2, Name: "Dropped"}); err != nil {
			return err
		}
		// a statement that fails after the insert
		_, err := tx.ExecContext(ctx, "INSERT INTO missing_table VALUES (1)")
		return err
	})
	if err == nil {
		t.Fatal("expected the second savepoint to fail")
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var ids []int64
	if err := db.NewSelect().Model((*EmployerModel)(nil)).Column("employer_id").Order("employer_id").Scan(ctx, &ids); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("expected only employer 1 to be stored, got %v", ids)
	}
}
