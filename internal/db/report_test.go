package db

import (
	"context"
	"github.com/uptrace/bun"
	"testing"
)

func mustInsertEmployer(t *testing.T, db *bun.DB, id int64, name string) {
	t.Helper()
	if _, err := InsertEmployer(context.Background(), db, &EmployerModel{EmployerId: id, Name: name}); err != nil {
		t.Fatalf("insert employer %d: %v", id, err)
	}
}

func mustInsertVacancy(t *testing.T, db *bun.DB, vacancy *VacancyModel) {
	t.Helper()
	outcome, err := InsertVacancy(context.Background(), db, vacancy)
	if err != nil {
		t.Fatalf("insert vacancy %d: %v", vacancy.VacancyId, err)
	}
	if outcome != OutcomeInserted {
		t.Fatalf("insert vacancy %d: got %s", vacancy.VacancyId, outcome)
	}
}

func salaried(id int64, title string, from, to int64) *VacancyModel {
	return &VacancyModel{VacancyId: id, Title: title, SalaryFrom: &from, SalaryTo: &to, Currency: ptr("RUR"), EmployerId: 1}
}

func TestCompaniesWithVacancyCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mustInsertEmployer(t, db, 1, "Acme")
	mustInsertEmployer(t, db, 2, "Globex")
	mustInsertVacancy(t, db, &VacancyModel{VacancyId: 10, Title: "Go developer", EmployerId: 1})
	mustInsertVacancy(t, db, &VacancyModel{VacancyId: 11, Title: "QA engineer", EmployerId: 1})

	rows, err := NewReports(db).CompaniesWithVacancyCounts(ctx)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	want := []CompanyVacancyCount{{Name: "Acme", VacancyCount: 2}, {Name: "Globex", VacancyCount: 0}}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d: %+v", len(want), len(rows), rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestAllVacancies(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mustInsertEmployer(t, db, 1, "Acme")
	mustInsertVacancy(t, db, &VacancyModel{
		VacancyId:  10,
		Title:      "Go developer",
		SalaryFrom: ptr[int64](100),
		SalaryTo:   ptr[int64](200),
		Currency:   ptr("RUR"),
		EmployerId: 1,
		Url:        "https://hh.ru/vacancy/10",
	})

	rows, err := NewReports(db).AllVacancies(ctx)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	got := rows[0]
	if got.EmployerName != "Acme" || got.Title != "Go developer" || got.Url != "https://hh.ru/vacancy/10" {
		t.Errorf("unexpected row %+v", got)
	}
	if got.SalaryFrom == nil || *got.SalaryFrom != 100 || got.SalaryTo == nil || *got.SalaryTo != 200 {
		t.Errorf("unexpected salary %v-%v", got.SalaryFrom, got.SalaryTo)
	}
	if got.Currency == nil || *got.Currency != "RUR" {
		t.Errorf("unexpected currency %v", got.Currency)
	}
}

func TestAverageSalary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	reports := NewReports(db)

	_, ok, err := reports.AverageSalary(ctx)
	if err != nil {
		t.Fatalf("query on empty table: %v", err)
	}
	if ok {
		t.Error("expected no average without salaries")
	}

	mustInsertEmployer(t, db, 1, "Acme")
	mustInsertVacancy(t, db, salaried(10, "A", 100, 200))
	mustInsertVacancy(t, db, salaried(11, "B", 300, 300))
	// one bound only, excluded
	mustInsertVacancy(t, db, &VacancyModel{VacancyId: 12, Title: "C", SalaryFrom: ptr[int64](10000), EmployerId: 1})
	mustInsertVacancy(t, db, &VacancyModel{VacancyId: 13, Title: "D", EmployerId: 1})

	avg, ok, err := reports.AverageSalary(ctx)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !ok {
		t.Fatal("expected an average")
	}
	if avg != 225 {
		t.Errorf("expected 225, got %v", avg)
	}
}

func TestAverageSalary_IntegerMidpoint(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mustInsertEmployer(t, db, 1, "Acme")
	// midpoint of 100 and 101 truncates to 100
	mustInsertVacancy(t, db, salaried(10, "A", 100, 101))

	avg, _, err := NewReports(db).AverageSalary(ctx)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if avg != 100 {
		t.Errorf("expected 100, got %v", avg)
	}
}

func TestVacanciesAboveAverageSalary_StrictlyGreater(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mustInsertEmployer(t, db, 1, "Acme")
	// midpoints 100, 200, 300, average exactly 200
	mustInsertVacancy(t, db, salaried(10, "Low", 100, 100))
	mustInsertVacancy(t, db, salaried(11, "Average", 200, 200))
	mustInsertVacancy(t, db, salaried(12, "High", 250, 350))

	rows, err := NewReports(db).VacanciesAboveAverageSalary(ctx)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %+v", rows)
	}
	if rows[0].Title != "High" || rows[0].Midpoint != 300 {
		t.Errorf("unexpected row %+v", rows[0])
	}
}

func TestVacanciesAboveAverageSalary_Empty(t *testing.T) {
	db := setupTestDB(t)

	rows, err := NewReports(db).VacanciesAboveAverageSalary(context.Background())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %+v", rows)
	}
}

func TestVacanciesByKeyword(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mustInsertEmployer(t, db, 1, "Acme")
	mustInsertVacancy(t, db, &VacancyModel{VacancyId: 10, Title: "Senior Python Developer", EmployerId: 1})
	mustInsertVacancy(t, db, &VacancyModel{VacancyId: 11, Title: "python intern", EmployerId: 1})
	mustInsertVacancy(t, db, &VacancyModel{VacancyId: 12, Title: "Go developer", EmployerId: 1})

	tests := []struct {
		keyword string
		want    []int64
	}{
		{"python", []int64{10, 11}},
		{"PYTHON", []int64{10, 11}},
		{"developer", []int64{12, 10}},
		{"rust", nil},
		{"'; DROP TABLE vacancies; --", nil},
	}

	reports := NewReports(db)
	for _, tt := range tests {
		rows, err := reports.VacanciesByKeyword(ctx, tt.keyword)
		if err != nil {
			t.Fatalf("keyword %q: %v", tt.keyword, err)
		}

		if len(rows) != len(tt.want) {
			t.Errorf("keyword %q: expected %v, got %+v", tt.keyword, tt.want, rows)
			continue
		}
		for i, id := range tt.want {
			if rows[i].VacancyId != id {
				t.Errorf("keyword %q: row %d id = %d, want %d", tt.keyword, i, rows[i].VacancyId, id)
			}
		}
	}

	count, err := db.NewSelect().Model((*VacancyModel)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected vacancies to be intact, got %d rows", count)
	}
}

func TestVacanciesByKeyword_Cyrillic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mustInsertEmployer(t, db, 1, "Яндекс")
	mustInsertVacancy(t, db, &VacancyModel{VacancyId: 10, Title: "Ведущий Разработчик Python", EmployerId: 1})
	mustInsertVacancy(t, db, &VacancyModel{VacancyId: 11, Title: "Аналитик данных", EmployerId: 1})

	reports := NewReports(db)
	for _, keyword := range []string{"разработчик", "Разработчик", "РАЗРАБОТЧИК", "ведущий разработчик", "python"} {
		rows, err := reports.VacanciesByKeyword(ctx, keyword)
		if err != nil {
			t.Fatalf("keyword %q: %v", keyword, err)
		}
		if len(rows) != 1 || rows[0].VacancyId != 10 {
			t.Errorf("keyword %q: expected vacancy 10, got %+v", keyword, rows)
		}
	}

	rows, err := reports.VacanciesByKeyword(ctx, "ДАННЫХ")
	if err != nil {
		t.Fatalf("keyword: %v", err)
	}
	if len(rows) != 1 || rows[0].VacancyId != 11 {
		t.Errorf("expected vacancy 11, got %+v", rows)
	}
}
