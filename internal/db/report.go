package db

import (
	"context"
	"database/sql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"strings"
)

// midpoint uses integer division on integer columns, the same in postgres and
// sqlite.
const (
	midpointExpr   = "(salary_from + salary_to) / 2"
	bothBoundsExpr = "salary_from IS NOT NULL AND salary_to IS NOT NULL"
)

type CompanyVacancyCount struct {
	Name         string `bun:"name"`
	VacancyCount int64  `bun:"vacancy_count"`
}

type VacancyListing struct {
	EmployerName string  `bun:"employer_name"`
	Title        string  `bun:"title"`
	SalaryFrom   *int64  `bun:"salary_from"`
	SalaryTo     *int64  `bun:"salary_to"`
	Currency     *string `bun:"currency"`
	Url          string  `bun:"url"`
}

type SalaryMidpoint struct {
	Title    string `bun:"title"`
	Midpoint int64  `bun:"midpoint"`
}

type KeywordMatch struct {
	VacancyId  int64   `bun:"vacancy_id"`
	Title      string  `bun:"title"`
	SalaryFrom *int64  `bun:"salary_from"`
	SalaryTo   *int64  `bun:"salary_to"`
	Currency   *string `bun:"currency"`
	EmployerId int64   `bun:"employer_id"`
	Url        string  `bun:"url"`
}

// Reports runs the read-only aggregate queries over stored employers and
// vacancies.
type Reports struct {
	connection bun.IDB
}

func NewReports(connection bun.IDB) *Reports {
	return &Reports{connection: connection}
}

// CompaniesWithVacancyCounts lists every employer name with the number of its
// stored vacancies, zero included.
func (r *Reports) CompaniesWithVacancyCounts(ctx context.Context) (rows []CompanyVacancyCount, err error) {
	err = r.connection.NewSelect().
		TableExpr("employers AS e").
		ColumnExpr("e.name AS name").
		ColumnExpr("COUNT(v.vacancy_id) AS vacancy_count").
		Join("LEFT JOIN vacancies AS v ON v.employer_id = e.employer_id").
		GroupExpr("e.name").
		OrderExpr("e.name").
		Scan(ctx, &rows)

	return rows, err
}

// AllVacancies lists vacancies joined with their employer. Vacancies without a
// stored employer are not listed.
func (r *Reports) AllVacancies(ctx context.Context) (rows []VacancyListing, err error) {
	err = r.connection.NewSelect().
		TableExpr("vacancies AS v").
		ColumnExpr("e.name AS employer_name").
		ColumnExpr("v.title, v.salary_from, v.salary_to, v.currency, v.url").
		Join("JOIN employers AS e ON e.employer_id = v.employer_id").
		OrderExpr("e.name, v.title, v.vacancy_id").
		Scan(ctx, &rows)

	return rows, err
}

// AverageSalary is the rounded mean salary midpoint over vacancies that have
// both bounds. ok is false when there is no such vacancy.
func (r *Reports) AverageSalary(ctx context.Context) (average float64, ok bool, err error) {
	var avg sql.NullFloat64

	err = r.connection.NewSelect().
		TableExpr("vacancies").
		ColumnExpr("ROUND(AVG(" + midpointExpr + "))").
		Where(bothBoundsExpr).
		Scan(ctx, &avg)
	if err != nil {
		return 0, false, err
	}

	return avg.Float64, avg.Valid, nil
}

// VacanciesAboveAverageSalary lists vacancies whose midpoint is strictly greater
// than the unrounded average midpoint.
func (r *Reports) VacanciesAboveAverageSalary(ctx context.Context) (rows []SalaryMidpoint, err error) {
	average := r.connection.NewSelect().
		TableExpr("vacancies").
		ColumnExpr("AVG(" + midpointExpr + ")").
		Where(bothBoundsExpr)

	err = r.connection.NewSelect().
		TableExpr("vacancies").
		ColumnExpr("title").
		ColumnExpr(midpointExpr+" AS midpoint").
		Where(bothBoundsExpr).
		Where(midpointExpr+" > (?)", average).
		OrderExpr("midpoint DESC, title").
		Scan(ctx, &rows)

	return rows, err
}

// VacanciesByKeyword matches keyword as a case-insensitive substring of the
// title, cyrillic included. The keyword is always passed as a query argument.
func (r *Reports) VacanciesByKeyword(ctx context.Context, keyword string) (rows []KeywordMatch, err error) {
	pattern := "%" + strings.ToLower(keyword) + "%"

	lower := "LOWER"
	if r.connection.Dialect().Name() == dialect.SQLite {
		lower = sqliteLower
	}

	err = r.connection.NewSelect().
		TableExpr("vacancies").
		ColumnExpr("vacancy_id, title, salary_from, salary_to, currency, employer_id, url").
		Where(lower+"(title) LIKE ?", pattern).
		OrderExpr("title, vacancy_id").
		Scan(ctx, &rows)

	return rows, err
}
