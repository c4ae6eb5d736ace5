package db

import (
	"github.com/uptrace/bun"
)

type EmployerModel struct {
	bun.BaseModel `bun:"table:employers,alias:e"`
	EmployerId    int64  `bun:"employer_id,pk"`
	Name          string `bun:"name,type:varchar(255),notnull"`
	Url           string `bun:"url,type:varchar(255),notnull"`
}

type VacancyModel struct {
	bun.BaseModel `bun:"table:vacancies,alias:v"`
	VacancyId     int64   `bun:"vacancy_id,pk"`
	Title         string  `bun:"title,type:varchar(255),notnull"`
	SalaryFrom    *int64  `bun:"salary_from"`
	SalaryTo      *int64  `bun:"salary_to"`
	Currency      *string `bun:"currency,type:varchar(10)"`
	EmployerId    int64   `bun:"employer_id,notnull"`
	Url           string  `bun:"url,type:varchar(255),notnull"`
}
