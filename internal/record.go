package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/csr-ugra/hh-vacancy-loader/internal/apperror"
	"github.com/csr-ugra/hh-vacancy-loader/internal/db"
	"github.com/csr-ugra/hh-vacancy-loader/internal/util"
	"math"
	"strconv"
)

// ExternalId is an identifier as the hh.ru api sends it, usually a string of
// digits and sometimes a plain number. Decoding never fails; whether the value
// is usable is decided by Int64.
type ExternalId struct {
	raw json.RawMessage
}

func NewExternalId(id int64) ExternalId {
	return ExternalId{raw: json.RawMessage(strconv.Quote(strconv.FormatInt(id, 10)))}
}

func (id *ExternalId) UnmarshalJSON(b []byte) error {
	id.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (id ExternalId) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return []byte("null"), nil
	}
	return id.raw, nil
}

func (id ExternalId) Present() bool {
	return len(id.raw) > 0 && !bytes.Equal(id.raw, []byte("null"))
}

func (id ExternalId) String() string {
	if !id.Present() {
		return ""
	}

	var s string
	if err := json.Unmarshal(id.raw, &s); err == nil {
		return s
	}

	return string(id.raw)
}

// Int64 returns the identifier as a positive integer.
func (id ExternalId) Int64() (int64, bool) {
	if !id.Present() {
		return 0, false
	}

	var s string
	if err := json.Unmarshal(id.raw, &s); err != nil {
		s = string(id.raw)
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}

	return v, true
}

type RawEmployer struct {
	Id           ExternalId `json:"id"`
	Name         string     `json:"name"`
	AlternateUrl string     `json:"alternate_url"`
}

type RawVacancy struct {
	Id           ExternalId      `json:"id"`
	Name         *string         `json:"name"`
	Employer     json.RawMessage `json:"employer,omitempty"`
	Salary       json.RawMessage `json:"salary,omitempty"`
	AlternateUrl string          `json:"alternate_url"`
}

type rawEmployerRef struct {
	Id ExternalId `json:"id"`
}

type rawSalary struct {
	From     *json.Number `json:"from"`
	To       *json.Number `json:"to"`
	Currency *string      `json:"currency"`
}

type Employer struct {
	Id   int64
	Name string
	Url  string
}

type Vacancy struct {
	Id         int64
	Title      string
	SalaryFrom *int64
	SalaryTo   *int64
	Currency   *string
	EmployerId int64
	Url        string
}

func (e *Employer) Model() *db.EmployerModel {
	return &db.EmployerModel{
		EmployerId: e.Id,
		Name:       e.Name,
		Url:        e.Url,
	}
}

func (v *Vacancy) Model() *db.VacancyModel {
	return &db.VacancyModel{
		VacancyId:  v.Id,
		Title:      v.Title,
		SalaryFrom: v.SalaryFrom,
		SalaryTo:   v.SalaryTo,
		Currency:   v.Currency,
		EmployerId: v.EmployerId,
		Url:        v.Url,
	}
}

// NormalizeEmployer converts employer metadata into its stored shape. A missing
// name is stored as an empty string.
func NormalizeEmployer(raw *RawEmployer) (*Employer, error) {
	id, ok := raw.Id.Int64()
	if !ok {
		return nil, apperror.InvalidInput(fmt.Sprintf("employer id %q is not usable", raw.Id.String()), nil)
	}

	return &Employer{
		Id:   id,
		Name: util.CleanText(raw.Name),
		Url:  raw.AlternateUrl,
	}, nil
}

// ValidateVacancy checks the fields a vacancy cannot be stored without: the
// id, the title and an employer reference with an id.
func ValidateVacancy(raw RawVacancy) error {
	if !raw.Id.Present() {
		return NewValidationError("id", "")
	}
	if _, ok := raw.Id.Int64(); !ok {
		return NewValidationError("id", raw.Id.String())
	}

	if raw.Name == nil || util.CleanText(*raw.Name) == "" {
		return NewValidationError("name", raw.Id.String())
	}

	if _, err := raw.employerId(); err != nil {
		return err
	}

	return nil
}

func IsValidVacancy(raw RawVacancy) bool {
	return ValidateVacancy(raw) == nil
}

// NormalizeVacancy validates raw and converts it into its stored shape. A salary
// that is absent or malformed leaves both bounds and the currency empty.
func NormalizeVacancy(raw RawVacancy) (*Vacancy, error) {
	if err := ValidateVacancy(raw); err != nil {
		return nil, err
	}

	id, _ := raw.Id.Int64()
	employerId, _ := raw.employerId()

	vacancy := &Vacancy{
		Id:         id,
		Title:      util.CleanText(*raw.Name),
		EmployerId: employerId,
		Url:        raw.AlternateUrl,
	}

	if salary, ok := parseSalary(raw.Salary); ok {
		vacancy.SalaryFrom = salary.from
		vacancy.SalaryTo = salary.to
		vacancy.Currency = salary.currency
	}

	return vacancy, nil
}

// SalaryMalformed reports a salary that is present but could not be read.
func (v RawVacancy) SalaryMalformed() bool {
	if isNull(v.Salary) {
		return false
	}

	_, ok := parseSalary(v.Salary)
	return !ok
}

func (v RawVacancy) employerId() (int64, error) {
	if isNull(v.Employer) {
		return 0, NewValidationError("employer", v.Id.String())
	}

	var ref rawEmployerRef
	if !isObject(v.Employer) || json.Unmarshal(v.Employer, &ref) != nil {
		return 0, NewValidationError("employer", v.Id.String())
	}

	id, ok := ref.Id.Int64()
	if !ok {
		return 0, NewValidationError("employer.id", v.Id.String())
	}

	return id, nil
}

type salary struct {
	from     *int64
	to       *int64
	currency *string
}

func parseSalary(raw json.RawMessage) (s salary, ok bool) {
	if isNull(raw) || !isObject(raw) {
		return salary{}, false
	}

	var rs rawSalary
	if err := json.Unmarshal(raw, &rs); err != nil {
		return salary{}, false
	}

	if s.from, ok = salaryBound(rs.From); !ok {
		return salary{}, false
	}
	if s.to, ok = salaryBound(rs.To); !ok {
		return salary{}, false
	}
	s.currency = rs.Currency

	return s, true
}

func salaryBound(n *json.Number) (*int64, bool) {
	if n == nil {
		return nil, true
	}

	if v, err := n.Int64(); err == nil {
		return &v, true
	}

	// float64(math.MaxInt64) rounds up to 2^63, so >= rejects it as well.
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, false
	}

	v := int64(f)
	return &v, true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
