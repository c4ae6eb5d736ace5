package cmd

import (
	"bufio"
	"context"
	"fmt"
	"github.com/csr-ugra/hh-vacancy-loader/internal/db"
	"github.com/csr-ugra/hh-vacancy-loader/internal/log"
	"github.com/fatih/color"
	"io"
	"strings"
)

type reporter interface {
	CompaniesWithVacancyCounts(ctx context.Context) ([]db.CompanyVacancyCount, error)
	AllVacancies(ctx context.Context) ([]db.VacancyListing, error)
	AverageSalary(ctx context.Context) (float64, bool, error)
	VacanciesAboveAverageSalary(ctx context.Context) ([]db.SalaryMidpoint, error)
	VacanciesByKeyword(ctx context.Context, keyword string) ([]db.KeywordMatch, error)
}

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	itemColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	failColor  = color.New(color.FgRed)
)

// Menu is the interactive report browser shown after ingestion.
type Menu struct {
	reports reporter
	in      io.Reader
	out     io.Writer
	logger  log.Logger
}

func NewMenu(reports reporter, in io.Reader, out io.Writer, logger log.Logger) *Menu {
	return &Menu{
		reports: reports,
		in:      in,
		out:     out,
		logger:  logger,
	}
}

// Run shows the menu until the user picks 0, input ends or ctx is done.
// A failing report is shown as a generic message and the menu continues.
func (m *Menu) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go scanLines(ctx, m.in, lines)

	for {
		m.printOptions()

		choice, ok := m.readLine(ctx, lines)
		if !ok {
			fmt.Fprintln(m.out)
			return nil
		}

		var err error
		switch strings.TrimSpace(choice) {
		case "1":
			err = m.showCompanies(ctx)
		case "2":
			err = m.showVacancies(ctx)
		case "3":
			err = m.showAverageSalary(ctx)
		case "4":
			err = m.showAboveAverage(ctx)
		case "5":
			fmt.Fprint(m.out, "Keyword: ")
			keyword, ok := m.readLine(ctx, lines)
			if !ok {
				fmt.Fprintln(m.out)
				return nil
			}
			err = m.showKeyword(ctx, strings.TrimSpace(keyword))
		case "0":
			fmt.Fprintln(m.out, "Bye")
			return nil
		default:
			warnColor.Fprintln(m.out, "Unknown option, choose a number from the list")
		}

		if err != nil {
			m.logger.WithField("Error", err).Error("report failed")
			failColor.Fprintln(m.out, "Something went wrong, please try again")
		}
	}
}

// scanLines sends the lines of in until it ends or ctx is done, then closes
// lines. A Read that blocks, as on an idle terminal, keeps the goroutine alive
// until the next line arrives or the process exits.
func scanLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (m *Menu) readLine(ctx context.Context, lines <-chan string) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-lines:
		return line, ok
	}
}

func (m *Menu) printOptions() {
	fmt.Fprintln(m.out)
	titleColor.Fprintln(m.out, "hh.ru vacancies")
	fmt.Fprintln(m.out, "1. Companies and vacancy counts")
	fmt.Fprintln(m.out, "2. All vacancies")
	fmt.Fprintln(m.out, "3. Average salary")
	fmt.Fprintln(m.out, "4. Vacancies with salary above average")
	fmt.Fprintln(m.out, "5. Search vacancies by keyword")
	fmt.Fprintln(m.out, "0. Exit")
	fmt.Fprint(m.out, "> ")
}

func (m *Menu) showCompanies(ctx context.Context) error {
	rows, err := m.reports.CompaniesWithVacancyCounts(ctx)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		warnColor.Fprintln(m.out, "No companies stored yet")
		return nil
	}

	for _, r := range rows {
		itemColor.Fprintf(m.out, "%s", r.Name)
		fmt.Fprintf(m.out, ": %d\n", r.VacancyCount)
	}
	return nil
}

func (m *Menu) showVacancies(ctx context.Context) error {
	rows, err := m.reports.AllVacancies(ctx)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		warnColor.Fprintln(m.out, "No vacancies stored yet")
		return nil
	}

	for _, r := range rows {
		itemColor.Fprintf(m.out, "%s", r.Title)
		fmt.Fprintf(m.out, " | %s | %s | %s\n", r.EmployerName, formatSalary(r.SalaryFrom, r.SalaryTo, r.Currency), r.Url)
	}
	return nil
}

func (m *Menu) showAverageSalary(ctx context.Context) error {
	avg, ok, err := m.reports.AverageSalary(ctx)
	if err != nil {
		return err
	}

	if !ok {
		warnColor.Fprintln(m.out, "No vacancies with a full salary range")
		return nil
	}

	fmt.Fprintf(m.out, "Average salary: %.0f\n", avg)
	return nil
}

func (m *Menu) showAboveAverage(ctx context.Context) error {
	rows, err := m.reports.VacanciesAboveAverageSalary(ctx)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		warnColor.Fprintln(m.out, "No vacancies above the average salary")
		return nil
	}

	for _, r := range rows {
		itemColor.Fprintf(m.out, "%s", r.Title)
		fmt.Fprintf(m.out, ": %d\n", r.Midpoint)
	}
	return nil
}

func (m *Menu) showKeyword(ctx context.Context, keyword string) error {
	rows, err := m.reports.VacanciesByKeyword(ctx, keyword)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		warnColor.Fprintf(m.out, "No vacancies matching %q\n", keyword)
		return nil
	}

	for _, r := range rows {
		itemColor.Fprintf(m.out, "%s", r.Title)
		fmt.Fprintf(m.out, " | employer %d | %s | %s\n", r.EmployerId, formatSalary(r.SalaryFrom, r.SalaryTo, r.Currency), r.Url)
	}
	return nil
}

func formatSalary(from, to *int64, currency *string) string {
	cur := ""
	if currency != nil && *currency != "" {
		cur = " " + *currency
	}

	switch {
	case from != nil && to != nil:
		return fmt.Sprintf("%d - %d%s", *from, *to, cur)
	case from != nil:
		return fmt.Sprintf("from %d%s", *from, cur)
	case to != nil:
		return fmt.Sprintf("up to %d%s", *to, cur)
	default:
		return "salary not specified"
	}
}
