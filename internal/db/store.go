package db

import (
	"context"
	"fmt"
	"github.com/csr-ugra/hh-vacancy-loader/internal/apperror"
	"github.com/uptrace/bun"
)

// Outcome is the result of an insert-if-absent write. A conflict on the
// business key is a normal outcome, not an error.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeSkipped
	OutcomeOrphan
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeOrphan:
		return "orphan"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func InsertEmployer(ctx context.Context, connection bun.IDB, employer *EmployerModel) (Outcome, error) {
	res, err := connection.NewInsert().
		Model(employer).
		On("CONFLICT (employer_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, apperror.StoreWrite(fmt.Sprintf("failed to insert employer %d", employer.EmployerId), err)
	}

	return outcomeOf(res)
}

// InsertVacancy stores the vacancy unless its id is already present. A vacancy
// whose employer is not stored yet is reported as OutcomeOrphan and not written.
func InsertVacancy(ctx context.Context, connection bun.IDB, vacancy *VacancyModel) (Outcome, error) {
	exists, err := connection.NewSelect().
		Model((*EmployerModel)(nil)).
		Where("employer_id = ?", vacancy.EmployerId).
		Exists(ctx)
	if err != nil {
		return 0, apperror.StoreWrite(fmt.Sprintf("failed to look up employer %d", vacancy.EmployerId), err)
	}
	if !exists {
		return OutcomeOrphan, nil
	}

	res, err := connection.NewInsert().
		Model(vacancy).
		On("CONFLICT (vacancy_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, apperror.StoreWrite(fmt.Sprintf("failed to insert vacancy %d", vacancy.VacancyId), err)
	}

	return outcomeOf(res)
}

func outcomeOf(res interface{ RowsAffected() (int64, error) }) (Outcome, error) {
	c, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.StoreWrite("failed to read affected rows", err)
	}

	if c == 0 {
		return OutcomeSkipped, nil
	}

	return OutcomeInserted, nil
}

// WithSavepoint runs fn inside a savepoint of tx. When fn fails the savepoint
// is rolled back and the transaction stays usable for the following records.
func WithSavepoint(ctx context.Context, tx bun.Tx, fn func() error) error {
	const name = "ingest_record"

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return apperror.StoreConnection("failed to create savepoint", err)
	}

	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return apperror.StoreConnection("failed to roll back to savepoint", rbErr)
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
			return apperror.StoreConnection("failed to release savepoint", relErr)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return apperror.StoreConnection("failed to release savepoint", err)
	}

	return nil
}
