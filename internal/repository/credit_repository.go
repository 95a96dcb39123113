package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/session_booking/internal/repository/base"
)

// CreditRepository keeps the prepaid session balance of students.
type CreditRepository struct {
	*base.Repository
}

func NewCreditRepository(repo *base.Repository) *CreditRepository {
	return &CreditRepository{Repository: repo}
}

// Consume takes one credit. It reports false when the balance is empty.
func (r *CreditRepository) Consume(ctx context.Context, studentID int64) (bool, error) {
	query := `
		UPDATE student_credits
		SET balance = balance - 1, updated_at = NOW()
		WHERE student_id = $1 AND balance > 0
	`

	n, err := r.ExecAffected(ctx, query, studentID)
	if err != nil {
		return false, fmt.Errorf("consume credit: %w", err)
	}
	return n > 0, nil
}

// Refund gives one credit back.
func (r *CreditRepository) Refund(ctx context.Context, studentID int64) error {
	query := `
		INSERT INTO student_credits (student_id, balance)
		VALUES ($1, 1)
		ON CONFLICT (student_id) DO UPDATE SET
			balance = student_credits.balance + 1,
			updated_at = NOW()
	`

	if _, err := r.ExecAffected(ctx, query, studentID); err != nil {
		return fmt.Errorf("refund credit: %w", err)
	}
	return nil
}
