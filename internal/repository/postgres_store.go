package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-console/internal/domain"
)

type postgresTicketStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketStore instantiates the Postgres-backed store.
func NewPostgresTicketStore(pool *pgxpool.Pool) TicketStore {
	return &postgresTicketStore{pool: pool}
}

func (s *postgresTicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (requester_id, subject, category, priority, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return s.pool.QueryRow(ctx, query,
		ticket.RequesterID,
		ticket.Subject,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt)
}

func (s *postgresTicketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, requester_id, subject, category, priority, status,
               assigned_admin, resolution, reject_reason, created_at, accepted_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := s.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.RequesterID,
		&ticket.Subject,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedAdmin,
		&ticket.Resolution,
		&ticket.RejectReason,
		&ticket.CreatedAt,
		&ticket.AcceptedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	messages, err := s.listMessages(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.Messages = messages

	history, err := s.listStatusHistory(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.StatusHistory = history
	return &ticket, nil
}

func (s *postgresTicketStore) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT id, requester_id, subject, category, priority, status,
                    assigned_admin, resolution, reject_reason, created_at, accepted_at
             FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssignedAdmin != nil {
		args = append(args, *filter.AssignedAdmin)
		clauses = append(clauses, fmt.Sprintf("assigned_admin=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.RequesterID,
			&ticket.Subject,
			&ticket.Category,
			&ticket.Priority,
			&ticket.Status,
			&ticket.AssignedAdmin,
			&ticket.Resolution,
			&ticket.RejectReason,
			&ticket.CreatedAt,
			&ticket.AcceptedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

// AcceptIfPending relies on the conditional WHERE to make the accept race
// resolve inside a single statement; RowsAffected tells the loser apart.
func (s *postgresTicketStore) AcceptIfPending(ctx context.Context, ticketID, adminID string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET status=$1, assigned_admin=$2, accepted_at=$3
        WHERE id=$4 AND status=$5`
	cmd, err := s.pool.Exec(ctx, query,
		domain.TicketStatusAccepted, adminID, at, ticketID, domain.TicketStatusPending)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (s *postgresTicketStore) PromoteIfAccepted(ctx context.Context, ticketID string) (bool, error) {
	const query = `UPDATE tickets SET status=$1 WHERE id=$2 AND status=$3`
	cmd, err := s.pool.Exec(ctx, query,
		domain.TicketStatusInProgress, ticketID, domain.TicketStatusAccepted)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (s *postgresTicketStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, assigned_admin=$2, resolution=$3,
            reject_reason=$4, accepted_at=$5
        WHERE id=$6`
	cmd, err := s.pool.Exec(ctx, query,
		ticket.Status,
		ticket.AssignedAdmin,
		ticket.Resolution,
		ticket.RejectReason,
		ticket.AcceptedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateWithHistory wraps the ticket update and the history insert in one
// transaction so a resolved or reopened ticket never lands without its
// history row.
func (s *postgresTicketStore) UpdateWithHistory(ctx context.Context, ticket *domain.Ticket, entry *domain.StatusHistoryEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const updateQuery = `
        UPDATE tickets SET status=$1, assigned_admin=$2, resolution=$3,
            reject_reason=$4, accepted_at=$5
        WHERE id=$6`
	cmd, err := tx.Exec(ctx, updateQuery,
		ticket.Status,
		ticket.AssignedAdmin,
		ticket.Resolution,
		ticket.RejectReason,
		ticket.AcceptedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	const historyQuery = `
        INSERT INTO ticket_status_history (ticket_id, status, performed_by, performed_by_name, reason, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	if err := tx.QueryRow(ctx, historyQuery,
		entry.TicketID,
		entry.Status,
		entry.PerformedBy,
		entry.PerformedByName,
		entry.Reason,
		entry.Timestamp,
	).Scan(&entry.ID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AppendMessageIfMessageable re-checks the status inside the INSERT itself;
// a ticket that left ACCEPTED/IN_PROGRESS between the caller's read and this
// write produces no row.
func (s *postgresTicketStore) AppendMessageIfMessageable(ctx context.Context, msg *domain.Message) (bool, error) {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender_type, sender_id, sender_display_name, body, created_at)
        SELECT id, $2, $3, $4, $5, $6
        FROM tickets WHERE id=$1 AND status IN ($7,$8)
        RETURNING id`
	err := s.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderType,
		msg.SenderID,
		msg.SenderDisplayName,
		msg.Text,
		msg.Timestamp,
		domain.TicketStatusAccepted,
		domain.TicketStatusInProgress,
	).Scan(&msg.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *postgresTicketStore) listMessages(ctx context.Context, ticketID string) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, sender_type, sender_id, sender_display_name, body, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderType,
			&msg.SenderID,
			&msg.SenderDisplayName,
			&msg.Text,
			&msg.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (s *postgresTicketStore) listStatusHistory(ctx context.Context, ticketID string) ([]domain.StatusHistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, status, performed_by, performed_by_name, reason, created_at
        FROM ticket_status_history WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusHistoryEntry
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Status,
			&entry.PerformedBy,
			&entry.PerformedByName,
			&entry.Reason,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
