// Package store persists newsletter subscribers.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Subscriber is one newsletter sign-up.
type Subscriber struct {
	ID           uuid.UUID
	Email        string
	Name         string
	SubscribedAt time.Time
}

// NewSubscriber stamps a fresh id and the current UTC time.
func NewSubscriber(name, email string) Subscriber {
	return Subscriber{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		SubscribedAt: time.Now().UTC(),
	}
}

// SubscriberStore is what the HTTP layer needs from persistence.
type SubscriberStore interface {
	Insert(ctx context.Context, s Subscriber) error
}

// Postgres stores subscribers in the subscriptions table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const insertSubscriber = `
	INSERT INTO subscriptions (id, email, name, subscribed_at)
	VALUES ($1, $2, $3, $4)
`

// Insert writes s with a single parameterized statement.
func (p *Postgres) Insert(ctx context.Context, s Subscriber) error {
	ctx, span := otel.Tracer("newsletter/internal/store").Start(ctx, "Saving new subscriber details to database")
	defer span.End()

	if _, err := p.pool.Exec(ctx, insertSubscriber, s.ID, s.Email, s.Name, s.SubscribedAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

// ListByEmail returns the rows stored for email, oldest first.
func (p *Postgres) ListByEmail(ctx context.Context, email string) ([]Subscriber, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT id, email, name, subscribed_at FROM subscriptions WHERE email = $1 ORDER BY subscribed_at",
		email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var s Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &s.SubscribedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of stored subscribers.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM subscriptions").Scan(&n)
	return n, err
}

// Ping reports whether the pool can reach the database.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
