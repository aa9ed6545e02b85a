package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewSubscriber(t *testing.T) {
	before := time.Now().UTC()
	a := NewSubscriber("Jo Soap", "josoap@example.com")
	b := NewSubscriber("Jo Soap", "josoap@example.com")

	if a.ID == b.ID {
		t.Fatal("expected distinct ids")
	}
	if a.Name != "Jo Soap" || a.Email != "josoap@example.com" {
		t.Errorf("unexpected fields: %+v", a)
	}
	if a.SubscribedAt.Location() != time.UTC {
		t.Errorf("SubscribedAt not UTC: %v", a.SubscribedAt.Location())
	}
	if a.SubscribedAt.Before(before) {
		t.Errorf("SubscribedAt %v before %v", a.SubscribedAt, before)
	}
}

func TestInsert_SpanMarksFailure(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	// The pool connects lazily, so the failure surfaces on Exec.
	pool, err := pgxpool.New(context.Background(), "postgres://u:p@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	defer pool.Close()

	ctx, parent := tp.Tracer("test").Start(context.Background(), "Adding a new subscriber")
	err = NewPostgres(pool).Insert(ctx, NewSubscriber("Jo", "jo@example.com"))
	parent.End()
	if err == nil {
		t.Fatal("expected insert to fail without a database")
	}

	var child sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.Name() == "Saving new subscriber details to database" {
			child = s
		}
	}
	if child == nil {
		t.Fatal("insert span not recorded")
	}
	if child.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Errorf("parent = %s, want %s", child.Parent().SpanID(), parent.SpanContext().SpanID())
	}
	if child.Status().Code != codes.Error {
		t.Errorf("status = %+v, want error", child.Status())
	}
}
