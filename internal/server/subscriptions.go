package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"newsletter/internal/email"
	"newsletter/internal/store"
)

const (
	welcomeTimeout = 10 * time.Second
	tracerName     = "newsletter/internal/server"
)

// handleSubscribe handles POST /subscriptions: validate the form, insert one
// row, answer 200. Store failures are logged in full and surface only as 500.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r.Context())

	form, err := parseSubscribeForm(w, r)
	if err != nil {
		log.Info("rejected subscription", "err", err)
		s.metrics.RecordSubscription(OutcomeRejected)
		if errors.Is(err, errBodyTooLarge) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "Adding a new subscriber", trace.WithAttributes(
		attribute.String("request_id", RequestIDFromContext(r.Context())),
		attribute.String("subscriber_email", form.Email),
		attribute.String("subscriber_name", form.Name),
	))
	defer span.End()

	sub := store.NewSubscriber(form.Name, form.Email)
	if err := s.store.Insert(ctx, sub); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		log.Error("failed to save subscriber", "subscriber_email", form.Email, "err", err)
		s.metrics.RecordSubscription(OutcomeFailed)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Info("subscriber saved to database", "subscriber_id", sub.ID.String(), "subscriber_email", sub.Email)
	s.metrics.RecordSubscription(OutcomeCreated)
	s.sendWelcome(ctx, sub)

	w.WriteHeader(http.StatusOK)
}

// sendWelcome mails the new subscriber in the background. The outcome never
// affects the response.
func (s *Server) sendWelcome(ctx context.Context, sub store.Subscriber) {
	if s.notifier == nil {
		return
	}

	log := s.requestLogger(ctx)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), welcomeTimeout)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()

		err := s.notifier.Welcome(ctx, email.Recipient{Name: sub.Name, Email: sub.Email})
		s.metrics.RecordWelcome(err == nil)
		if err != nil {
			log.Warn("welcome mail failed", "subscriber_id", sub.ID.String(), "err", err)
		}
	}()
}
