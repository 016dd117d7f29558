package events

import (
	"context"

	"order-dispatch/internal/models"
	"order-dispatch/internal/repository"
)

type journalSink struct {
	repo repository.JournalRepository
}

// NewJournalSink writes events to the order journal
func NewJournalSink(repo repository.JournalRepository) Sink {
	return &journalSink{repo: repo}
}

func (s *journalSink) Name() string {
	return "journal"
}

func (s *journalSink) Write(ctx context.Context, ev models.Event) error {
	return s.repo.AppendEvent(ctx, &ev)
}
