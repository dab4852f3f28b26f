package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/service"
)

// DefaultSweepBatch caps how many documents one sweep forwards
const DefaultSweepBatch = 10

// PendingLister returns documents the webhook has not accepted yet
type PendingLister interface {
	ListPending(ctx context.Context, limit int) ([]*domain.Document, error)
}

// Forwarder forwards a single document
type Forwarder interface {
	Forward(ctx context.Context, documentID string) (*service.ForwardResult, error)
}

// PendingForwarder forwards up to batch pending documents per pass. The
// lister puts failed documents behind never-attempted ones.
type PendingForwarder struct {
	docs      PendingLister
	forwarder Forwarder
	batch     int
}

func NewPendingForwarder(docs PendingLister, forwarder Forwarder, batch int) *PendingForwarder {
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	return &PendingForwarder{docs: docs, forwarder: forwarder, batch: batch}
}

func (p *PendingForwarder) Process(ctx context.Context) error {
	docs, err := p.docs.ListPending(ctx, p.batch)
	if err != nil {
		return fmt.Errorf("failed to list pending documents: %w", err)
	}

	var failed int
	for _, doc := range docs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := p.forwarder.Forward(ctx, doc.ID); err != nil {
			failed++
			log.Printf("forward sweep: document %s: %v", doc.ID, err)
		}
	}

	if len(docs) > 0 {
		log.Printf("forward sweep: %d forwarded, %d failed", len(docs)-failed, failed)
	}
	return nil
}
