package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"game-tournament-system/models"
	"game-tournament-system/services"
	"game-tournament-system/store"
)

// ReconciliationWorker sweeps deposits stuck in pending, usually because the
// user never came back from the gateway or the verify call failed mid-flight.
// Each sweep asks the gateway what actually happened: settled payments are
// credited through the same idempotent path the verify endpoint uses, dead
// ones are marked failed.
type ReconciliationWorker struct {
	ledger   store.LedgerStore
	gateway  services.PaymentGateway
	interval time.Duration
	minAge   time.Duration
}

func NewReconciliationWorker(ledger store.LedgerStore, gateway services.PaymentGateway) *ReconciliationWorker {
	return &ReconciliationWorker{
		ledger:   ledger,
		gateway:  gateway,
		interval: 5 * time.Minute,
		minAge:   15 * time.Minute,
	}
}

func (w *ReconciliationWorker) Start(ctx context.Context) {
	log.Println("[RECON] starting deposit reconciliation worker")
	go w.run(ctx)
}

func (w *ReconciliationWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				log.Printf("[RECON] sweep failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("[RECON] deposit reconciliation worker stopped")
			return
		}
	}
}

// sweep inquires every pending deposit older than minAge and resolves it.
func (w *ReconciliationWorker) sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-w.minAge)
	pending, err := w.ledger.PendingDeposits(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var settled, failed, skipped int
	for i := range pending {
		entry := &pending[i]
		switch w.resolve(ctx, entry) {
		case resolvedSettled:
			settled++
		case resolvedFailed:
			failed++
		default:
			skipped++
		}
	}

	log.Printf("[RECON] swept %d pending deposit(s): %d settled, %d failed, %d left pending",
		len(pending), settled, failed, skipped)
	return nil
}

type resolution int

const (
	resolvedSkipped resolution = iota
	resolvedSettled
	resolvedFailed
)

func (w *ReconciliationWorker) resolve(ctx context.Context, entry *models.Transaction) resolution {
	if entry.OrderID == nil {
		return resolvedSkipped
	}

	// No track id means the gateway never acknowledged the payment request;
	// there is nothing to inquire about.
	if entry.TrackID == nil {
		return w.fail(ctx, entry, "payment request never reached the gateway")
	}

	result, err := w.gateway.InquiryPayment(ctx, *entry.TrackID)
	if err != nil {
		// Gateway unreachable; retry on the next sweep.
		log.Printf("[RECON] inquiry failed for order %s: %v", *entry.OrderID, err)
		return resolvedSkipped
	}

	switch result.Outcome {
	case services.VerifySuccess, services.VerifyAlreadyVerified:
		_, credited, err := w.ledger.SettleDeposit(ctx, *entry.OrderID, *entry.TrackID, result.RefNumber)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return resolvedSkipped
			}
			log.Printf("[RECON] failed to settle order %s: %v", *entry.OrderID, err)
			return resolvedSkipped
		}
		if credited {
			log.Printf("[RECON] settled stuck deposit order=%s track=%s ref=%s", *entry.OrderID, *entry.TrackID, result.RefNumber)
		}
		return resolvedSettled
	default:
		return w.fail(ctx, entry, result.Message)
	}
}

func (w *ReconciliationWorker) fail(ctx context.Context, entry *models.Transaction, reason string) resolution {
	entry.Status = models.TxFailed
	if reason != "" {
		entry.Description = reason
	}
	if err := w.ledger.SaveTransaction(ctx, entry); err != nil {
		log.Printf("[RECON] failed to mark order %v failed: %v", entry.OrderID, err)
		return resolvedSkipped
	}
	return resolvedFailed
}
