package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/catalog"
	"fintrack/internal/classifier"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type fakeRepo struct {
	mu  sync.Mutex
	txs map[string]core.Transaction

	updateCalls int
	listCalls   int
}

func newFakeRepo(txs ...core.Transaction) *fakeRepo {
	r := &fakeRepo{txs: make(map[string]core.Transaction)}
	for _, tx := range txs {
		r.txs[tx.ID] = tx
	}
	return r
}

func (r *fakeRepo) GetTransaction(_ context.Context, ownerID, id string) (core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok || tx.OwnerID != ownerID {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

func (r *fakeRepo) ListTransactions(_ context.Context, ownerID string, f storage.Filter) ([]core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	var out []core.Transaction
	for _, tx := range r.txs {
		if tx.OwnerID != ownerID {
			continue
		}
		if f.Category != "" && (tx.Category == nil || *tx.Category != f.Category) {
			continue
		}
		if !f.Range.Contains(tx.Timestamp) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *fakeRepo) UpdateCategory(_ context.Context, ownerID, id string, category *string) (core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	tx, ok := r.txs[id]
	if !ok || tx.OwnerID != ownerID {
		return core.Transaction{}, core.ErrNotFound
	}
	tx.Category = category
	r.txs[id] = tx
	return tx, nil
}

func (r *fakeRepo) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.ID == "" {
		tx.ID = "generated"
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	r.txs[tx.ID] = tx
	return tx, nil
}

func (r *fakeRepo) CreateAccount(_ context.Context, acc core.Account) (core.Account, error) {
	return acc, nil
}

func (r *fakeRepo) ListAccounts(_ context.Context, _ string) ([]core.Account, error) {
	return nil, nil
}

type fakeSuggester struct {
	mu         sync.Mutex
	calls      int
	failures   []error
	suggestion core.CategorySuggestion

	started chan struct{}
	release chan struct{}
}

func (f *fakeSuggester) Suggest(_ context.Context, _ core.Transaction) (core.CategorySuggestion, error) {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.failures) > 0 {
		err = f.failures[0]
		f.failures = f.failures[1:]
	}
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if err != nil {
		return core.CategorySuggestion{}, err
	}
	return f.suggestion, nil
}

func (f *fakeSuggester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []*amqp.CategoryUpdatedMessage
	err      error
}

func (p *fakePublisher) PublishCategoryUpdated(_ context.Context, msg *amqp.CategoryUpdatedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func testTransaction(id, ownerID string, category *string) core.Transaction {
	return core.Transaction{
		ID:             id,
		OwnerID:        ownerID,
		Amount:         core.Money{Cents: 45000},
		Flow:           core.Debit,
		Type:           core.UPI,
		Timestamp:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Category:       category,
		PayerAccountID: "acc-1",
		Details: core.Details{
			UPI: &core.UPIDetails{PayeeVPA: "grocer@upi", PayeeName: "Local Grocer"},
		},
	}
}

func newCategorizationService(repo *fakeRepo, sugg classifier.Suggester, pub EventPublisher, summaries cache.Cache[[]core.CategorySpending]) *CategorizationService {
	src := catalog.NewStatic()
	svc := NewCategorizationService(repo, src, sugg, pub, summaries)
	svc.retryBackoff = time.Millisecond
	return svc
}

func TestSetCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("persists and publishes", func(t *testing.T) {
		repo := newFakeRepo(testTransaction("tx-1", "user-1", nil))
		pub := &fakePublisher{}
		summaries := cache.NewLRUCache[[]core.CategorySpending](16, time.Minute)
		summaries.Set(summaryKeyPrefix("user-1")+"0:0:debit", nil)
		svc := newCategorizationService(repo, nil, pub, summaries)

		updated, err := svc.SetCategory(ctx, "user-1", "tx-1", "Food & Dining")
		if err != nil {
			t.Fatalf("SetCategory() error = %v", err)
		}
		if updated.Category == nil || *updated.Category != "Food & Dining" {
			t.Errorf("category = %v, want Food & Dining", updated.Category)
		}
		if len(pub.messages) != 1 {
			t.Fatalf("published %d messages, want 1", len(pub.messages))
		}
		if pub.messages[0].TransactionID != "tx-1" || pub.messages[0].Category != "Food & Dining" {
			t.Errorf("unexpected message %+v", pub.messages[0])
		}
		if summaries.Size() != 0 {
			t.Errorf("summary cache not invalidated, size = %d", summaries.Size())
		}
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		repo := newFakeRepo(testTransaction("tx-1", "user-1", nil))
		svc := newCategorizationService(repo, nil, nil, nil)

		_, err := svc.SetCategory(ctx, "user-1", "tx-1", "Yachts")
		if !errors.Is(err, core.ErrInvalidCategory) {
			t.Fatalf("error = %v, want ErrInvalidCategory", err)
		}
		if repo.updateCalls != 0 {
			t.Errorf("update called %d times, want 0", repo.updateCalls)
		}
	})

	t.Run("not found for other owner", func(t *testing.T) {
		repo := newFakeRepo(testTransaction("tx-1", "user-1", nil))
		svc := newCategorizationService(repo, nil, nil, nil)

		if _, err := svc.SetCategory(ctx, "user-2", "tx-1", "Food & Dining"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("same category is a no-op", func(t *testing.T) {
		existing := "Food & Dining"
		repo := newFakeRepo(testTransaction("tx-1", "user-1", &existing))
		pub := &fakePublisher{}
		svc := newCategorizationService(repo, nil, pub, nil)

		updated, err := svc.SetCategory(ctx, "user-1", "tx-1", "Food & Dining")
		if err != nil {
			t.Fatalf("SetCategory() error = %v", err)
		}
		if updated.Category == nil || *updated.Category != existing {
			t.Errorf("category = %v, want %q", updated.Category, existing)
		}
		if repo.updateCalls != 0 {
			t.Errorf("update called %d times, want 0", repo.updateCalls)
		}
		if len(pub.messages) != 0 {
			t.Errorf("published %d messages, want 0", len(pub.messages))
		}
	})

	t.Run("re-categorization is allowed", func(t *testing.T) {
		existing := "Food & Dining"
		repo := newFakeRepo(testTransaction("tx-1", "user-1", &existing))
		svc := newCategorizationService(repo, nil, nil, nil)

		updated, err := svc.SetCategory(ctx, "user-1", "tx-1", "Transport")
		if err != nil {
			t.Fatalf("SetCategory() error = %v", err)
		}
		if *updated.Category != "Transport" {
			t.Errorf("category = %q, want Transport", *updated.Category)
		}
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		repo := newFakeRepo(testTransaction("tx-1", "user-1", nil))
		pub := &fakePublisher{err: errors.New("broker down")}
		svc := newCategorizationService(repo, nil, pub, nil)

		updated, err := svc.SetCategory(ctx, "user-1", "tx-1", "Food & Dining")
		if err != nil {
			t.Fatalf("SetCategory() error = %v", err)
		}
		if updated.Category == nil || *updated.Category != "Food & Dining" {
			t.Errorf("category = %v, want Food & Dining", updated.Category)
		}
	})
}

func TestClearCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("resets to uncategorized", func(t *testing.T) {
		existing := "Food & Dining"
		repo := newFakeRepo(testTransaction("tx-1", "user-1", &existing))
		pub := &fakePublisher{}
		svc := newCategorizationService(repo, nil, pub, nil)

		updated, err := svc.ClearCategory(ctx, "user-1", "tx-1")
		if err != nil {
			t.Fatalf("ClearCategory() error = %v", err)
		}
		if updated.Category != nil {
			t.Errorf("category = %q, want nil", *updated.Category)
		}
		if len(pub.messages) != 1 || pub.messages[0].Category != "" {
			t.Errorf("unexpected messages %+v", pub.messages)
		}
	})

	t.Run("already uncategorized is a no-op", func(t *testing.T) {
		repo := newFakeRepo(testTransaction("tx-1", "user-1", nil))
		pub := &fakePublisher{}
		svc := newCategorizationService(repo, nil, pub, nil)

		if _, err := svc.ClearCategory(ctx, "user-1", "tx-1"); err != nil {
			t.Fatalf("ClearCategory() error = %v", err)
		}
		if repo.updateCalls != 0 || len(pub.messages) != 0 {
			t.Errorf("expected no writes, got %d updates and %d messages", repo.updateCalls, len(pub.messages))
		}
	})
}

func TestRequestSuggestion(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the classifier suggestion", func(t *testing.T) {
		repo := newFakeRepo(testTransaction("tx-1", "user-1", nil))
		sugg := &fakeSuggester{suggestion: core.CategorySuggestion{Category: "Food & Dining", Confidence: 0.91}}
		svc := newCategorizationService(repo, sugg, nil, nil)

		got, err := svc.RequestSuggestion(ctx, "user-1", "tx-1")
		if err != nil {
			t.Fatalf("RequestSuggestion() error = %v", err)
		}
		if got == nil || got.Category != "Food & Dining" || got.Confidence != 0.91 {
			t.Errorf("suggestion = %+v, want Food & Dining @ 0.91", got)
		}
	})

	t.Run("unknown transaction is surfaced", func(t *testing.T) {
		repo := newFakeRepo()
		svc := newCategorizationService(repo, &fakeSuggester{}, nil, nil)

		if _, err := svc.RequestSuggestion(ctx, "user-1", "missing"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("non-retryable failure degrades to no suggestion", func(t *testing.T) {
		repo := newFakeRepo(testTransaction("tx-1", "user-1", nil))
		sugg := &fakeSuggester{failures: []error{classifier.ErrPredictionFailed}}
		svc := newCategorizationService(repo, sugg, nil, nil)

		got, err := svc.RequestSuggestion(ctx, "user-1", "tx-1")
		if err != nil {
			t.Fatalf("RequestSuggestion() error = %v", err)
		}
		if got != nil {
			t.Errorf("suggestion = %+v, want nil", got)
		}
		if sugg.callCount() != 1 {
			t.Errorf("classifier called %d times, want 1", sugg.callCount())
		}
	})

	t.Run("retries once on timeout", func(t *testing.T) {
		repo := newFakeRepo(testTransaction("tx-1", "user-1", nil))
		sugg := &fakeSuggester{
			failures:   []error{classifier.ErrTimeout},
			suggestion: core.CategorySuggestion{Category: "Transport", Confidence: 0.7},
		}
		svc := newCategorizationService(repo, sugg, nil, nil)

		got, err := svc.RequestSuggestion(ctx, "user-1", "tx-1")
		if err != nil {
			t.Fatalf("RequestSuggestion() error = %v", err)
		}
		if got == nil || got.Category != "Transport" {
			t.Errorf("suggestion = %+v, want Transport", got)
		}
		if sugg.callCount() != 2 {
			t.Errorf("classifier called %d times, want 2", sugg.callCount())
		}
	})

	t.Run("gives up after the retry", func(t *testing.T) {
		repo := newFakeRepo(testTransaction("tx-1", "user-1", nil))
		sugg := &fakeSuggester{failures: []error{classifier.ErrTimeout, classifier.ErrModelUnavailable}}
		svc := newCategorizationService(repo, sugg, nil, nil)

		got, err := svc.RequestSuggestion(ctx, "user-1", "tx-1")
		if err != nil {
			t.Fatalf("RequestSuggestion() error = %v", err)
		}
		if got != nil {
			t.Errorf("suggestion = %+v, want nil", got)
		}
		if sugg.callCount() != 2 {
			t.Errorf("classifier called %d times, want 2", sugg.callCount())
		}
	})

	t.Run("concurrent requests share one classifier call", func(t *testing.T) {
		repo := newFakeRepo(testTransaction("tx-1", "user-1", nil))
		sugg := &fakeSuggester{
			suggestion: core.CategorySuggestion{Category: "Food & Dining", Confidence: 0.8},
			started:    make(chan struct{}, 1),
			release:    make(chan struct{}),
		}
		svc := newCategorizationService(repo, sugg, nil, nil)

		const callers = 4
		var wg sync.WaitGroup
		results := make([]*core.CategorySuggestion, callers)

		wg.Add(1)
		go func() {
			defer wg.Done()
			results[0], _ = svc.RequestSuggestion(ctx, "user-1", "tx-1")
		}()
		<-sugg.started

		for i := 1; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = svc.RequestSuggestion(ctx, "user-1", "tx-1")
			}(i)
		}
		// Give the followers a moment to join the in-flight call.
		time.Sleep(50 * time.Millisecond)
		close(sugg.release)
		wg.Wait()

		if sugg.callCount() != 1 {
			t.Errorf("classifier called %d times, want 1", sugg.callCount())
		}
		for i, got := range results {
			if got == nil || got.Category != "Food & Dining" {
				t.Errorf("caller %d got %+v, want Food & Dining", i, got)
			}
		}
	})
}
