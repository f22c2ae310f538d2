package deal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bookswap/bookswap/internal/models"
	"github.com/bookswap/bookswap/internal/notification"
	"github.com/bookswap/bookswap/internal/shipping"
	"github.com/bookswap/bookswap/internal/store"
	"github.com/bookswap/bookswap/internal/wallet"
)

type testNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *testNotifier) last() notification.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		return notification.Message{}
	}
	return n.msgs[len(n.msgs)-1]
}

type env struct {
	store    *store.Memory
	wallets  *wallet.Service
	notifier *testNotifier
	svc      *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemory()
	notifier := &testNotifier{}
	return &env{
		store:    st,
		wallets:  wallet.NewService(st),
		notifier: notifier,
		svc:      NewService(st, shipping.NewMock(), notifier),
	}
}

func (e *env) seedUser(t *testing.T, userID int64) {
	t.Helper()
	if _, err := e.wallets.Provision(context.Background(), userID); err != nil {
		t.Fatalf("provision wallet: %v", err)
	}
}

func (e *env) seedBook(t *testing.T, ownerID int64) models.Book {
	t.Helper()
	b, err := e.store.CreateBook(context.Background(), models.Book{
		OwnerID:   ownerID,
		Title:     "The Master and Margarita",
		Status:    models.BookAvailable,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return b
}

func (e *env) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	w, err := e.wallets.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	return w.Balance
}

const (
	seller int64 = 1
	buyer  int64 = 2
	third  int64 = 3
)

func TestFullDealLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)
	b := e.seedBook(t, seller)

	d, err := e.svc.Create(ctx, buyer, b.ID)
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}
	if d.Status != models.DealPending {
		t.Fatalf("expected pending, got %s", d.Status)
	}
	if got, _ := e.store.GetBook(ctx, b.ID); got.Status != models.BookReserved {
		t.Fatalf("expected book reserved, got %s", got.Status)
	}
	if e.notifier.last().Kind != notification.KindDealCreated {
		t.Fatalf("expected deal_created notification, got %q", e.notifier.last().Kind)
	}

	d, err = e.svc.Accept(ctx, seller, d.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if d.Status != models.DealAccepted || d.EscrowHeld != 1 || d.AcceptedAt == nil {
		t.Fatalf("unexpected accepted deal: %+v", d)
	}
	if bal := e.balance(t, buyer); bal != 0 {
		t.Fatalf("expected buyer debited to 0, got %d", bal)
	}
	if bal := e.balance(t, seller); bal != 1 {
		t.Fatalf("seller balance must be untouched until receive, got %d", bal)
	}

	d, err = e.svc.SelectPickup(ctx, buyer, d.ID, "MOCK_PVZ_1")
	if err != nil {
		t.Fatalf("select pickup: %v", err)
	}
	if d.Status != models.DealPickupSelected || d.PickupPointID != "MOCK_PVZ_1" {
		t.Fatalf("unexpected deal after pickup: %+v", d)
	}

	d, err = e.svc.Ship(ctx, seller, d.ID, "TRACK123456")
	if err != nil {
		t.Fatalf("ship: %v", err)
	}
	if d.Status != models.DealShipped || d.TrackingNumber != "TRACK123456" || d.SellerShippedAt == nil {
		t.Fatalf("unexpected shipped deal: %+v", d)
	}

	d, err = e.svc.Receive(ctx, buyer, d.ID)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if d.Status != models.DealCompleted || d.EscrowHeld != 0 || d.BuyerReceivedAt == nil {
		t.Fatalf("unexpected completed deal: %+v", d)
	}
	if bal := e.balance(t, seller); bal != 2 {
		t.Fatalf("expected seller credited to 2, got %d", bal)
	}
	if bal := e.balance(t, buyer); bal != 0 {
		t.Fatalf("expected buyer at 0, got %d", bal)
	}

	got, _ := e.store.GetBook(ctx, b.ID)
	if got.OwnerID != buyer || got.Status != models.BookExchanged {
		t.Fatalf("expected book transferred to buyer as exchanged, got %+v", got)
	}
	if e.notifier.last().Kind != notification.KindDealCompleted {
		t.Fatalf("expected deal_completed notification, got %q", e.notifier.last().Kind)
	}
}

func TestCreateGuards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)
	e.seedUser(t, third)
	b := e.seedBook(t, seller)

	if _, err := e.svc.Create(ctx, seller, b.ID); !errors.Is(err, ErrCannotDealOwnBook) {
		t.Fatalf("expected ErrCannotDealOwnBook, got %v", err)
	}
	if _, err := e.svc.Create(ctx, buyer, 999); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}

	if _, err := e.svc.Create(ctx, buyer, b.ID); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.svc.Create(ctx, third, b.ID); !errors.Is(err, ErrBookNotAvailable) {
		t.Fatalf("expected ErrBookNotAvailable for reserved book, got %v", err)
	}
}

func TestCreateRaceOneWinner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)
	e.seedUser(t, third)
	b := e.seedBook(t, seller)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, buyerID := range []int64{buyer, third} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := e.svc.Create(ctx, id, b.ID)
			errs <- err
		}(buyerID)
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		if err == nil {
			wins++
		} else if errors.Is(err, ErrBookNotAvailable) || errors.Is(err, ErrDealAlreadyExists) {
			losses++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner, got %d wins %d losses", wins, losses)
	}
}

func TestAcceptGuards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)
	b := e.seedBook(t, seller)
	d, err := e.svc.Create(ctx, buyer, b.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := e.svc.Accept(ctx, buyer, d.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-seller, got %v", err)
	}
	if _, err := e.svc.Accept(ctx, seller, 999); !errors.Is(err, ErrDealNotFound) {
		t.Fatalf("expected ErrDealNotFound, got %v", err)
	}

	if _, err := e.svc.Accept(ctx, seller, d.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := e.svc.Accept(ctx, seller, d.ID); !errors.Is(err, ErrDealNotPending) {
		t.Fatalf("expected ErrDealNotPending on repeat accept, got %v", err)
	}
}

func TestAcceptInsufficientFunds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)

	// The buyer spends their only credit on a first deal, then opens a
	// second; accepting the second must fail without touching anything.
	first := e.seedBook(t, seller)
	second := e.seedBook(t, seller)

	d1, err := e.svc.Create(ctx, buyer, first.ID)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := e.svc.Accept(ctx, seller, d1.ID); err != nil {
		t.Fatalf("accept first: %v", err)
	}

	d2, err := e.svc.Create(ctx, buyer, second.ID)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := e.svc.Accept(ctx, seller, d2.ID); !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	got, _ := e.store.GetDeal(ctx, d2.ID)
	if got.Status != models.DealPending || got.EscrowHeld != 0 {
		t.Fatalf("failed accept must leave the deal pending, got %+v", got)
	}
	if bal := e.balance(t, buyer); bal != 0 {
		t.Fatalf("failed accept must not move credits, balance %d", bal)
	}
}

func TestConcurrentAcceptDebitsOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)
	b := e.seedBook(t, seller)
	d, err := e.svc.Create(ctx, buyer, b.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Accept(ctx, seller, d.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins int
	for err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrDealNotPending) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one accept to win, got %d", wins)
	}
	if bal := e.balance(t, buyer); bal != 0 {
		t.Fatalf("buyer must be debited exactly once, balance %d", bal)
	}
}

func TestRejectReturnsBook(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)
	b := e.seedBook(t, seller)
	d, _ := e.svc.Create(ctx, buyer, b.ID)

	rejected, err := e.svc.Reject(ctx, seller, d.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.DealRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if got, _ := e.store.GetBook(ctx, b.ID); got.Status != models.BookAvailable {
		t.Fatalf("expected book available again, got %s", got.Status)
	}
	if bal := e.balance(t, buyer); bal != 1 {
		t.Fatalf("reject must not touch wallets, balance %d", bal)
	}

	if _, err := e.svc.Reject(ctx, seller, d.ID); !errors.Is(err, ErrDealNotPending) {
		t.Fatalf("expected ErrDealNotPending on repeat reject, got %v", err)
	}
}

func TestCancelByBuyerOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)
	b := e.seedBook(t, seller)
	d, _ := e.svc.Create(ctx, buyer, b.ID)

	if _, err := e.svc.Cancel(ctx, seller, d.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for seller cancel, got %v", err)
	}

	cancelled, err := e.svc.Cancel(ctx, buyer, d.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.DealCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got, _ := e.store.GetBook(ctx, b.ID); got.Status != models.BookAvailable {
		t.Fatalf("expected book available again, got %s", got.Status)
	}

	// The freed book accepts a new deal.
	if _, err := e.svc.Create(ctx, buyer, b.ID); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}
}

func TestSelectPickupGuards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)
	b := e.seedBook(t, seller)
	d, _ := e.svc.Create(ctx, buyer, b.ID)

	if _, err := e.svc.SelectPickup(ctx, buyer, d.ID, "MOCK_PVZ_1"); !errors.Is(err, ErrDealNotAccepted) {
		t.Fatalf("expected ErrDealNotAccepted before accept, got %v", err)
	}

	if _, err := e.svc.Accept(ctx, seller, d.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := e.svc.SelectPickup(ctx, buyer, d.ID, ""); !errors.Is(err, ErrPickupPointRequired) {
		t.Fatalf("expected ErrPickupPointRequired, got %v", err)
	}
	if _, err := e.svc.SelectPickup(ctx, buyer, d.ID, "NO_SUCH_POINT"); !errors.Is(err, shipping.ErrPickupPointNotFound) {
		t.Fatalf("expected ErrPickupPointNotFound, got %v", err)
	}
	if _, err := e.svc.SelectPickup(ctx, seller, d.ID, "MOCK_PVZ_1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for seller, got %v", err)
	}
}

func TestShipFallbackTracking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)
	b := e.seedBook(t, seller)
	d, _ := e.svc.Create(ctx, buyer, b.ID)
	if _, err := e.svc.Accept(ctx, seller, d.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := e.svc.Ship(ctx, seller, d.ID, ""); !errors.Is(err, ErrPickupNotSelected) {
		t.Fatalf("expected ErrPickupNotSelected before pickup, got %v", err)
	}

	if _, err := e.svc.SelectPickup(ctx, buyer, d.ID, "MOCK_PVZ_2"); err != nil {
		t.Fatalf("select pickup: %v", err)
	}

	shipped, err := e.svc.Ship(ctx, seller, d.ID, "")
	if err != nil {
		t.Fatalf("ship: %v", err)
	}
	if !strings.HasPrefix(shipped.TrackingNumber, "MOCK") || len(shipped.TrackingNumber) != 12 {
		t.Fatalf("expected generated MOCK tracking number, got %q", shipped.TrackingNumber)
	}
}

func TestReceiveRequiresShipped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)
	b := e.seedBook(t, seller)
	d, _ := e.svc.Create(ctx, buyer, b.ID)
	if _, err := e.svc.Accept(ctx, seller, d.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := e.svc.Receive(ctx, buyer, d.ID); !errors.Is(err, ErrDealNotShipped) {
		t.Fatalf("expected ErrDealNotShipped, got %v", err)
	}
	if _, err := e.svc.Receive(ctx, seller, d.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for seller receive, got %v", err)
	}
}

func TestListings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, seller)
	e.seedUser(t, buyer)
	first := e.seedBook(t, seller)
	second := e.seedBook(t, seller)

	d1, _ := e.svc.Create(ctx, buyer, first.ID)
	d2, _ := e.svc.Create(ctx, buyer, second.ID)

	mine, err := e.svc.Mine(ctx, buyer)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != d2.ID || mine[1].ID != d1.ID {
		t.Fatalf("expected newest-first buyer deals, got %+v", mine)
	}

	incoming, err := e.svc.Incoming(ctx, seller)
	if err != nil {
		t.Fatalf("incoming: %v", err)
	}
	if len(incoming) != 2 {
		t.Fatalf("expected 2 incoming deals, got %d", len(incoming))
	}

	forBuyer, err := e.svc.ForUser(ctx, buyer)
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	if len(forBuyer) != 2 {
		t.Fatalf("expected 2 deals for user, got %d", len(forBuyer))
	}
	if deals, _ := e.svc.ForUser(ctx, third); len(deals) != 0 {
		t.Fatalf("expected no deals for uninvolved user, got %d", len(deals))
	}
}
