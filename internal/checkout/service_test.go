package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/carlosbmello/echef-caixa-web/internal/backend"
	"github.com/carlosbmello/echef-caixa-web/internal/common"
	"github.com/carlosbmello/echef-caixa-web/internal/money"
	"github.com/carlosbmello/echef-caixa-web/internal/tabs"
)

type stubDeps struct {
	mu            sync.Mutex
	finalizeCalls int
	finalizeErr   error
	lastInput     backend.FinalizeInput
	lastToken     string
	lastTokenOK   bool

	session *backend.Session
	tabsByN map[string]*backend.Tab
	methods map[int64]*backend.TenderMethod
}

func (d *stubDeps) FinalizeTransaction(ctx context.Context, in backend.FinalizeInput) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finalizeCalls++
	d.lastInput = in
	d.lastToken, d.lastTokenOK = common.AuthToken(ctx)
	if d.finalizeErr != nil {
		return "", d.finalizeErr
	}
	return "uuid-1", nil
}

func (d *stubDeps) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finalizeCalls
}

func (d *stubDeps) lastIn() backend.FinalizeInput {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastInput
}

func (d *stubDeps) tokenSeen() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastToken, d.lastTokenOK
}

func (d *stubDeps) Current(ctx context.Context) (*backend.Session, error) {
	return d.session, nil
}

func (d *stubDeps) Resolve(ctx context.Context, identifier string) (*backend.Tab, error) {
	tab, ok := d.tabsByN[identifier]
	if !ok {
		return nil, common.NotFoundError("comanda nao encontrada")
	}
	return tab, nil
}

func (d *stubDeps) Aggregate(ctx context.Context, selected []backend.Tab) (*tabs.Aggregation, error) {
	agg := &tabs.Aggregation{Tabs: selected}
	for _, tab := range selected {
		agg.ConsumptionTotal += money.Money(tab.ConsumptionTotal)
	}
	return agg, nil
}

func (d *stubDeps) Method(ctx context.Context, id int64) (*backend.TenderMethod, error) {
	method, ok := d.methods[id]
	if !ok {
		return nil, common.NotFoundError("forma de pagamento desconhecida")
	}
	return method, nil
}

func newDeps() *stubDeps {
	return &stubDeps{
		session: &backend.Session{ID: 1, Status: backend.SessionOpen},
		tabsByN: map[string]*backend.Tab{
			"A": {ID: 1, Number: "A", Status: backend.TabOpen, ConsumptionTotal: 28300},
			"B": {ID: 2, Number: "B", Status: backend.TabOpen, ConsumptionTotal: 3000},
		},
		methods: map[int64]*backend.TenderMethod{
			1: {ID: 1, Name: "Dinheiro", Kind: backend.TenderCash, Active: true},
			2: {ID: 2, Name: "PIX", Kind: backend.TenderPix, Active: true},
		},
	}
}

func newService(d *stubDeps, delay time.Duration) *Service {
	return &Service{
		Backend:       d,
		Sessions:      d,
		Tabs:          d,
		Tenders:       d,
		FinalizeDelay: delay,
		Logger:        zerolog.Nop(),
	}
}

func TestAddTabBuildsTotalsWithServiceCharge(t *testing.T) {
	d := newDeps()
	svc := newService(d, time.Hour)

	snap, err := svc.AddTab(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, money.Money(28300), snap.Totals.Consumption)
	require.Equal(t, money.Money(2830), snap.Totals.ServiceCharge)
	require.Equal(t, money.Money(31130), snap.Totals.TotalDue)
	require.Equal(t, money.Money(31130), snap.Totals.BalanceDue)
	require.False(t, snap.Totals.Settled)
}

func TestAddTabTwiceIsConflict(t *testing.T) {
	svc := newService(newDeps(), time.Hour)

	_, err := svc.AddTab(context.Background(), "A")
	require.NoError(t, err)
	_, err = svc.AddTab(context.Background(), "A")
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeConflict))
}

func TestAddTabRequiresOpenSession(t *testing.T) {
	d := newDeps()
	d.session = nil
	svc := newService(d, time.Hour)

	_, err := svc.AddTab(context.Background(), "A")
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeInvalidState))
}

func TestAddPaymentRejectsOverpaymentKeepingLedger(t *testing.T) {
	d := newDeps()
	svc := newService(d, time.Hour)
	_, err := svc.AddTab(context.Background(), "A")
	require.NoError(t, err)

	_, _, err = svc.AddPayment(context.Background(), 1, 20000, nil)
	require.NoError(t, err)

	// balance is 111.30; one cent over the epsilon is rejected
	_, totals, err := svc.AddPayment(context.Background(), 1, 11132, nil)
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeOverpayment))
	require.Equal(t, money.Money(20000), totals.TotalPaid)

	snap, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Payments, 1)
}

func TestAddPaymentValidations(t *testing.T) {
	svc := newService(newDeps(), time.Hour)
	_, err := svc.AddTab(context.Background(), "A")
	require.NoError(t, err)

	_, _, err = svc.AddPayment(context.Background(), 0, 100, nil)
	require.True(t, common.HasCode(err, common.CodeValidation))

	_, _, err = svc.AddPayment(context.Background(), 1, 0, nil)
	require.True(t, common.HasCode(err, common.CodeValidation))

	_, _, err = svc.AddPayment(context.Background(), 99, 100, nil)
	require.True(t, common.HasCode(err, common.CodeNotFound))
}

func TestAddPaymentRejectsNegativeTotalDue(t *testing.T) {
	svc := newService(newDeps(), time.Hour)
	_, err := svc.AddTab(context.Background(), "B")
	require.NoError(t, err)
	_, err = svc.SetOptions(context.Background(), Options{Discount: 50000, SplitCount: 1})
	require.NoError(t, err)

	_, _, err = svc.AddPayment(context.Background(), 1, 100, nil)
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestSettlementSchedulesExactlyOneFinalize(t *testing.T) {
	d := newDeps()
	svc := newService(d, 20*time.Millisecond)
	_, err := svc.AddTab(context.Background(), "A")
	require.NoError(t, err)

	_, totals, err := svc.AddPayment(context.Background(), 1, 31130, nil)
	require.NoError(t, err)
	require.True(t, totals.Settled)

	require.Eventually(t, func() bool { return d.calls() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, d.calls())

	snap, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Nil(t, snap)
	require.Equal(t, []int64{1}, d.lastIn().TabIDs)
	require.Equal(t, money.Amount(2830), d.lastIn().ServiceCharge)
}

// gatedAggregator blocks the first Aggregate call until released so a test
// can mutate the selection while that fetch is in flight.
type gatedAggregator struct {
	*stubDeps
	aggMu   sync.Mutex
	aggN    int
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAggregator) Aggregate(ctx context.Context, selected []backend.Tab) (*tabs.Aggregation, error) {
	g.aggMu.Lock()
	g.aggN++
	first := g.aggN == 1
	g.aggMu.Unlock()
	if first {
		close(g.entered)
		<-g.release
	}
	return g.stubDeps.Aggregate(ctx, selected)
}

func (g *gatedAggregator) aggCalls() int {
	g.aggMu.Lock()
	defer g.aggMu.Unlock()
	return g.aggN
}

func TestCurrentDiscardsStaleAggregation(t *testing.T) {
	d := newDeps()
	svc := newService(d, time.Hour)

	_, err := svc.AddTab(context.Background(), "A")
	require.NoError(t, err)

	gate := &gatedAggregator{stubDeps: d, entered: make(chan struct{}), release: make(chan struct{})}
	svc.Tabs = gate

	type outcome struct {
		snap *Snapshot
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		snap, err := svc.Current(context.Background())
		done <- outcome{snap, err}
	}()

	<-gate.entered
	_, err = svc.AddTab(context.Background(), "B")
	require.NoError(t, err)
	close(gate.release)

	got := <-done
	require.NoError(t, got.err)
	require.Len(t, got.snap.Tabs, 2)
	require.Equal(t, money.Money(31300), got.snap.Totals.Consumption)
	// one stale fetch, one from AddTab, one retry against the new selection
	require.Equal(t, 3, gate.aggCalls())
}

func TestScheduledFinalizeKeepsOperatorCredentials(t *testing.T) {
	d := newDeps()
	svc := newService(d, 10*time.Millisecond)

	ctx := common.WithAuthToken(common.WithOperatorID(context.Background(), "op-7"), "token-abc")
	_, err := svc.AddTab(ctx, "A")
	require.NoError(t, err)

	_, totals, err := svc.AddPayment(ctx, 1, 31130, nil)
	require.NoError(t, err)
	require.True(t, totals.Settled)

	require.Eventually(t, func() bool { return d.calls() == 1 }, time.Second, 5*time.Millisecond)
	token, ok := d.tokenSeen()
	require.True(t, ok, "scheduled finalize must carry the operator bearer token")
	require.Equal(t, "token-abc", token)
}

func TestManualFinalizeBeatsScheduledOne(t *testing.T) {
	d := newDeps()
	svc := newService(d, 30*time.Millisecond)
	_, err := svc.AddTab(context.Background(), "B")
	require.NoError(t, err)

	_, _, err = svc.AddPayment(context.Background(), 2, 3300, nil)
	require.NoError(t, err)

	transactionID, err := svc.Finalize(context.Background())
	require.NoError(t, err)
	require.Equal(t, "uuid-1", transactionID)

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, 1, d.calls())
}

func TestFinalizeBeforeSettlementIsRejected(t *testing.T) {
	svc := newService(newDeps(), time.Hour)
	_, err := svc.AddTab(context.Background(), "A")
	require.NoError(t, err)
	_, _, err = svc.AddPayment(context.Background(), 1, 100, nil)
	require.NoError(t, err)

	_, err = svc.Finalize(context.Background())
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeNotSettled))
}

func TestFinalizeFailureLeavesGroupIntact(t *testing.T) {
	d := newDeps()
	d.finalizeErr = common.UnavailableError("pos backend unreachable", nil)
	svc := newService(d, time.Hour)
	_, err := svc.AddTab(context.Background(), "B")
	require.NoError(t, err)
	_, _, err = svc.AddPayment(context.Background(), 2, 3300, nil)
	require.NoError(t, err)

	_, err = svc.Finalize(context.Background())
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeUnavailable))

	snap, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Len(t, snap.Payments, 1)
	require.False(t, snap.Finalizing)

	// backend recovered, manual retry succeeds without re-entering payments
	d.finalizeErr = nil
	_, err = svc.Finalize(context.Background())
	require.NoError(t, err)
}

func TestCancelDropsGroupAndPendingFinalize(t *testing.T) {
	d := newDeps()
	svc := newService(d, 20*time.Millisecond)
	_, err := svc.AddTab(context.Background(), "B")
	require.NoError(t, err)
	_, _, err = svc.AddPayment(context.Background(), 2, 3300, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background()))

	time.Sleep(60 * time.Millisecond)
	require.Zero(t, d.calls())

	snap, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestMutationCancelsPendingFinalize(t *testing.T) {
	d := newDeps()
	svc := newService(d, 20*time.Millisecond)
	_, err := svc.AddTab(context.Background(), "B")
	require.NoError(t, err)
	_, _, err = svc.AddPayment(context.Background(), 2, 3300, nil)
	require.NoError(t, err)

	// adding another tab reopens the balance; the scheduled finalize must die
	_, err = svc.AddTab(context.Background(), "A")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	require.Zero(t, d.calls())

	snap, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.False(t, snap.Totals.Settled)
}

func TestSplitCountFlowsIntoPerPerson(t *testing.T) {
	svc := newService(newDeps(), time.Hour)
	_, err := svc.AddTab(context.Background(), "B")
	require.NoError(t, err)

	snap, err := svc.SetOptions(context.Background(), Options{ServiceChargeEnabled: false, SplitCount: 4})
	require.NoError(t, err)
	require.Equal(t, money.Money(3000), snap.Totals.TotalDue)
	require.Equal(t, money.Money(750), snap.Totals.PerPerson)
}

func TestConcurrentPaymentsNeverOverpay(t *testing.T) {
	d := newDeps()
	svc := newService(d, time.Hour)
	_, err := svc.AddTab(context.Background(), "B")
	require.NoError(t, err)
	// total due without service charge adjustments: 30.00 + 3.00 = 33.00
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.AddPayment(context.Background(), 1, 3300, nil)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		}
	}
	require.Equal(t, 1, ok)
}
