package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club19/internal/core/apperror"
	appctx "club19/internal/core/context"
	"club19/internal/core/id"
	"club19/internal/core/security"
	"club19/internal/core/types"
	"club19/internal/domain/audit"
	"club19/internal/domain/sale"
)

type memTx struct{}

func (memTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memRepo struct {
	mu    sync.Mutex
	sales map[id.ID]*sale.Sale
}

func newMemRepo() *memRepo { return &memRepo{sales: map[id.ID]*sale.Sale{}} }

func (r *memRepo) put(s *sale.Sale) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sales[s.ID] = &cp
}

func (r *memRepo) Create(ctx context.Context, s *sale.Sale) error { r.put(s); return nil }

func (r *memRepo) GetByID(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sales[saleID]
	if !ok {
		return nil, apperror.NewNotFound("sale", saleID.String())
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) GetForUpdate(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return r.GetByID(ctx, saleID)
}

func (r *memRepo) Update(ctx context.Context, s *sale.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sales[s.ID]
	if !ok {
		return apperror.NewNotFound("sale", s.ID.String())
	}
	if stored.Version != s.Version-1 {
		return apperror.NewConcurrentModification("sale", s.ID.String())
	}
	cp := *s
	r.sales[s.ID] = &cp
	return nil
}

func (r *memRepo) List(ctx context.Context, filter sale.ListFilter) ([]sale.Sale, error) {
	return nil, nil
}

func (r *memRepo) FindByExternalInvoiceID(ctx context.Context, invoiceID string) ([]sale.Sale, error) {
	return nil, nil
}

func (r *memRepo) FindRestorableImport(ctx context.Context, invoiceID string) (*sale.Sale, error) {
	return nil, nil
}

func (r *memRepo) ListAwaitingPayment(ctx context.Context) ([]sale.Sale, error) { return nil, nil }

func (r *memRepo) ListActiveForIntegrity(ctx context.Context) ([]sale.Sale, error) {
	return nil, nil
}

type seqRefs struct{ n int }

func (s *seqRefs) Next(ctx context.Context) (string, error) {
	s.n++
	return fmt.Sprintf("C19-%04d", s.n), nil
}

func adminContext() context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{
		UserID: "u-admin", Role: appctx.RoleAdmin,
	})
}

func newTestService(repo *memRepo) *Service {
	return NewService(repo, memTx{}, security.NewRolePolicy(), &seqRefs{}, audit.NopRecorder{})
}

func completeSale(repo *memRepo) *sale.Sale {
	s := sale.NewSale("C19-0001", id.New(), "GBP")
	buyer := id.New()
	supplier := id.New()
	s.BuyerID = &buyer
	s.SupplierID = &supplier
	s.Brand = "Chanel"
	s.Category = "Handbags"
	s.ItemTitle = "Classic Flap Medium"
	s.BuyPrice = types.MustMoney("4000.00")
	s.SaleAmountIncVat = types.MustMoney("6000.00")
	repo.put(s)
	return s
}

func TestParkAndResume(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := adminContext()
	s := completeSale(repo)

	parked, err := svc.ParkAsOngoing(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusOngoing, parked.Status)

	resumed, err := svc.Resume(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusActive, resumed.Status)
}

func TestParkLockedSaleRejected(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := adminContext()
	s := completeSale(repo)
	s.Status = sale.StatusLocked
	repo.put(s)

	_, err := svc.ParkAsOngoing(ctx, s.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestMarkCompletedGateRejectsMissingSupplier(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := adminContext()
	s := completeSale(repo)
	s.SupplierID = nil
	repo.put(s)

	_, err := svc.MarkCompleted(ctx, s.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeIncompleteFields))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, []string{"supplier"}, appErr.Details["missing_fields"])

	// fill the gap and the same call succeeds
	supplier := id.New()
	s.SupplierID = &supplier
	repo.put(s)

	completed, err := svc.MarkCompleted(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusPaid, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, "u-admin", completed.CompletedBy)
}

func TestLockAndCommissionFlow(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := adminContext()
	s := completeSale(repo)
	s.Status = sale.StatusPaid
	repo.put(s)

	locked, err := svc.Lock(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusLocked, locked.Status)

	paid, err := svc.MarkCommissionPaid(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusCommissionPaid, paid.Status)

	// commission_paid is terminal
	_, err = svc.Resume(ctx, s.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestLockedSaleCannotBeUnlocked(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	owner := id.New()
	s := completeSale(repo)
	s.ShopperID = owner
	s.Status = sale.StatusLocked
	repo.put(s)

	ownerCtx := appctx.WithActor(context.Background(), &appctx.Actor{
		UserID: "u-owner", Role: appctx.RoleShopper, ShopperID: owner,
	})
	for _, target := range []sale.Status{sale.StatusPaid, sale.StatusActive, sale.StatusInvoiced} {
		_, err := svc.TransitionStatus(ownerCtx, s.ID, target)
		require.Error(t, err, "locked -> %s", target)
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
	}

	// admins get no unlock edge either
	_, err := svc.TransitionStatus(adminContext(), s.ID, sale.StatusPaid)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	stored, err := repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusLocked, stored.Status)
	assert.Error(t, stored.CanMutateEconomics())
}

func TestVoidedUnreachableInteractively(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	s := completeSale(repo)

	_, err := svc.TransitionStatus(adminContext(), s.ID, sale.StatusVoided)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestMarkVoidedIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := adminContext()
	s := completeSale(repo)

	require.NoError(t, svc.MarkVoided(ctx, s.ID))
	first, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusVoided, first.Status)

	require.NoError(t, svc.MarkVoided(ctx, s.ID))
	second, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
}

func TestShopperTransitionsOwnSalesOnly(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	owner := id.New()
	s := completeSale(repo)
	s.ShopperID = owner
	repo.put(s)

	stranger := appctx.WithActor(context.Background(), &appctx.Actor{
		UserID: "u-other", Role: appctx.RoleShopper, ShopperID: id.New(),
	})
	_, err := svc.ParkAsOngoing(stranger, s.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	ownerCtx := appctx.WithActor(context.Background(), &appctx.Actor{
		UserID: "u-owner", Role: appctx.RoleShopper, ShopperID: owner,
	})
	parked, err := svc.ParkAsOngoing(ownerCtx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusOngoing, parked.Status)

	// commission transitions stay privileged
	parked.Status = sale.StatusPaid
	repo.put(parked)
	_, err = svc.Lock(ownerCtx, s.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}

func TestAdoptImport(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := adminContext()
	imp := sale.NewImport("ext-1", "INV-100", "GBP")
	repo.put(imp)
	shopper := id.New()

	adopted, err := svc.AdoptImport(ctx, imp.ID, shopper)
	require.NoError(t, err)
	assert.Equal(t, sale.SourceAdopted, adopted.Source)
	assert.Equal(t, "C19-0001", adopted.SaleReference)
	assert.Equal(t, shopper, adopted.ShopperID)
	assert.False(t, adopted.NeedsAllocation)
}

func TestAdoptNonImportRejected(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := adminContext()
	s := completeSale(repo)

	_, err := svc.AdoptImport(ctx, s.ID, id.New())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSourceType))
}

func TestDismissImport(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := adminContext()
	imp := sale.NewImport("ext-1", "INV-100", "GBP")
	repo.put(imp)

	require.NoError(t, svc.DismissImport(ctx, imp.ID))
	stored, err := repo.GetByID(ctx, imp.ID)
	require.NoError(t, err)
	assert.True(t, stored.Dismissed)
	assert.False(t, stored.NeedsAllocation)

	// dismissing again is a no-op
	require.NoError(t, svc.DismissImport(ctx, imp.ID))

	_, err = svc.AdoptImport(ctx, imp.ID, id.New())
	require.Error(t, err)
}
