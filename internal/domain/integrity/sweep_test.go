package integrity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club19/internal/core/apperror"
	"club19/internal/core/id"
	"club19/internal/core/types"
	"club19/internal/domain/errorlog"
	"club19/internal/domain/sale"
)

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
	r.put(s)
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
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sale.Sale
	for _, s := range r.sales {
		if s.DeletedAt == nil && s.Status != sale.StatusVoided && s.Source != sale.SourceXeroImport {
			out = append(out, *s)
		}
	}
	return out, nil
}

type memErrors struct {
	mu      sync.Mutex
	records []*errorlog.ErrorRecord
}

func (m *memErrors) Record(ctx context.Context, rec *errorlog.ErrorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memErrors) UpsertWarning(ctx context.Context, rec *errorlog.ErrorRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.records {
		if existing.Resolved || existing.WarningType != rec.WarningType {
			continue
		}
		if existing.SaleID != nil && rec.SaleID != nil && *existing.SaleID == *rec.SaleID {
			existing.Messages = rec.Messages
			return false, nil
		}
	}
	m.records = append(m.records, rec)
	return true, nil
}

func (m *memErrors) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.records {
		out = append(out, r.WarningType)
	}
	return out
}

func healthySale(repo *memRepo) *sale.Sale {
	s := sale.NewSale("C19-0001", id.New(), "GBP")
	s.BrandingTheme = "standard"
	s.SaleAmountIncVat = types.MustMoney("1200.00")
	s.SaleAmountExVat = types.MustMoney("1000.00")
	s.BuyPrice = types.MustMoney("600.00")
	s.GrossMargin = types.MustMoney("400.00")
	s.CommissionableMargin = types.MustMoney("400.00")
	s.AuthenticityVerified = true
	repo.put(s)
	return s
}

func TestComputeOverdueFlags(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	due := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)

	s := &sale.Sale{Status: sale.StatusInvoiced, InvoiceDueDate: &due}
	flags := ComputeOverdueFlags(s, now)
	assert.True(t, flags.IsOverdue)
	assert.Equal(t, 10, flags.DaysOverdue)

	// settled sales are never overdue
	paid := now
	s.InvoicePaidDate = &paid
	assert.False(t, ComputeOverdueFlags(s, now).IsOverdue)

	// no due date, nothing to be late against
	assert.False(t, ComputeOverdueFlags(&sale.Sale{Status: sale.StatusInvoiced}, now).IsOverdue)

	future := now.Add(48 * time.Hour)
	assert.False(t, ComputeOverdueFlags(&sale.Sale{
		Status: sale.StatusInvoiced, InvoiceDueDate: &future,
	}, now).IsOverdue)
}

func TestComputeMarginMetrics(t *testing.T) {
	s := &sale.Sale{
		SaleAmountExVat: types.MustMoney("1000.00"),
		GrossMargin:     types.MustMoney("400.00"),
	}
	assert.Equal(t, "40.00", ComputeMarginMetrics(s).MarginPercent.StringFixed(2))

	zero := &sale.Sale{}
	assert.True(t, ComputeMarginMetrics(zero).MarginPercent.IsZero())
}

func TestComputeAuthenticityRisk(t *testing.T) {
	verified := &sale.Sale{AuthenticityVerified: true}
	assert.Equal(t, RiskClean, ComputeAuthenticityRisk(verified))

	noReceipt := &sale.Sale{BuyPrice: types.MustMoney("100.00")}
	assert.Equal(t, RiskMissingReceipt, ComputeAuthenticityRisk(noReceipt))

	withReceipt := &sale.Sale{ReceiptReference: "R-1", BuyPrice: types.MustMoney("100.00")}
	assert.Equal(t, RiskNotVerified, ComputeAuthenticityRisk(withReceipt))

	highValue := &sale.Sale{BuyPrice: types.MustMoney("9000.00")}
	assert.Equal(t, RiskHighRisk, ComputeAuthenticityRisk(highValue))
}

func TestSweepEmitsWarnings(t *testing.T) {
	repo := newMemRepo()
	errs := &memErrors{}
	sweep := NewSweep(repo, errs)

	s := healthySale(repo)
	s.CommissionableMargin = types.MustMoney("-50.00")
	s.GrossMargin = types.MustMoney("-50.00")
	s.BuyPrice = types.MustMoney("6000.00")
	s.AuthenticityVerified = false
	repo.put(s)

	summary, err := sweep.Run(context.Background())
	require.NoError(t, err)

	warnings := errs.types()
	assert.Contains(t, warnings, errorlog.WarningNegativeMargin)
	assert.Contains(t, warnings, errorlog.WarningBuyExceedsSale)
	assert.Contains(t, warnings, errorlog.WarningAuthenticityRisk)
	assert.Len(t, summary.WarningsCreated, len(warnings))
}

func TestSweepHealthySaleIsQuiet(t *testing.T) {
	repo := newMemRepo()
	errs := &memErrors{}
	sweep := NewSweep(repo, errs)
	healthySale(repo)

	summary, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.WarningsCreated)
	assert.Empty(t, errs.records)
}

func TestSweepRerunRefreshesInsteadOfDuplicating(t *testing.T) {
	repo := newMemRepo()
	errs := &memErrors{}
	sweep := NewSweep(repo, errs)

	s := healthySale(repo)
	s.SaleAmountIncVat = types.Zero()
	s.SaleAmountExVat = types.Zero()
	s.GrossMargin = types.Zero()
	repo.put(s)

	first, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, first.WarningsCreated)

	second, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.WarningsCreated)
	assert.Len(t, errs.records, len(first.WarningsCreated))
}

func TestSweepSuspiciousMarginCeiling(t *testing.T) {
	repo := newMemRepo()
	errs := &memErrors{}
	sweep := NewSweep(repo, errs)

	s := healthySale(repo)
	s.SaleAmountExVat = types.MustMoney("100.00")
	s.GrossMargin = types.MustMoney("300.00")
	repo.put(s)

	_, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, errs.types(), errorlog.WarningSuspiciousMargin)
}

func TestSweepOverdueListsReference(t *testing.T) {
	repo := newMemRepo()
	errs := &memErrors{}
	sweep := NewSweep(repo, errs)

	due := time.Now().UTC().Add(-72 * time.Hour)
	s := healthySale(repo)
	s.Status = sale.StatusInvoiced
	s.InvoiceDueDate = &due
	repo.put(s)

	summary, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"C19-0001"}, summary.OverdueSales)
	assert.Contains(t, errs.types(), errorlog.WarningOverdueInvoice)
}
