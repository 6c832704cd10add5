package tax

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/domain/shared/valueobject"
	"github.com/erp/taxconnector/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- in-memory repository fakes ---

type fakeDocumentRepo struct {
	docs  map[uuid.UUID]*tax.Document
	seq   map[tax.DocumentKind]int
	saves int
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{
		docs: make(map[uuid.UUID]*tax.Document),
		seq:  make(map[tax.DocumentKind]int),
	}
}

func (r *fakeDocumentRepo) Save(_ context.Context, doc *tax.Document) error {
	r.saves++
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeDocumentRepo) FindByID(_ context.Context, companyID, id uuid.UUID) (*tax.Document, error) {
	doc, ok := r.docs[id]
	if !ok || doc.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	return doc, nil
}

func (r *fakeDocumentRepo) FindByNumber(_ context.Context, companyID uuid.UUID, number string) (*tax.Document, error) {
	for _, doc := range r.docs {
		if doc.CompanyID == companyID && doc.Number == number {
			return doc, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeDocumentRepo) FindAll(_ context.Context, companyID uuid.UUID, _ shared.Filter) ([]*tax.Document, int64, error) {
	var out []*tax.Document
	for _, doc := range r.docs {
		if doc.CompanyID == companyID {
			out = append(out, doc)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeDocumentRepo) NextNumber(_ context.Context, _ uuid.UUID, kind tax.DocumentKind) (string, error) {
	prefix := map[tax.DocumentKind]string{
		tax.KindOrder:   "SO",
		tax.KindInvoice: "INV",
		tax.KindRefund:  "RINV",
	}[kind]
	r.seq[kind]++
	return fmt.Sprintf("%s/%06d", prefix, r.seq[kind]), nil
}

func (r *fakeDocumentRepo) Delete(_ context.Context, _, id uuid.UUID) error {
	delete(r.docs, id)
	return nil
}

type fakeCustomerRepo struct {
	customers map[uuid.UUID]*tax.Customer
	saves     int
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[uuid.UUID]*tax.Customer)}
}

func (r *fakeCustomerRepo) Save(_ context.Context, customer *tax.Customer) error {
	r.saves++
	r.customers[customer.ID] = customer
	return nil
}

func (r *fakeCustomerRepo) FindByID(_ context.Context, companyID, id uuid.UUID) (*tax.Customer, error) {
	customer, ok := r.customers[id]
	if !ok || customer.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	return customer, nil
}

type fakeRateRepo struct {
	rates     map[string]*tax.TaxRate
	templates map[bool]*tax.TaxRate
	// saveHook intercepts Save; a non-nil return is surfaced to the caller.
	saveHook func(*tax.TaxRate) error
	saves    int
}

func newFakeRateRepo() *fakeRateRepo {
	return &fakeRateRepo{
		rates:     make(map[string]*tax.TaxRate),
		templates: make(map[bool]*tax.TaxRate),
	}
}

func rateKey(percent decimal.Decimal, expensed bool) string {
	return fmt.Sprintf("%s|%t", percent.Round(5).String(), expensed)
}

func (r *fakeRateRepo) Save(_ context.Context, rate *tax.TaxRate) error {
	if r.saveHook != nil {
		hook := r.saveHook
		r.saveHook = nil
		if err := hook(rate); err != nil {
			return err
		}
	}
	r.saves++
	r.rates[rateKey(rate.Percent, rate.IsExpensed)] = rate
	return nil
}

func (r *fakeRateRepo) FindByID(_ context.Context, _, id uuid.UUID) (*tax.TaxRate, error) {
	for _, rate := range r.rates {
		if rate.ID == id {
			return rate, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeRateRepo) FindByPercent(_ context.Context, _ uuid.UUID, percent decimal.Decimal, expensed bool) (*tax.TaxRate, error) {
	rate, ok := r.rates[rateKey(percent, expensed)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return rate, nil
}

func (r *fakeRateRepo) FindTemplate(_ context.Context, _ uuid.UUID, expensed bool) (*tax.TaxRate, error) {
	template, ok := r.templates[expensed]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return template, nil
}

// --- calculator fake ---

type remoteCall struct {
	companyCode string
	docCode     string
	docType     tax.DocumentType
}

type fakeCalculator struct {
	requests []tax.CalculationRequest
	// calcFn overrides the canned result when set
	calcFn func(*tax.CalculationRequest) (*tax.CalculationResult, error)
	result *tax.CalculationResult

	commits   []remoteCall
	commitErr error
	voids     []remoteCall
	voidErr   error
	unvoids   []remoteCall
	unvoidErr error

	pings      int
	pingResult *tax.PingResult
	pingErr    error
}

func (c *fakeCalculator) CalculateTax(_ context.Context, req *tax.CalculationRequest) (*tax.CalculationResult, error) {
	c.requests = append(c.requests, *req)
	if c.calcFn != nil {
		return c.calcFn(req)
	}
	if c.result != nil {
		return c.result, nil
	}
	return &tax.CalculationResult{TotalTax: decimal.Zero}, nil
}

func (c *fakeCalculator) CommitTax(_ context.Context, companyCode, docCode string, docType tax.DocumentType) error {
	c.commits = append(c.commits, remoteCall{companyCode, docCode, docType})
	return c.commitErr
}

func (c *fakeCalculator) VoidTax(_ context.Context, companyCode, docCode string, docType tax.DocumentType, _ tax.VoidReason) error {
	c.voids = append(c.voids, remoteCall{companyCode, docCode, docType})
	return c.voidErr
}

func (c *fakeCalculator) UnvoidTax(_ context.Context, companyCode, docCode string, docType tax.DocumentType) error {
	c.unvoids = append(c.unvoids, remoteCall{companyCode, docCode, docType})
	return c.unvoidErr
}

func (c *fakeCalculator) Ping(_ context.Context) (*tax.PingResult, error) {
	c.pings++
	if c.pingErr != nil {
		return nil, c.pingErr
	}
	if c.pingResult != nil {
		return c.pingResult, nil
	}
	return &tax.PingResult{Authenticated: true}, nil
}

type fakeStatusStore struct {
	recorded []time.Time
}

func (s *fakeStatusStore) RecordCredentialExpiration(_ context.Context, _ uuid.UUID, expiresAt time.Time) error {
	s.recorded = append(s.recorded, expiresAt)
	return nil
}

// --- fixture wiring the service graph over the fakes ---

type fixture struct {
	companyID uuid.UUID
	docs      *fakeDocumentRepo
	customers *fakeCustomerRepo
	rates     *fakeRateRepo
	calc      *fakeCalculator
	status    *fakeStatusStore
	settings  tax.Settings
}

func newFixture() *fixture {
	f := &fixture{
		companyID: uuid.New(),
		docs:      newFakeDocumentRepo(),
		customers: newFakeCustomerRepo(),
		rates:     newFakeRateRepo(),
		calc:      &fakeCalculator{},
		status:    &fakeStatusStore{},
		settings:  tax.DefaultSettings(),
	}
	f.settings.CompanyCode = "DEFAULT"
	f.rates.templates[false] = tax.NewTaxRateTemplate(f.companyID, false)
	f.rates.templates[true] = tax.NewTaxRateTemplate(f.companyID, true)
	return f
}

func (f *fixture) computeService() *ComputeService {
	resolver := NewRateResolver(f.rates, zap.NewNop())
	return NewComputeService(f.docs, f.customers, resolver, f.calc, f.settings, zap.NewNop())
}

func (f *fixture) documentService() *DocumentService {
	return NewDocumentService(f.docs, f.customers, f.computeService(), f.calc, f.status, f.settings, zap.NewNop())
}

func (f *fixture) addCustomer(t *testing.T, code string) *tax.Customer {
	t.Helper()
	customer, err := tax.NewCustomer(f.companyID, "Acme Corp")
	require.NoError(t, err)
	customer.Code = code
	f.customers.customers[customer.ID] = customer
	return customer
}

// --- document helpers ---

func usAddress(t *testing.T, validated bool) valueobject.Address {
	t.Helper()
	addr, err := valueobject.NewAddress("1 Main St", "Austin", "73301", "TX", "US")
	require.NoError(t, err)
	if validated {
		addr = addr.MarkValidated(time.Now())
	}
	return addr
}

func remoteTaxes(percent float64, expensed bool) []tax.AppliedTax {
	name := tax.RatePrefixSales
	if expensed {
		name = tax.RatePrefixUse
	}
	return []tax.AppliedTax{{
		TaxRateID:  uuid.New(),
		Name:       name,
		Percent:    decimal.NewFromFloat(percent),
		IsRemote:   true,
		IsExpensed: expensed,
	}}
}

func addLine(t *testing.T, doc *tax.Document, qty, price float64, taxes []tax.AppliedTax) *tax.DocumentLine {
	t.Helper()
	line, err := doc.AddLine(uuid.New(), "WIDGET", "", "", "Widget",
		decimal.NewFromFloat(qty), decimal.NewFromFloat(price), decimal.NewFromFloat(price*0.6),
		decimal.Zero, taxes)
	require.NoError(t, err)
	return line
}

// newComputeDoc builds a document with addresses and one remote-taxed line,
// ready for a tax computation.
func (f *fixture) newComputeDoc(t *testing.T, kind tax.DocumentKind, customerID uuid.UUID) *tax.Document {
	t.Helper()
	doc, err := tax.NewDocument(f.companyID, "SO/000001", kind, customerID, "Acme Corp", valueobject.USD)
	require.NoError(t, err)
	doc.SetShipFrom(usAddress(t, false))
	require.NoError(t, doc.SetShipTo(usAddress(t, false)))
	addLine(t, doc, 2, 100, remoteTaxes(8, false))
	f.docs.docs[doc.ID] = doc
	return doc
}

// singleLineResult builds a remote result taxing line 1 at the given percent
func singleLineResult(percent, taxAmount float64) *tax.CalculationResult {
	return &tax.CalculationResult{
		TotalTax: decimal.NewFromFloat(taxAmount),
		Lines: []tax.ResultLine{{
			LineNumber: 1,
			Rate:       decimal.NewFromFloat(percent),
			Tax:        decimal.NewFromFloat(taxAmount),
		}},
	}
}
