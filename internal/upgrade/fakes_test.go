package upgrade

import (
	"context"
	"sync"
	"time"

	"vendhub/internal/types"
)

// In-memory stores with the same conditional-write semantics as the
// database repositories, so workflow tests exercise version checks and
// status CAS for real instead of stubbing them out.

// --- fake vendor store ---

type fakeVendors struct {
	mu      sync.Mutex
	vendors map[string]*types.Vendor
}

func newFakeVendors(vendors ...*types.Vendor) *fakeVendors {
	f := &fakeVendors{vendors: make(map[string]*types.Vendor)}
	for _, v := range vendors {
		cp := *v
		if cp.LedgerVersion == 0 {
			cp.LedgerVersion = 1
		}
		f.vendors[cp.ID] = &cp
	}
	return f
}

func (f *fakeVendors) GetByID(_ context.Context, id string) (*types.Vendor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vendors[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundVendor, "vendor not found", nil)
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVendors) conditional(id string, expectedVersion int64, apply func(*types.Vendor)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vendors[id]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundVendor, "vendor not found", nil)
	}
	if v.LedgerVersion != expectedVersion {
		return types.NewAppError(types.ErrCodeConflictConcurrent, "stale version", nil)
	}
	apply(v)
	v.LedgerVersion++
	return nil
}

func (f *fakeVendors) snapshot() map[string]*types.Vendor {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := make(map[string]*types.Vendor, len(f.vendors))
	for id, v := range f.vendors {
		cp := *v
		snap[id] = &cp
	}
	return snap
}

func (f *fakeVendors) restore(snap map[string]*types.Vendor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vendors = snap
}

func (f *fakeVendors) SetAddEnabled(_ context.Context, id string, enabled bool, mod types.Modification, expectedVersion int64) error {
	return f.conditional(id, expectedVersion, func(v *types.Vendor) {
		v.CustomersAddEnabled = enabled
		v.LastModification = &mod
	})
}

func (f *fakeVendors) CompactBaseCapacity(_ context.Context, id string, delta int, mod types.Modification, expectedVersion int64) error {
	return f.conditional(id, expectedVersion, func(v *types.Vendor) {
		v.BaseCapacity += delta
		v.LastModification = &mod
	})
}

func (f *fakeVendors) TouchModification(_ context.Context, id string, mod types.Modification, expectedVersion int64) error {
	return f.conditional(id, expectedVersion, func(v *types.Vendor) {
		v.LastModification = &mod
	})
}

// --- fake ledger store ---

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]*types.UpgradeEntry
	order   []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]*types.UpgradeEntry)}
}

func (f *fakeLedger) Append(_ context.Context, entry *types.UpgradeEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *entry
	f.entries[cp.ID] = &cp
	f.order = append(f.order, cp.ID)
	return nil
}

type ledgerSnapshot struct {
	entries map[string]*types.UpgradeEntry
	order   []string
}

func (f *fakeLedger) snapshot() ledgerSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := ledgerSnapshot{
		entries: make(map[string]*types.UpgradeEntry, len(f.entries)),
		order:   append([]string(nil), f.order...),
	}
	for id, e := range f.entries {
		cp := *e
		snap.entries[id] = &cp
	}
	return snap
}

func (f *fakeLedger) restore(snap ledgerSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = snap.entries
	f.order = snap.order
}

func (f *fakeLedger) GetByID(_ context.Context, entryID string) (*types.UpgradeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundUpgrade, "upgrade entry not found", nil)
	}
	cp := *e
	return &cp, nil
}

func (f *fakeLedger) ListForVendor(_ context.Context, vendorID string) ([]*types.UpgradeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.UpgradeEntry
	for _, id := range f.order {
		if e := f.entries[id]; e.VendorID == vendorID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListPending(_ context.Context, filter types.PendingUpgradeFilter) ([]*types.UpgradeEntry, types.PageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []types.UpgradeStatus{types.UpgradeStatusPending, types.UpgradeStatusPendingVerification}
	}
	var out []*types.UpgradeEntry
	for _, id := range f.order {
		e := f.entries[id]
		if filter.VendorID != "" && e.VendorID != filter.VendorID {
			continue
		}
		for _, st := range statuses {
			if e.Status == st {
				cp := *e
				out = append(out, &cp)
				break
			}
		}
	}
	return out, types.PageInfo{}, nil
}

func (f *fakeLedger) Transition(_ context.Context, entryID string, expected types.UpgradeStatus, apply func(*types.UpgradeEntry)) (*types.UpgradeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundUpgrade, "upgrade entry not found", nil)
	}
	if e.Status.Canonical() != expected.Canonical() {
		return nil, types.NewInvalidTransition(entryID, e.Status, "transition")
	}
	next := *e
	apply(&next)
	f.entries[entryID] = &next
	cp := next
	return &cp, nil
}

func (f *fakeLedger) MarkApplied(_ context.Context, vendorID string, entryIDs []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range entryIDs {
		e, ok := f.entries[id]
		if !ok || e.VendorID != vendorID || e.Status != types.UpgradeStatusApproved {
			continue
		}
		e.Status = types.UpgradeStatusApplied
		ts := at
		e.AppliedAt = &ts
	}
	return nil
}

// --- fake customer store ---

type fakeCustomers struct {
	mu     sync.Mutex
	counts map[string]int
	meters map[string]bool
}

func newFakeCustomers() *fakeCustomers {
	return &fakeCustomers{counts: make(map[string]int), meters: make(map[string]bool)}
}

func (f *fakeCustomers) seed(vendorID string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[vendorID] = count
}

func (f *fakeCustomers) CountCustomers(_ context.Context, vendorID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[vendorID], nil
}

func (f *fakeCustomers) InsertWithinCapacity(_ context.Context, customer *types.Customer, limit int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meters[customer.MeterNumber] {
		return false, types.NewAppError(types.ErrCodeConflictMeterNumber, "meter number exists", nil)
	}
	if f.counts[customer.VendorID] >= limit {
		return false, nil
	}
	f.counts[customer.VendorID]++
	f.meters[customer.MeterNumber] = true
	return true, nil
}

// --- recorders ---

type recordingActivities struct {
	mu         sync.Mutex
	activities []*types.Activity
}

func (r *recordingActivities) Record(_ context.Context, a *types.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, a)
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []types.UpgradeEvent
}

func (r *recordingEvents) Publish(_ context.Context, e types.UpgradeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEvents) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

// --- fake tx manager ---

// fakeTx mirrors the database transaction contract: an error from the
// callback restores both stores to their pre-transaction state.
type fakeTx struct {
	vendors *fakeVendors
	ledger  *fakeLedger
}

func (f *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context, vendors types.VendorStore, ledger types.LedgerStore) error) error {
	vendorSnap := f.vendors.snapshot()
	ledgerSnap := f.ledger.snapshot()
	if err := fn(ctx, f.vendors, f.ledger); err != nil {
		f.vendors.restore(vendorSnap)
		f.ledger.restore(ledgerSnap)
		return err
	}
	return nil
}

// --- fixed clock ---

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// --- harness ---

type harness struct {
	svc        *Service
	vendors    *fakeVendors
	ledger     *fakeLedger
	customers  *fakeCustomers
	activities *recordingActivities
	events     *recordingEvents
	now        time.Time
}

func newHarness(vendors ...*types.Vendor) *harness {
	h := &harness{
		vendors:    newFakeVendors(vendors...),
		ledger:     newFakeLedger(),
		customers:  newFakeCustomers(),
		activities: &recordingActivities{},
		events:     &recordingEvents{},
		now:        time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
	}
	h.svc = NewService(ServiceConfig{
		Vendors:    h.vendors,
		Ledger:     h.ledger,
		Customers:  h.customers,
		Activities: h.activities,
		Events:     h.events,
		TxManager:  &fakeTx{vendors: h.vendors, ledger: h.ledger},
		Clock:      fixedClock{t: h.now},
	})
	return h
}

func activeVendor(id string, base int) *types.Vendor {
	return &types.Vendor{
		ID:                  id,
		Email:               id + "@example.com",
		BusinessName:        "Test Vendor",
		Status:              types.VendorStatusActive,
		BaseCapacity:        base,
		CustomersAddEnabled: true,
	}
}
