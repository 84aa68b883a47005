package documents

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

var errInjected = errors.New("injected item failure")

type memHeader struct {
	rec    Record
	userID int64
}

type memState struct {
	headers map[Kind]map[int64]memHeader
	items   map[Kind]map[int64][]Item
	users   map[int64]string
	nextID  int64
}

func (s memState) clone() memState {
	out := memState{
		headers: map[Kind]map[int64]memHeader{},
		items:   map[Kind]map[int64][]Item{},
		users:   map[int64]string{},
		nextID:  s.nextID,
	}
	for kind, hs := range s.headers {
		out.headers[kind] = map[int64]memHeader{}
		for id, h := range hs {
			out.headers[kind][id] = h
		}
	}
	for kind, is := range s.items {
		out.items[kind] = map[int64][]Item{}
		for id, list := range is {
			out.items[kind][id] = append([]Item(nil), list...)
		}
	}
	for id, name := range s.users {
		out.users[id] = name
	}
	return out
}

// memoryStore serialises transactions and restores a snapshot when fn fails.
type memoryStore struct {
	mu    sync.Mutex
	state memState

	// failItemAt makes the n-th item insert of a transaction fail.
	failItemAt int
	// recipientRaces makes CreateRecipient lose that many races; the
	// competing insert becomes visible after the rollback.
	recipientRaces int
	pendingUsers   []string
	// findErr is returned by every FindRecipient call.
	findErr error

	txCount  int
	getCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: memState{
		headers: map[Kind]map[int64]memHeader{KindPO: {}, KindPAR: {}},
		items:   map[Kind]map[int64][]Item{KindPO: {}, KindPAR: {}},
		users:   map[int64]string{},
	}}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	snapshot := m.state.clone()
	err := fn(ctx, &memoryTx{store: m})
	if err != nil {
		m.state = snapshot
		for _, name := range m.pendingUsers {
			m.state.nextID++
			m.state.users[m.state.nextID] = name
		}
	}
	m.pendingUsers = nil
	return err
}

func (m *memoryStore) counts() (headers, items, users int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, hs := range m.state.headers {
		headers += len(hs)
	}
	for _, is := range m.state.items {
		for _, list := range is {
			items += len(list)
		}
	}
	return headers, items, len(m.state.users)
}

func (m *memoryStore) header(kind Kind, id int64) (memHeader, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.state.headers[kind][id]
	return h, ok
}

func (m *memoryStore) itemsOf(kind Kind, id int64) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.state.items[kind][id]...)
}

func (m *memoryStore) setTotal(kind Kind, id int64, total decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.state.headers[kind][id]
	h.rec.Total = total
	m.state.headers[kind][id] = h
}

type memoryTx struct {
	store    *memoryStore
	inserted int
}

func (t *memoryTx) st() *memState { return &t.store.state }

func (t *memoryTx) NumberTaken(ctx context.Context, kind Kind, number string, excludeID int64) (bool, error) {
	for id, h := range t.st().headers[kind] {
		if id != excludeID && h.rec.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) FindRecipient(ctx context.Context, name string) (int64, bool, error) {
	if t.store.findErr != nil {
		return 0, false, t.store.findErr
	}
	for id, n := range t.st().users {
		if n == name {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (t *memoryTx) CreateRecipient(ctx context.Context, name string) (int64, error) {
	if t.store.recipientRaces > 0 {
		t.store.recipientRaces--
		t.store.pendingUsers = append(t.store.pendingUsers, name)
		return 0, ErrRecipientConflict
	}
	t.st().nextID++
	t.st().users[t.st().nextID] = name
	return t.st().nextID, nil
}

func (t *memoryTx) InsertHeader(ctx context.Context, rec Record, userID int64) (int64, error) {
	if taken, _ := t.NumberTaken(ctx, rec.Kind, rec.Number, 0); taken {
		return 0, &DuplicateKeyError{Kind: rec.Kind, Number: rec.Number}
	}
	t.st().nextID++
	id := t.st().nextID
	t.st().headers[rec.Kind][id] = memHeader{rec: rec, userID: userID}
	return id, nil
}

func (t *memoryTx) UpdateHeader(ctx context.Context, id int64, rec Record, userID int64) error {
	if _, ok := t.st().headers[rec.Kind][id]; !ok {
		return notFound(rec.Kind, id)
	}
	t.st().headers[rec.Kind][id] = memHeader{rec: rec, userID: userID}
	return nil
}

func (t *memoryTx) DeleteItems(ctx context.Context, kind Kind, headerID int64) error {
	delete(t.st().items[kind], headerID)
	return nil
}

func (t *memoryTx) InsertItem(ctx context.Context, kind Kind, headerID int64, item Item) error {
	t.inserted++
	if t.store.failItemAt > 0 && t.inserted == t.store.failItemAt {
		return errInjected
	}
	t.st().items[kind][headerID] = append(t.st().items[kind][headerID], item)
	return nil
}

func (m *memoryStore) GetPO(ctx context.Context, id int64) (PODetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	h, ok := m.state.headers[KindPO][id]
	if !ok {
		return PODetails{}, notFound(KindPO, id)
	}
	d := PODetails{POID: id, PONo: h.rec.Number, Supplier: h.rec.Counterparty, PODate: h.rec.Date, TotalAmount: NewMoney(h.rec.Total), Items: []POItemView{}}
	for _, it := range m.state.items[KindPO][id] {
		d.Items = append(d.Items, POItemView{LineNo: it.LineNo, Description: it.Description, Quantity: NewQuantity(it.Quantity), UnitCost: NewMoney(it.UnitCost), Amount: NewMoney(it.Amount)})
	}
	return d, nil
}

func (m *memoryStore) GetPAR(ctx context.Context, id int64) (PARDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	h, ok := m.state.headers[KindPAR][id]
	if !ok {
		return PARDetails{}, notFound(KindPAR, id)
	}
	d := PARDetails{PARID: id, PARNo: h.rec.Number, UserID: h.userID, ReceivedBy: m.state.users[h.userID], PARDate: h.rec.Date, TotalAmount: NewMoney(h.rec.Total), Items: []PARItemView{}}
	for _, it := range m.state.items[KindPAR][id] {
		d.Items = append(d.Items, PARItemView{LineNo: it.LineNo, Description: it.Description, Quantity: NewQuantity(it.Quantity), Amount: NewMoney(it.Amount), DateAcquired: it.DateAcquired})
	}
	return d, nil
}

func (m *memoryStore) ListPOs(ctx context.Context, filter ListFilter) ([]POSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []POSummary{}
	for id, h := range m.state.headers[KindPO] {
		out = append(out, POSummary{POID: id, PONo: h.rec.Number, Supplier: h.rec.Counterparty, PODate: h.rec.Date, TotalAmount: NewMoney(h.rec.Total), ItemCount: len(m.state.items[KindPO][id])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].POID > out[j].POID })
	return out, nil
}

func (m *memoryStore) ListPARs(ctx context.Context, filter ListFilter) ([]PARSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []PARSummary{}
	for id, h := range m.state.headers[KindPAR] {
		if filter.UserID != 0 && h.userID != filter.UserID {
			continue
		}
		out = append(out, PARSummary{PARID: id, PARNo: h.rec.Number, UserID: h.userID, ReceivedBy: m.state.users[h.userID], PARDate: h.rec.Date, TotalAmount: NewMoney(h.rec.Total), ItemCount: len(m.state.items[KindPAR][id])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PARID > out[j].PARID })
	return out, nil
}

func (m *memoryStore) ListRecipients(ctx context.Context) ([]Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Recipient{}
	for id, name := range m.state.users {
		count := 0
		for _, h := range m.state.headers[KindPAR] {
			if h.userID == id {
				count++
			}
		}
		out = append(out, Recipient{UserID: id, FullName: name, PARCount: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memoryStore) RepairTotals(ctx context.Context, kind Kind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var repaired int64
	for id, h := range m.state.headers[kind] {
		rec := h.rec
		rec.Items = m.state.items[kind][id]
		sum := rec.ComputeTotal()
		if !sum.Equal(h.rec.Total) {
			h.rec.Total = sum
			m.state.headers[kind][id] = h
			repaired++
		}
	}
	return repaired, nil
}
