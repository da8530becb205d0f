package reconcile

import (
	"context"
	"errors"
	"sync"

	"github.com/iurnickita/orderexport/internal/model"
)

var (
	sourceAccount = model.Account{Profile: "source", Secret: "s"}
	targetAccount = model.Account{Profile: "target", Secret: "t"}
	errPlatform   = errors.New("platform unavailable")
)

// fakeGateway - платформа в памяти со счетчиками вызовов.
type fakeGateway struct {
	mu sync.Mutex

	products     map[string][]model.Product
	productsErr  map[string]error
	details      map[int64]model.OrderDetail
	detailErr    map[int64]error
	customers    map[string]model.Customer
	createCustFn func(customer model.Customer) (model.Customer, error)
	createOrdFn  func(payload model.ExportPayload) (int64, error)

	getOrderCalls    int
	getCustomerCalls int
	createCustCalls  int
	payloads         []model.ExportPayload
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		products:    map[string][]model.Product{},
		productsErr: map[string]error{},
		details:     map[int64]model.OrderDetail{},
		detailErr:   map[int64]error{},
		customers:   map[string]model.Customer{},
	}
}

func (f *fakeGateway) GetOrder(_ context.Context, _ model.Account, id int64) (model.OrderDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrderCalls++
	if err := f.detailErr[id]; err != nil {
		return model.OrderDetail{}, err
	}
	return f.details[id], nil
}

func (f *fakeGateway) ListProducts(_ context.Context, account model.Account, _ int64) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.productsErr[account.Profile]; err != nil {
		return nil, err
	}
	return f.products[account.Profile], nil
}

func (f *fakeGateway) GetCustomer(_ context.Context, _ model.Account, document string) (model.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCustomerCalls++
	customer, ok := f.customers[document]
	if !ok {
		return model.Customer{}, errors.New("not found")
	}
	return customer, nil
}

func (f *fakeGateway) CreateCustomer(_ context.Context, _ model.Account, customer model.Customer) (model.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCustCalls++
	if f.createCustFn != nil {
		return f.createCustFn(customer)
	}
	customer.ID = 1000 + int64(f.createCustCalls)
	return customer, nil
}

func (f *fakeGateway) CreateOrder(_ context.Context, _ model.Account, payload model.ExportPayload) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if f.createOrdFn != nil {
		return f.createOrdFn(payload)
	}
	return 5000 + payload.SourceID, nil
}

// recorder собирает все публикации.
type recorder struct {
	published []model.Order
	stopAfter int
}

func (r *recorder) publish(orders ...model.Order) bool {
	for _, order := range orders {
		r.published = append(r.published, order.Clone())
	}
	return r.stopAfter == 0 || len(r.published) < r.stopAfter
}

type fakeJournal struct {
	records []model.ExportRecord
	err     error
}

func (j *fakeJournal) ExportRecordPost(_ context.Context, record model.ExportRecord) error {
	if j.err != nil {
		return j.err
	}
	j.records = append(j.records, record)
	return nil
}

func newOrder(id int64, number string) model.Order {
	order := model.Order{
		ID:       id,
		Number:   number,
		Profile:  sourceAccount.Profile,
		Customer: model.Customer{Name: "Customer " + number, DocumentNumber: "0" + number},
	}
	order.ResetStatus()
	return order
}

func detailWith(items ...model.LineItem) model.OrderDetail {
	return model.OrderDetail{Items: items, ItemsValid: true}
}
