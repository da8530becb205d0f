package platformclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/iurnickita/orderexport/internal/model"
	"github.com/iurnickita/orderexport/internal/service/platformclient/config"
)

// PlatformClient - запросы к HTTP API платформы от имени аккаунта (profile + secret).
type PlatformClient interface {
	ListOrders(ctx context.Context, account model.Account, since time.Time) ([]model.Order, error)
	GetOrder(ctx context.Context, account model.Account, id int64) (model.OrderDetail, error)
	ListProducts(ctx context.Context, account model.Account, depositID int64) ([]model.Product, error)
	GetCustomer(ctx context.Context, account model.Account, document string) (model.Customer, error)
	CreateCustomer(ctx context.Context, account model.Account, customer model.Customer) (model.Customer, error)
	CreateOrder(ctx context.Context, account model.Account, payload model.ExportPayload) (int64, error)
	ListSituations(ctx context.Context, account model.Account) ([]model.Option, error)
	ListStores(ctx context.Context, account model.Account) ([]model.Option, error)
}

var (
	ErrNotFound        = errors.New("not found")
	ErrUnexpectedShape = errors.New("unexpected response shape")
	ErrRejected        = errors.New("rejected by platform")
)

const (
	pathOrders     = "/api/profile/{profile}/order"
	pathOrder      = "/api/profile/{profile}/order/{id}"
	pathProducts   = "/api/profile/{profile}/product"
	pathCustomers  = "/api/profile/{profile}/customer"
	pathSituations = "/api/profile/{profile}/order-status"
	pathStores     = "/api/profile/{profile}/store"
)

type platformClient struct {
	client *resty.Client
}

func NewPlatformClient(cfg config.Config) PlatformClient {
	client := resty.New().
		SetBaseURL(cfg.Addr).
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return platformClient{client: client}
}

// newRequest готовит запрос с учетными данными аккаунта.
func (c platformClient) newRequest(ctx context.Context, account model.Account, method string, path string) *resty.Request {
	setreq := c.client.R().
		SetContext(ctx).
		SetPathParam("profile", account.Profile).
		SetQueryParam("accountSecret", account.Secret)
	setreq.Method = method
	setreq.URL = path
	return setreq
}

// send выполняет запрос. Ошибки содержат только шаблон пути:
// полный URL несет accountSecret в строке запроса.
func (c platformClient) send(setreq *resty.Request) ([]byte, error) {
	method, path := setreq.Method, setreq.URL
	setresp, err := setreq.Send()
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, fmt.Errorf("platform request %s %s: %w", method, path, urlErr.Err)
		}
		return nil, fmt.Errorf("platform request %s %s failed", method, path)
	}

	switch setresp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return setresp.Body(), nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("platform request %s %s status: %d", method, path, setresp.StatusCode())
	}
}

// decodeList разбирает конверт {"data": [...]}.
func decodeList(body []byte) ([]json.RawMessage, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	if !isJSONArray(envelope.Data) {
		return nil, fmt.Errorf("%w: data is not an array", ErrUnexpectedShape)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(envelope.Data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return rows, nil
}

func isNullRow(row json.RawMessage) bool {
	return len(row) == 0 || string(row) == "null"
}

func (c platformClient) ListOrders(ctx context.Context, account model.Account, since time.Time) ([]model.Order, error) {
	setreq := c.newRequest(ctx, account, http.MethodGet, pathOrders)
	if !since.IsZero() {
		setreq.SetQueryParam("dataInicial", since.Format(time.DateOnly))
	}
	body, err := c.send(setreq)
	if err != nil {
		return nil, err
	}

	rows, err := decodeList(body)
	if err != nil {
		return nil, err
	}
	orders := make([]model.Order, 0, len(rows))
	for _, row := range rows {
		if isNullRow(row) {
			continue
		}
		var raw rawOrder
		if err := json.Unmarshal(row, &raw); err != nil {
			return nil, fmt.Errorf("%w: order: %v", ErrUnexpectedShape, err)
		}
		orders = append(orders, raw.toOrder(account.Profile, row))
	}
	return orders, nil
}

func (c platformClient) GetOrder(ctx context.Context, account model.Account, id int64) (model.OrderDetail, error) {
	setreq := c.newRequest(ctx, account, http.MethodGet, pathOrder)
	setreq.SetPathParam("id", strconv.FormatInt(id, 10))
	body, err := c.send(setreq)
	if err != nil {
		return model.OrderDetail{}, err
	}

	// запись может прийти как есть или в конверте data
	record := json.RawMessage(body)
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && isJSONObject(envelope.Data) {
		record = envelope.Data
	}
	if !isJSONObject(record) {
		return model.OrderDetail{}, fmt.Errorf("%w: order %d is not an object", ErrUnexpectedShape, id)
	}

	var raw rawOrder
	if err := json.Unmarshal(record, &raw); err != nil {
		return model.OrderDetail{}, fmt.Errorf("%w: order %d: %v", ErrUnexpectedShape, id, err)
	}
	return raw.toDetail(), nil
}

func (c platformClient) ListProducts(ctx context.Context, account model.Account, depositID int64) ([]model.Product, error) {
	setreq := c.newRequest(ctx, account, http.MethodGet, pathProducts)
	if depositID != 0 {
		setreq.SetQueryParam("idDeposito", strconv.FormatInt(depositID, 10))
	}
	body, err := c.send(setreq)
	if err != nil {
		return nil, err
	}

	rows, err := decodeList(body)
	if err != nil {
		return nil, err
	}
	products := make([]model.Product, 0, len(rows))
	for _, row := range rows {
		if isNullRow(row) {
			continue
		}
		var raw rawProduct
		if err := json.Unmarshal(row, &raw); err != nil {
			return nil, fmt.Errorf("%w: product: %v", ErrUnexpectedShape, err)
		}
		products = append(products, raw.toProduct(account.Profile, row))
	}
	return products, nil
}

func (c platformClient) GetCustomer(ctx context.Context, account model.Account, document string) (model.Customer, error) {
	setreq := c.newRequest(ctx, account, http.MethodGet, pathCustomers)
	setreq.SetQueryParam("numeroDocumento", document)
	body, err := c.send(setreq)
	if err != nil {
		return model.Customer{}, err
	}

	rows, err := decodeList(body)
	if err != nil {
		return model.Customer{}, err
	}
	for _, row := range rows {
		if isNullRow(row) {
			continue
		}
		var raw rawCustomer
		if err := json.Unmarshal(row, &raw); err != nil {
			return model.Customer{}, fmt.Errorf("%w: customer: %v", ErrUnexpectedShape, err)
		}
		return raw.toCustomer(account.Profile, row), nil
	}
	return model.Customer{}, ErrNotFound
}

func (c platformClient) CreateCustomer(ctx context.Context, account model.Account, customer model.Customer) (model.Customer, error) {
	setreq := c.newRequest(ctx, account, http.MethodPost, pathCustomers)
	setreq.SetBody(newCustomerPayload(customer))
	data, err := c.write(setreq)
	if err != nil {
		return model.Customer{}, err
	}

	var raw rawCustomer
	if err := json.Unmarshal(data, &raw); err != nil || raw.ID == 0 {
		return model.Customer{}, fmt.Errorf("%w: created customer has no id", ErrUnexpectedShape)
	}
	return raw.toCustomer(account.Profile, data), nil
}

func (c platformClient) CreateOrder(ctx context.Context, account model.Account, payload model.ExportPayload) (int64, error) {
	setreq := c.newRequest(ctx, account, http.MethodPost, pathOrders)
	setreq.SetBody(payload)
	data, err := c.write(setreq)
	if err != nil {
		return 0, err
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return 0, fmt.Errorf("%w: created order: %v", ErrUnexpectedShape, err)
	}
	return created.ID, nil
}

// write отправляет операцию записи и возвращает data из ответа {success, data, error}.
func (c platformClient) write(setreq *resty.Request) (json.RawMessage, error) {
	body, err := c.send(setreq)
	if err != nil {
		return nil, err
	}

	var answer writeAnswer
	if err := json.Unmarshal(body, &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	if !answer.Success {
		if answer.Error == "" {
			return nil, ErrRejected
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, answer.Error)
	}
	return answer.Data, nil
}

func (c platformClient) ListSituations(ctx context.Context, account model.Account) ([]model.Option, error) {
	body, err := c.send(c.newRequest(ctx, account, http.MethodGet, pathSituations))
	if err != nil {
		return nil, err
	}

	// ситуации приходят голым массивом
	var raws []*rawOption
	if !isJSONArray(body) {
		return nil, fmt.Errorf("%w: situations are not an array", ErrUnexpectedShape)
	}
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	options := make([]model.Option, 0, len(raws))
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		options = append(options, model.Option{ID: raw.ID, Label: raw.Nome})
	}
	return options, nil
}

func (c platformClient) ListStores(ctx context.Context, account model.Account) ([]model.Option, error) {
	body, err := c.send(c.newRequest(ctx, account, http.MethodGet, pathStores))
	if err != nil {
		return nil, err
	}

	rows, err := decodeList(body)
	if err != nil {
		return nil, err
	}
	options := make([]model.Option, 0, len(rows))
	for _, row := range rows {
		if isNullRow(row) {
			continue
		}
		var raw rawOption
		if err := json.Unmarshal(row, &raw); err != nil {
			return nil, fmt.Errorf("%w: store: %v", ErrUnexpectedShape, err)
		}
		options = append(options, model.Option{ID: raw.ID, Label: raw.Descricao})
	}
	return options, nil
}
