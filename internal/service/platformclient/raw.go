package platformclient

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/iurnickita/orderexport/internal/model"
)

// Сырые записи платформы. Поля, которые не разбираются, уходят в Original.

type rawOrder struct {
	ID            int64           `json:"id"`
	Numero        flexString      `json:"numero"`
	NumeroLoja    flexString      `json:"numeroLoja"`
	Data          string          `json:"data"`
	Total         float64         `json:"total"`
	TotalProdutos float64         `json:"totalProdutos"`
	Contato       rawCustomer     `json:"contato"`
	Transferencia json.RawMessage `json:"transferencia"`
	Itens         json.RawMessage `json:"itens"`
}

type rawItem struct {
	Produto struct {
		ID int64 `json:"id"`
	} `json:"produto"`
	Codigo     string  `json:"codigo"`
	Descricao  string  `json:"descricao"`
	Quantidade float64 `json:"quantidade"`
	Valor      float64 `json:"valor"`
}

type rawProduct struct {
	ID      int64   `json:"id"`
	Codigo  string  `json:"codigo"`
	Nome    string  `json:"nome"`
	Preco   float64 `json:"preco"`
	Estoque struct {
		SaldoVirtualTotal float64 `json:"saldoVirtualTotal"`
	} `json:"estoque"`
}

type rawCustomer struct {
	ID              int64      `json:"id"`
	Nome            string     `json:"nome"`
	Codigo          flexString `json:"codigo"`
	NumeroDocumento flexString `json:"numeroDocumento"`
	Telefone        flexString `json:"telefone"`
	TipoPessoa      string     `json:"tipoPessoa"`
}

type rawOption struct {
	ID        int64  `json:"id"`
	Nome      string `json:"nome"`
	Descricao string `json:"descricao"`
}

// Тело запроса на создание клиента
type customerPayload struct {
	Nome            string `json:"nome"`
	Codigo          string `json:"codigo,omitempty"`
	NumeroDocumento string `json:"numeroDocumento"`
	Telefone        string `json:"telefone,omitempty"`
	TipoPessoa      string `json:"tipoPessoa,omitempty"`
}

// Ответ платформы на операции записи
type writeAnswer struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// flexString принимает и строку, и число.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

var dateLayouts = []string{time.DateOnly, time.DateTime, time.RFC3339}

func parseDate(value string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isJSONArray(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isJSONObject(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func (raw rawOrder) toOrder(profile string, original json.RawMessage) model.Order {
	number := string(raw.NumeroLoja)
	if number == "" {
		number = string(raw.Numero)
	}
	total := raw.Total
	if total == 0 {
		total = raw.TotalProdutos
	}
	order := model.Order{
		ID:          raw.ID,
		Number:      number,
		StoreNumber: string(raw.NumeroLoja),
		Profile:     profile,
		Date:        parseDate(raw.Data),
		TotalPrice:  total,
		Customer:    raw.Contato.toCustomer(profile, nil),
		Original:    original,
	}
	order.Items, _ = parseItems(raw.Itens)
	order.ResetStatus()
	return order
}

func (raw rawOrder) toDetail() model.OrderDetail {
	detail := model.OrderDetail{
		ID:       raw.ID,
		Transfer: raw.Transferencia,
	}
	detail.Items, detail.ItemsValid = parseItems(raw.Itens)
	return detail
}

// parseItems возвращает false, если список позиций отсутствует или испорчен.
func parseItems(data json.RawMessage) ([]model.LineItem, bool) {
	if !isJSONArray(data) {
		return nil, false
	}
	var rawItems []*rawItem
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, false
	}
	items := make([]model.LineItem, 0, len(rawItems))
	for _, raw := range rawItems {
		if raw == nil {
			continue
		}
		items = append(items, model.LineItem{
			ProductID:   raw.Produto.ID,
			Code:        strings.TrimSpace(raw.Codigo),
			Description: raw.Descricao,
			Quantity:    raw.Quantidade,
			Value:       raw.Valor,
		})
	}
	return items, true
}

func (raw rawProduct) toProduct(profile string, original json.RawMessage) model.Product {
	return model.Product{
		ID:            raw.ID,
		Code:          strings.TrimSpace(raw.Codigo),
		Description:   raw.Nome,
		Value:         raw.Preco,
		StockQuantity: raw.Estoque.SaldoVirtualTotal,
		Profile:       profile,
		Original:      original,
	}
}

func (raw rawCustomer) toCustomer(profile string, original json.RawMessage) model.Customer {
	return model.Customer{
		ID:             raw.ID,
		Name:           raw.Nome,
		Code:           string(raw.Codigo),
		DocumentNumber: string(raw.NumeroDocumento),
		Phone:          string(raw.Telefone),
		PersonType:     raw.TipoPessoa,
		Profile:        profile,
		Original:       original,
	}
}

func newCustomerPayload(customer model.Customer) customerPayload {
	return customerPayload{
		Nome:            customer.Name,
		Codigo:          customer.Code,
		NumeroDocumento: customer.DocumentNumber,
		Telefone:        customer.Phone,
		TipoPessoa:      customer.PersonType,
	}
}
