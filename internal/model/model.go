package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Статус заказа

type OrderStatus int

const (
	OrderStatusNotStartedYet OrderStatus = iota
	OrderStatusLoading
	OrderStatusStockEnough
	OrderStatusCanBeExported
	OrderStatusError
	OrderStatusExported
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusNotStartedYet: "NOT_STARTED_YET",
	OrderStatusLoading:       "LOADING",
	OrderStatusStockEnough:   "STOCK_ENOUGH",
	OrderStatusCanBeExported: "CAN_BE_EXPORTED",
	OrderStatusError:         "ERROR",
	OrderStatusExported:      "EXPORTED",
}

func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OrderStatus(%d)", int(s))
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *OrderStatus) UnmarshalText(text []byte) error {
	for status, name := range orderStatusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown order status %q", text)
}

// Заказ аккаунта-источника

type Order struct {
	ID               int64           `json:"id"`
	Number           string          `json:"number"`
	StoreNumber      string          `json:"storeNumber"`
	Profile          string          `json:"profile"`
	Date             time.Time       `json:"date"`
	TotalPrice       float64         `json:"totalPrice"`
	Items            []LineItem      `json:"items"`
	Status           OrderStatus     `json:"status"`
	Errors           []string        `json:"errors"`
	Warnings         []string        `json:"warnings"`
	Success          []string        `json:"success"`
	Products         []Product       `json:"products"`
	ProductsToExport []Product       `json:"productsToExport"`
	DefaultCustomer  *Customer       `json:"defaultCustomer,omitempty"`
	Customer         Customer        `json:"customer"`
	Original         json.RawMessage `json:"original,omitempty"`
}

// ResetStatus возвращает заказ в начальное состояние перед новой проверкой.
func (o *Order) ResetStatus() {
	o.Status = OrderStatusNotStartedYet
	o.Errors = []string{}
	o.Warnings = []string{}
	o.Success = []string{}
}

func (o *Order) AddError(format string, args ...any) {
	o.Errors = append(o.Errors, fmt.Sprintf(format, args...))
}

func (o *Order) AddWarning(format string, args ...any) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

func (o *Order) AddSuccess(format string, args ...any) {
	o.Success = append(o.Success, fmt.Sprintf(format, args...))
}

// Clone копирует заказ вместе со срезами, чтобы снимки доски не делили память.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]LineItem(nil), o.Items...)
	c.Errors = append([]string(nil), o.Errors...)
	c.Warnings = append([]string(nil), o.Warnings...)
	c.Success = append([]string(nil), o.Success...)
	c.Products = append([]Product(nil), o.Products...)
	c.ProductsToExport = append([]Product(nil), o.ProductsToExport...)
	if o.DefaultCustomer != nil {
		dc := *o.DefaultCustomer
		c.DefaultCustomer = &dc
	}
	return c
}

type LineItem struct {
	ProductID   int64   `json:"productId"`
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Value       float64 `json:"value"`
}

// Детальные данные заказа с платформы
type OrderDetail struct {
	ID         int64
	Transfer   json.RawMessage
	Items      []LineItem
	ItemsValid bool
}

// HasTransfer сообщает, что платформа уже связала заказ с заказом-получателем.
// Пустые значения (null, {}, [], "", false, 0) с любыми пробелами признаком не считаются.
func (d OrderDetail) HasTransfer() bool {
	if len(bytes.TrimSpace(d.Transfer)) == 0 {
		return false
	}
	var marker any
	if err := json.Unmarshal(d.Transfer, &marker); err != nil {
		return true
	}
	switch v := marker.(type) {
	case nil:
		return false
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	}
	return true
}

// Товары и клиенты

type Product struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	Value         float64         `json:"value"`
	StockQuantity float64         `json:"stockQuantity"`
	Profile       string          `json:"profile"`
	Original      json.RawMessage `json:"original,omitempty"`
}

type Customer struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Code           string          `json:"code"`
	DocumentNumber string          `json:"documentNumber"`
	Phone          string          `json:"phone"`
	PersonType     string          `json:"personType"`
	Profile        string          `json:"profile"`
	Original       json.RawMessage `json:"original,omitempty"`
}

// Сессия и настройки экспорта

type Account struct {
	Profile string `json:"profile"`
	Secret  string `json:"secret"`
}

func (a Account) Empty() bool {
	return a.Profile == "" || a.Secret == ""
}

type ExportConfig struct {
	DefaultStoreID     int64  `json:"defaultStoreId"`
	DefaultSituacaoID  int64  `json:"defaultSituacaoId"`
	StaticCustomerCnpj string `json:"staticCustomerCnpj"`
}

type Session struct {
	ID        string
	Source    Account
	Target    Account
	Config    ExportConfig
	CreatedAt time.Time
}

// Элемент выпадающего списка (ситуации, магазины)
type Option struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Запрос на создание заказа в аккаунте-получателе
type ExportPayload struct {
	SourceID         int64           `json:"sourceId"`
	Customer         Customer        `json:"customer"`
	Date             time.Time       `json:"date"`
	OrderStoreNumber string          `json:"orderStoreNumber"`
	OrderNumber      string          `json:"orderNumber"`
	Original         json.RawMessage `json:"original,omitempty"`
	Products         []Product       `json:"products"`
	ProfileSource    string          `json:"profileSource"`
	ProfileTarget    string          `json:"profileTarget"`
	StoreID          int64           `json:"storeId"`
	SituacaoID       int64           `json:"situacaoId"`
}

// Журнал экспорта

type ExportRecord struct {
	SessionID     string    `json:"-"`
	SourceProfile string    `json:"sourceProfile"`
	TargetProfile string    `json:"targetProfile"`
	SourceOrderID int64     `json:"sourceOrderId"`
	OrderNumber   string    `json:"orderNumber"`
	TargetOrderID int64     `json:"targetOrderId"`
	ExportedAt    time.Time `json:"exportedAt"`
}
