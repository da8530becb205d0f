package reconcile

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/iurnickita/orderexport/internal/model"
)

// Catalogs - все, что нужно для оценки одного заказа в рамках прохода.
type Catalogs struct {
	Source             Catalog
	Target             Catalog
	StaticCustomerCnpj string
}

type DetailFetcher interface {
	GetOrder(ctx context.Context, account model.Account, id int64) (model.OrderDetail, error)
}

// ProcessStatus загружает детали заказа и вычисляет его статус.
// Ошибка платформы не пробрасывается наружу как отказ: заказ всегда возвращается
// со статусом Error и сообщением, а err отдается только для журнала.
func ProcessStatus(ctx context.Context, fetcher DetailFetcher, account model.Account, order model.Order, catalogs Catalogs) (model.Order, error) {
	detail, err := fetcher.GetOrder(ctx, account, order.ID)
	if err != nil {
		failed := order.Clone()
		failed.Status = model.OrderStatusError
		failed.AddError("failed to process order %s", order.Number)
		return failed, err
	}
	return Evaluate(order, detail, catalogs), nil
}

// Evaluate - чистая функция: по снимку заказа, его деталям и двум каталогам
// возвращает новый заказ с итоговым статусом и сообщениями.
func Evaluate(order model.Order, detail model.OrderDetail, catalogs Catalogs) model.Order {
	result := order.Clone()
	result.Products = []model.Product{}
	result.ProductsToExport = []model.Product{}

	// 1. заказ уже связан с заказом-получателем
	if detail.HasTransfer() {
		result.Status = model.OrderStatusExported
		return result
	}

	// 2. нет позиций
	if !detail.ItemsValid || len(detail.Items) == 0 {
		result.Status = model.OrderStatusError
		result.AddError("products not found for order %s", order.Number)
		return result
	}
	result.Items = append([]model.LineItem(nil), detail.Items...)

	failed := false

	// 3. статичный клиент не совпадает с настроенным CNPJ
	if order.DefaultCustomer != nil && catalogs.StaticCustomerCnpj != "" &&
		digitsOnly(order.DefaultCustomer.DocumentNumber) != digitsOnly(catalogs.StaticCustomerCnpj) {
		result.AddError("default customer %s does not match configured tax id %s",
			order.DefaultCustomer.DocumentNumber, catalogs.StaticCustomerCnpj)
		failed = true
	}

	// 4. позиции
	stockEnough := false
	for _, item := range detail.Items {
		if item.Quantity <= 0 {
			result.AddError("product %s has invalid quantity %v", describeItem(item), item.Quantity)
			failed = true
			continue
		}
		source, ok := catalogs.Source.Find(item)
		if !ok {
			result.AddError("product %s not found in source account", describeItem(item))
			failed = true
			continue
		}
		if source.StockQuantity >= item.Quantity {
			stockEnough = true
			continue
		}
		target, ok := catalogs.Target.Find(item)
		if !ok {
			result.AddError("product %s has no substitute in target account", describeItem(item))
			failed = true
			continue
		}
		result.Products = append(result.Products, source)
		result.ProductsToExport = append(result.ProductsToExport, target)
	}

	// 5. итог: Error > StockEnough > CanBeExported
	switch {
	case failed:
		result.Status = model.OrderStatusError
	case stockEnough:
		result.Status = model.OrderStatusStockEnough
	default:
		result.Status = model.OrderStatusCanBeExported
	}
	return result
}

func describeItem(item model.LineItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", item.ProductID)
	if item.Code != "" {
		fmt.Fprintf(&b, " (%s)", item.Code)
	}
	return b.String()
}

func digitsOnly(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, value)
}
