package reconcile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iurnickita/orderexport/internal/model"
)

// MatchKey - по какому полю позиция заказа сопоставляется с товаром каталога.
//
// Идентификаторы товаров двух разных аккаунтов платформы не обязаны совпадать,
// поэтому ключ выбирается в настройках. MatchByID сохраняет исходное поведение.
type MatchKey int

const (
	MatchByID MatchKey = iota
	MatchByCode
)

func ParseMatchKey(value string) (MatchKey, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "id":
		return MatchByID, nil
	case "code", "sku":
		return MatchByCode, nil
	default:
		return MatchByID, fmt.Errorf("unknown match key %q", value)
	}
}

func (key MatchKey) String() string {
	if key == MatchByCode {
		return "code"
	}
	return "id"
}

func (key MatchKey) productKey(product model.Product) string {
	if key == MatchByCode {
		return normalizeCode(product.Code)
	}
	if product.ID == 0 {
		return ""
	}
	return strconv.FormatInt(product.ID, 10)
}

func (key MatchKey) itemKey(item model.LineItem) string {
	if key == MatchByCode {
		return normalizeCode(item.Code)
	}
	if item.ProductID == 0 {
		return ""
	}
	return strconv.FormatInt(item.ProductID, 10)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Catalog - каталог товаров одного аккаунта, проиндексированный по ключу сопоставления.
type Catalog struct {
	key      MatchKey
	index    map[string]int
	products []model.Product
}

func NewCatalog(products []model.Product, key MatchKey) Catalog {
	catalog := Catalog{
		key:      key,
		index:    make(map[string]int, len(products)),
		products: products,
	}
	for i, product := range products {
		k := key.productKey(product)
		if k == "" {
			continue
		}
		// при дублях побеждает первый товар
		if _, ok := catalog.index[k]; !ok {
			catalog.index[k] = i
		}
	}
	return catalog
}

func (c Catalog) Len() int {
	return len(c.products)
}

func (c Catalog) Find(item model.LineItem) (model.Product, bool) {
	k := c.key.itemKey(item)
	if k == "" {
		return model.Product{}, false
	}
	i, ok := c.index[k]
	if !ok {
		return model.Product{}, false
	}
	return c.products[i], true
}
