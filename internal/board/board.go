package board

import (
	"errors"
	"sync"
	"time"

	"github.com/iurnickita/orderexport/internal/model"
)

var (
	ErrBusy           = errors.New("validation or export already in progress")
	ErrEmptySelection = errors.New("no orders selected")
)

// Board - список заказов одной сессии, который видит фронтенд.
//
// Каждый проход получает номер поколения. Загрузка заказов и новая проверка
// увеличивают поколение, после чего публикации старого прохода отвергаются.
type Board struct {
	mu         sync.RWMutex
	generation uint64
	orders     []model.Order
	index      map[int64]int
	validating bool
	submitting bool
	lastError  string
	loadedAt   time.Time
}

type Snapshot struct {
	Generation       uint64        `json:"generation"`
	Orders           []model.Order `json:"orders"`
	IsValidatingData bool          `json:"isValidatingData"`
	IsSubmitting     bool          `json:"isSubmitting"`
	LastError        string        `json:"lastError,omitempty"`
	LoadedAt         time.Time     `json:"loadedAt"`
}

func New() *Board {
	return &Board{index: map[int64]int{}}
}

// Load заменяет список заказов и осиротит любой идущий проход.
func (b *Board) Load(orders []model.Order) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.generation++
	b.orders = cloneOrders(orders)
	b.index = make(map[int64]int, len(orders))
	for i, order := range b.orders {
		b.index[order.ID] = i
	}
	b.validating = false
	b.submitting = false
	b.lastError = ""
	b.loadedAt = time.Now()
	return b.generation
}

// BeginValidation открывает новый проход проверки и возвращает снимок заказов.
func (b *Board) BeginValidation() (uint64, []model.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.validating || b.submitting {
		return 0, nil, ErrBusy
	}
	b.generation++
	b.validating = true
	b.lastError = ""
	return b.generation, cloneOrders(b.orders), nil
}

// BeginExport снимает выбранные заказы в порядке доски и включает флаг отправки,
// чтобы повторная отправка того же выбора была отвергнута.
func (b *Board) BeginExport(ids []int64) (uint64, []model.Order, error) {
	if len(ids) == 0 {
		return 0, nil, ErrEmptySelection
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.validating || b.submitting {
		return 0, nil, ErrBusy
	}
	selected := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		selected[id] = struct{}{}
	}
	var orders []model.Order
	for _, order := range b.orders {
		if _, ok := selected[order.ID]; ok {
			orders = append(orders, order.Clone())
		}
	}
	if len(orders) == 0 {
		return 0, nil, ErrEmptySelection
	}
	b.submitting = true
	b.lastError = ""
	return b.generation, orders, nil
}

// Publish применяет обновленные заказы, если поколение еще актуально.
func (b *Board) Publish(generation uint64, orders ...model.Order) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if generation != b.generation {
		return false
	}
	for _, order := range orders {
		if i, ok := b.index[order.ID]; ok {
			b.orders[i] = order.Clone()
		}
	}
	return true
}

// Finish снимает флаги прохода. Устаревший проход ничего не меняет.
func (b *Board) Finish(generation uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if generation != b.generation {
		return
	}
	b.validating = false
	b.submitting = false
	if err != nil {
		b.lastError = err.Error()
	}
}

func (b *Board) Generation() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.generation
}

func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Snapshot{
		Generation:       b.generation,
		Orders:           cloneOrders(b.orders),
		IsValidatingData: b.validating,
		IsSubmitting:     b.submitting,
		LastError:        b.lastError,
		LoadedAt:         b.loadedAt,
	}
}

func cloneOrders(orders []model.Order) []model.Order {
	cloned := make([]model.Order, len(orders))
	for i, order := range orders {
		cloned[i] = order.Clone()
	}
	return cloned
}

// Registry хранит доски по идентификатору сессии.
type Registry struct {
	mu     sync.Mutex
	boards map[string]*Board
}

func NewRegistry() *Registry {
	return &Registry{boards: map[string]*Board{}}
}

func (r *Registry) Get(sessionID string) *Board {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.boards[sessionID]
	if !ok {
		b = New()
		r.boards[sessionID] = b
	}
	return b
}

func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.boards, sessionID)
}
