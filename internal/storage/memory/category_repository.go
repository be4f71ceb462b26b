package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
)

// categoryRepositoryInMemory — простое in-memory хранилище категорий.
type categoryRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Category
}

// NewCategoryRepository создаёт in-memory реализацию CategoryRepository.
func NewCategoryRepository() domain.CategoryRepository {
	return &categoryRepositoryInMemory{items: make(map[string]domain.Category)}
}

func (r *categoryRepositoryInMemory) Create(_ context.Context, category domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	r.items[category.ID] = category
	return nil
}

// List возвращает категории, отсортированные по названию.
func (r *categoryRepositoryInMemory) List(_ context.Context) ([]domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Category, 0, len(r.items))
	for _, category := range r.items {
		result = append(result, category)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

var _ domain.CategoryRepository = (*categoryRepositoryInMemory)(nil)
