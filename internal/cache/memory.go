package cache

import (
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory кеш в памяти процесса. Используется, когда Redis не настроен.
type Memory struct {
	c *gocache.Cache
}

// NewMemory создаёт кеш с периодом очистки просроченных ключей cleanup.
func NewMemory(defaultTTL, cleanup time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, cleanup)}
}

// Get читает значение по ключу.
func (m *Memory) Get(key string, result any) (bool, error) {
	const op = "cache.Memory.Get"
	raw, ok := m.c.Get(key)
	if !ok {
		return false, nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return false, fmt.Errorf("%s: unexpected value type %T", op, raw)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение. Хранится JSON-копия, чтобы вызывающий не мог изменить кеш по ссылке.
func (m *Memory) Set(key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache.Memory.Set: %w", err)
	}
	m.c.Set(key, data, expiration)
	return nil
}

// SetNX записывает значение, только если ключа ещё нет.
func (m *Memory) SetNX(key string, value any, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("cache.Memory.SetNX: %w", err)
	}
	if err := m.c.Add(key, data, expiration); err != nil {
		return false, nil
	}
	return true, nil
}

// Invalidate удаляет ключ.
func (m *Memory) Invalidate(key string) error {
	m.c.Delete(key)
	return nil
}

// Len возвращает число ключей, включая ещё не вычищенные просроченные.
func (m *Memory) Len() int {
	return m.c.ItemCount()
}
