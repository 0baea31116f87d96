package repo

import (
	"context"
	"sync"
)

// SerialCounter — реализация pki.SerialSource в памяти для кода, не
// привязанного к хранилищу (в первую очередь тестов выпуска). Мьютекс
// делает чтение-инкремент-запись неделимым — моральный эквивалент
// блокировки строки в PKIStore.NextSerial.
type SerialCounter struct {
	mu   sync.Mutex
	next map[uint]int64
}

func NewSerialCounter() *SerialCounter {
	return &SerialCounter{next: make(map[uint]int64)}
}

// Seed задаёт стартовое значение счётчика для CA.
func (c *SerialCounter) Seed(caID uint, next int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next[caID] = next
}

func (c *SerialCounter) NextSerial(_ context.Context, caID uint) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	serial, ok := c.next[caID]
	if !ok {
		serial = 1
	}
	c.next[caID] = serial + 1
	return serial, nil
}
