package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Probe отвечает на один вопрос: есть ли сейчас сеть.
type Probe func(ctx context.Context) bool

// HTTPProbe — HEAD к серверу с коротким таймаутом.
func HTTPProbe(url string) Probe {
	client := &http.Client{Timeout: 5 * time.Second}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode < 500
	}
}

// Monitor держит кэшированное состояние сети и дёргает подписчиков
// на переходах. Переход offline→online дополнительно запускает
// автоматический синк (hook задаётся через SetOnOnline).
type Monitor struct {
	probe    Probe
	interval time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	online    bool
	listeners map[int]func(online bool)
	nextID    int
	onOnline  func()
}

func New(probe Probe, interval time.Duration, log *slog.Logger) *Monitor {
	return &Monitor{
		probe:     probe,
		interval:  interval,
		log:       log,
		listeners: make(map[int]func(bool)),
	}
}

// SetOnOnline задаёт hook автоматического синка. Вызывается в своей
// горутине, чтобы не блокировать цикл опроса.
func (m *Monitor) SetOnOnline(fn func()) {
	m.mu.Lock()
	m.onOnline = fn
	m.mu.Unlock()
}

func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// AddListener подписывает на переходы (не на каждый опрос).
// Возвращённый unsubscribe можно звать сколько угодно раз.
func (m *Monitor) AddListener(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Start запускает цикл опроса до отмены контекста.
func (m *Monitor) Start(ctx context.Context) {
	m.Check(ctx)
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Check делает один опрос и раздаёт уведомления при смене состояния.
func (m *Monitor) Check(ctx context.Context) {
	online := m.probe(ctx)

	m.mu.Lock()
	was := m.online
	if online == was {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	hook := m.onOnline
	m.mu.Unlock()

	if online {
		m.log.Info("network connected")
		if hook != nil {
			go hook()
		}
	} else {
		// офлайн — не ошибка; запущенные запросы упадут сами
		m.log.Info("network disconnected")
	}
	for _, fn := range fns {
		fn(online)
	}
}
