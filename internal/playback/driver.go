package playback

import (
	"sync"
	"time"
)

// DefaultInterval - частота тиков превью (примерно одно обновление экрана).
const DefaultInterval = time.Second / 60

// Driver вызывает tick с собственной частотой до вызова возвращенной функции
// stop. stop не ждет завершения текущего тика.
type Driver interface {
	Start(tick func()) (stop func())
}

// Clock - источник времени планировщика.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// TickerDriver тикает по time.Ticker в отдельной горутине.
type TickerDriver struct {
	Interval time.Duration
}

func (d TickerDriver) Start(tick func()) func() {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				tick()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// ManualDriver отдает тики вызывающему коду: тестам и хостам со своим
// циклом отрисовки.
type ManualDriver struct {
	mu   sync.Mutex
	tick func()
	seq  uint64
}

func (d *ManualDriver) Start(tick func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	seq := d.seq
	d.tick = tick
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.seq == seq {
			d.tick = nil
		}
	}
}

// Tick выполняет один тик. Возвращает false, если активного прогона нет.
func (d *ManualDriver) Tick() bool {
	d.mu.Lock()
	tick := d.tick
	d.mu.Unlock()
	if tick == nil {
		return false
	}
	tick()
	return true
}

// Active сообщает, подписан ли планировщик на тики.
func (d *ManualDriver) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tick != nil
}
