package system

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

var ErrInsufficientMemory = errors.New("not enough memory")

// MemoryReserve - доля свободной памяти, которую экспорт может занять кадрами.
const MemoryReserve = 0.8

// AvailableMemory возвращает объем доступной памяти в байтах.
func AvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// CheckMemory сравнивает требуемый объем с доступной памятью. Если узнать
// доступный объем не удалось, проверка пропускается.
func CheckMemory(required uint64) error {
	avail, err := AvailableMemory()
	if err != nil || avail == 0 {
		return nil
	}
	if float64(required) > float64(avail)*MemoryReserve {
		return fmt.Errorf("%w: need %s, available %s", ErrInsufficientMemory, FormatBytes(required), FormatBytes(avail))
	}
	return nil
}

// FormatBytes печатает объем в двоичных единицах.
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
