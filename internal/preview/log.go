package preview

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/ivlev/svg2video/internal/sampler"
)

const barWidth = 30

// LogView рисует в терминале строку прогресса. Строка обновляется, только
// когда прогресс сдвинулся на Step процентов.
type LogView struct {
	Step int

	mu   sync.Mutex
	out  *termenv.Output
	last int
}

func NewLogView(w io.Writer, opts ...termenv.OutputOption) *LogView {
	return &LogView{Step: 5, out: termenv.NewOutput(w, opts...), last: -1}
}

func (v *LogView) Apply(f sampler.Frame) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	pct := int(math.Round(f.Progress * 100))
	step := v.Step
	if step <= 0 {
		step = 1
	}
	if pct == v.last {
		return nil
	}
	// после перезапуска прогресс уменьшается, такую строку печатаем сразу
	if v.last >= 0 && pct > v.last && pct-v.last < step && pct != 100 {
		return nil
	}
	v.last = pct

	filled := pct * barWidth / 100
	bar := v.out.String(strings.Repeat("#", filled)).Foreground(v.out.Color("2")).String() +
		strings.Repeat(".", barWidth-filled)
	done := 0
	for _, st := range f.States {
		if st.DashOffset <= 0 {
			done++
		}
	}
	_, err := fmt.Fprintf(v.out, "[>] [%s] %3d%% | штрихов: %d/%d\n", bar, pct, done, len(f.States))
	return err
}

func (v *LogView) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = -1
	_, err := fmt.Fprintln(v.out, v.out.String("[*] Сброс анимации").Faint().String())
	return err
}
