// Package preview - отображения предпросмотра для playback.Scheduler:
// консольный индикатор, публикация состояний в MQTT и растровый снимок.
package preview

import (
	"errors"

	"github.com/ivlev/svg2video/internal/playback"
	"github.com/ivlev/svg2video/internal/sampler"
)

type multi []playback.View

// Multi рассылает кадры нескольким отображениям по порядку.
func Multi(views ...playback.View) playback.View {
	return multi(views)
}

func (m multi) Apply(f sampler.Frame) error {
	var errs []error
	for _, v := range m {
		if err := v.Apply(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Reset() error {
	var errs []error
	for _, v := range m {
		if err := v.Reset(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
