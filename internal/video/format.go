package video

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownFormat = errors.New("unknown export format")

const (
	FormatWebM   = "webm"
	FormatMP4    = "mp4"
	FormatGIF    = "gif"
	FormatFrames = "frames"
)

// Format описывает контейнер результата и кодеки, которыми его можно собрать,
// в порядке предпочтения.
type Format struct {
	Name   string
	Ext    string
	MIME   string
	Codecs []string
	Alpha  bool // контейнер умеет хранить прозрачность
}

var formats = map[string]Format{
	FormatWebM: {
		Name:   FormatWebM,
		Ext:    "webm",
		MIME:   "video/webm",
		Codecs: []string{"libvpx-vp9"},
		Alpha:  true,
	},
	FormatMP4: {
		Name:   FormatMP4,
		Ext:    "mp4",
		MIME:   "video/mp4",
		Codecs: []string{"h264_videotoolbox", "h264_nvenc", "libx264"},
	},
	FormatGIF: {
		Name:   FormatGIF,
		Ext:    "gif",
		MIME:   "image/gif",
		Codecs: []string{"gif"},
		Alpha:  true,
	},
	// frames не кодируется: экспорт сразу собирает архив кадров
	FormatFrames: {
		Name:  FormatFrames,
		Ext:   "zip",
		MIME:  "application/zip",
		Alpha: true,
	},
}

// LookupFormat ищет формат по имени без учета регистра; пустое имя - webm.
func LookupFormat(name string) (Format, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		n = FormatWebM
	}
	f, ok := formats[n]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

// FormatNames - поддерживаемые форматы.
func FormatNames() []string {
	return []string{FormatWebM, FormatMP4, FormatGIF, FormatFrames}
}
