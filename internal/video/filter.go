package video

// Filter строит цепочку -vf для формата. Пустая строка - фильтр не нужен.
func Filter(f Format, opts Options) string {
	switch f.Name {
	case FormatGIF:
		if opts.Transparent {
			return "split[s0][s1];[s0]palettegen=reserve_transparent=1[p];[s1][p]paletteuse"
		}
		return "split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse"
	case FormatMP4:
		// yuv420p требует четных размеров кадра
		return "pad=ceil(iw/2)*2:ceil(ih/2)*2"
	}
	return ""
}
