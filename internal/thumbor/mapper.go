// Package thumbor translates legacy Thumbor-style URL paths into the
// canonical edit set.
//
// A path is read in four passes merged left to right: the crop token
// (LxT:RxB), the first /WxH/ dimension segment, the fit-in literal, and
// finally every filters:name(args) call, lexically sorted, folded one by
// one. Malformed tokens never fail; they contribute nothing.
package thumbor

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fpang/image-handler/internal/edits"
)

var (
	cropPattern      = regexp.MustCompile(`\d{1,6}x\d{1,6}:\d{1,6}x\d{1,6}`)
	dimensionPattern = regexp.MustCompile(`/((\d+x\d+)|(0x\d+))/`)
	filterPattern    = regexp.MustCompile(`filters:[^)]+`)
)

// MapPathToEdits returns the edit set encoded in path.
func MapPathToEdits(path string) *edits.Set {
	fileFormat := path[strings.LastIndex(path, ".")+1:]
	result := edits.Merge(MapCrop(path), MapResize(path), MapFitIn(path))

	filters := filterPattern.FindAllString(path, -1)
	for i := range filters {
		filters[i] += ")"
	}
	// format must run before quality so that an extensionless file can take
	// its quality target from toFormat.
	sort.Strings(filters)
	for _, f := range filters {
		result = MapFilter(f, fileFormat, result)
	}
	return result
}

// MapCrop extracts crop from the first LxT:RxB token.
func MapCrop(path string) *edits.Set {
	m := cropPattern.FindString(path)
	if m == "" {
		return edits.New()
	}
	corners := strings.Split(m, ":")
	left, top, ok1 := parseDimensions(corners[0])
	right, bottom, ok2 := parseDimensions(corners[1])
	if !ok1 || !ok2 {
		return edits.New()
	}
	return edits.New(&edits.Crop{
		Left:   left,
		Top:    top,
		Width:  right - left,
		Height: bottom - top,
	})
}

// MapResize extracts resize from the first /WxH/ segment. A zero axis is
// left unset and forces fit inside.
func MapResize(path string) *edits.Set {
	m := dimensionPattern.FindString(path)
	if m == "" {
		return edits.New()
	}
	width, height, ok := parseDimensions(strings.Trim(m, "/"))
	if !ok {
		return edits.New()
	}
	r := &edits.Resize{}
	if width == 0 || height == 0 {
		r.Fit = edits.FitInside
	}
	if width != 0 {
		r.Width = edits.Float(float64(width))
	}
	if height != 0 {
		r.Height = edits.Float(float64(height))
	}
	return edits.New(r)
}

// MapFitIn sets fit inside when the path contains fit-in.
func MapFitIn(path string) *edits.Set {
	if !strings.Contains(path, "fit-in") {
		return edits.New()
	}
	return edits.New(&edits.Resize{Fit: edits.FitInside})
}

// MergeEdits folds sets left to right.
func MergeEdits(sets ...*edits.Set) *edits.Set {
	return edits.Merge(sets...)
}

func parseDimensions(s string) (int, int, bool) {
	w, h, found := strings.Cut(s, "x")
	if !found {
		return 0, 0, false
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, false
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, false
	}
	return width, height, true
}
