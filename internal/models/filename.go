package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// requestedFilenamePattern is number "x" number ("-" or "_") filename,
// e.g. 30x30-Rizzo.png or 200x200_Mypet.jpg
var requestedFilenamePattern = regexp.MustCompile(`^(\d+)x(\d+)[-_](.+)$`)

type Resolution struct {
	Width  uint `json:"width"`
	Height uint `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseRequestedFilename splits a requested filename into the target
// resolution and the original basename. Basenames that themselves start with
// an NxM- prefix are not disambiguated; the first match wins.
func ParseRequestedFilename(requested string) (Resolution, string, error) {
	m := requestedFilenamePattern.FindStringSubmatch(requested)
	if m == nil {
		return Resolution{}, "", fmt.Errorf("%w: %q", ErrMalformedFilename, requested)
	}

	width, err := parseDimension(m[1])
	if err != nil {
		return Resolution{}, "", fmt.Errorf("%w: width: %v", ErrMalformedFilename, err)
	}
	height, err := parseDimension(m[2])
	if err != nil {
		return Resolution{}, "", fmt.Errorf("%w: height: %v", ErrMalformedFilename, err)
	}

	return Resolution{Width: width, Height: height}, m[3], nil
}

// FormatRequestedFilename builds the "{W}x{H}_{basename}" key that
// ParseRequestedFilename reads back.
func FormatRequestedFilename(res Resolution, basename string) string {
	return fmt.Sprintf("%dx%d_%s", res.Width, res.Height, basename)
}

// ParseResolution reads a bare "WxH" pair such as "50x50".
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("invalid resolution %q, expected WIDTHxHEIGHT", s)
	}

	width, err := parseDimension(w)
	if err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution %q: %w", s, err)
	}
	height, err := parseDimension(h)
	if err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution %q: %w", s, err)
	}

	return Resolution{Width: width, Height: height}, nil
}

func parseDimension(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, strconv.IntSize)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("dimension must be positive")
	}
	return uint(v), nil
}
