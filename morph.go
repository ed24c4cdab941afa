package main

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownCategory   = errors.New("unknown image category")
	ErrOutOfRange        = errors.New("percentage outside the reference table")
	ErrAssetMissing      = errors.New("reference image missing")
	ErrDimensionMismatch = errors.New("reference images differ in size")
)

type Category string

const (
	CategoryPhaseMap Category = "phase_map"
	CategoryKAM      Category = "kam"
)

// CategoryLayout locates the reference images of one category. Template
// takes the formatted percentage as its only verb.
type CategoryLayout struct {
	Folder   string
	Template string
}

func (l CategoryLayout) path(p float64) string {
	return filepath.Join(l.Folder, fmt.Sprintf(l.Template, formatPercentage(p)))
}

// Bracket is the pair of table percentages surrounding a requested value.
type Bracket struct {
	Lower     float64
	Upper     float64
	LowerPath string
	UpperPath string
}

// Alpha is the weight of the upper image. Zero-width brackets yield 0.
func (b Bracket) Alpha(p float64) float64 {
	if b.Upper == b.Lower {
		return 0
	}
	return (p - b.Lower) / (b.Upper - b.Lower)
}

type Morpher struct {
	cfg   Config
	cache *referenceCache
}

func NewMorpher(cfg Config, cache *referenceCache) *Morpher {
	return &Morpher{cfg: cfg, cache: cache}
}

func (m *Morpher) knows(c Category) bool {
	_, ok := m.cfg.Layouts[c]
	return ok
}

// Resolve picks the greatest table entry <= p and the least entry >= p.
func (m *Morpher) Resolve(p float64, c Category) (Bracket, error) {
	layout, ok := m.cfg.Layouts[c]
	if !ok {
		return Bracket{}, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}

	table := m.cfg.Percentages
	if math.IsNaN(p) || p < table[0] || p > table[len(table)-1] {
		return Bracket{}, fmt.Errorf("%w: %v", ErrOutOfRange, p)
	}

	var b Bracket
	for i, v := range table {
		if v == p {
			b.Lower, b.Upper = v, v
			break
		}
		if v > p {
			b.Lower, b.Upper = table[i-1], v
			break
		}
	}

	b.LowerPath = layout.path(b.Lower)
	b.UpperPath = layout.path(b.Upper)
	return b, nil
}

// Blend loads both bracket images, mixes them and writes the result into
// the output folder. Nothing is written when a reference image is missing.
func (m *Morpher) Blend(b Bracket, p float64, c Category) (string, error) {
	paths := []string{b.LowerPath, b.UpperPath}
	infos := make([]os.FileInfo, len(paths))
	for i, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", ErrAssetMissing, path)
			}
			return "", err
		}
		infos[i] = info
	}

	lower, err := m.cache.load(b.LowerPath, infos[0])
	if err != nil {
		return "", fmt.Errorf("loading %s: %w", b.LowerPath, err)
	}
	upper, err := m.cache.load(b.UpperPath, infos[1])
	if err != nil {
		return "", fmt.Errorf("loading %s: %w", b.UpperPath, err)
	}

	alpha := b.Alpha(p)
	morphed, err := blendImages(lower, upper, alpha)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("type", string(c)).
		Float64("lower", b.Lower).
		Float64("upper", b.Upper).
		Float64("alpha", alpha).
		Msg("blended reference images")

	return m.save(morphed, p, c)
}

// Generate resolves the bracket for p and blends it.
func (m *Morpher) Generate(p float64, c Category) (string, error) {
	b, err := m.Resolve(p, c)
	if err != nil {
		return "", err
	}
	return m.Blend(b, p, c)
}

func (m *Morpher) outputPath(p float64, c Category) string {
	name := fmt.Sprintf("generated_%s_%s.png", c, formatPercentage(p))
	return filepath.Join(m.cfg.OutputFolder, name)
}

// save writes to a unique temporary file and renames it into place, so a
// concurrent reader sees either the previous file or the complete new one.
func (m *Morpher) save(img image.Image, p float64, c Category) (string, error) {
	if err := os.MkdirAll(m.cfg.OutputFolder, 0755); err != nil {
		return "", err
	}

	final := m.outputPath(p, c)
	tmp := fmt.Sprintf("%s.%s.tmp.png", final, uuid.New().String())

	if err := gg.SavePNG(tmp, img); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return final, nil
}

// blendImages computes lower*(1-alpha) + upper*alpha per channel.
func blendImages(lower, upper *image.NRGBA, alpha float64) (*image.NRGBA, error) {
	ls, us := lower.Bounds().Size(), upper.Bounds().Size()
	if ls != us {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, ls.X, ls.Y, us.X, us.Y)
	}

	out := image.NewNRGBA(image.Rect(0, 0, ls.X, ls.Y))
	for y := 0; y < ls.Y; y++ {
		lo := row(lower, y)
		up := row(upper, y)
		dst := row(out, y)
		for i := range dst {
			dst[i] = interpolate(lo[i], up[i], alpha)
		}
	}
	return out, nil
}

func row(img *image.NRGBA, y int) []uint8 {
	start := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
	return img.Pix[start : start+img.Rect.Dx()*4]
}
