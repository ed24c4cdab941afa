package main

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

// testConfig points both categories and the output at fresh temp folders.
func testConfig(t *testing.T) Config {
	t.Helper()
	root := t.TempDir()
	return Config{
		Host:          "127.0.0.1",
		Port:          "0",
		AllowedOrigin: "https://frontend.example",
		OutputFolder:  filepath.Join(root, "out"),
		Percentages:   append([]float64(nil), knownPercentages...),
		Layouts: map[Category]CategoryLayout{
			CategoryPhaseMap: {Folder: filepath.Join(root, "phase"), Template: "phase_map_%s.png"},
			CategoryKAM:      {Folder: filepath.Join(root, "kam"), Template: "KAM_image_%s.png"},
		},
		LogLevel: "disabled",
	}
}

// gradient builds an opaque image whose pixels depend on position and seed.
func gradient(w, h int, seed uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x*16) + seed,
				G: uint8(y*16) + seed,
				B: seed,
				A: 255,
			})
		}
	}
	return img
}

func writeReference(t *testing.T, cfg Config, c Category, p float64, img image.Image) string {
	t.Helper()
	path := cfg.Layouts[c].path(p)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, gg.SavePNG(path, img))
	return path
}

// writeAllReferences fills every table entry of c with a distinct gradient.
func writeAllReferences(t *testing.T, cfg Config, c Category) {
	t.Helper()
	for i, p := range cfg.Percentages {
		writeReference(t, cfg, c, p, gradient(8, 6, uint8(i*15)))
	}
}

func loadNRGBA(t *testing.T, path string) *image.NRGBA {
	t.Helper()
	img, err := gg.LoadPNG(path)
	require.NoError(t, err)
	return toNRGBA(img)
}

func outputEntries(t *testing.T, cfg Config) []string {
	t.Helper()
	entries, err := os.ReadDir(cfg.OutputFolder)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
