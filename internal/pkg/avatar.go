package pkg

import (
	"bytes"
	"crypto/sha256"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	identiconGrid = 5
	identiconCell = 40
	identiconPad  = 25
)

// Identicon 由 seed 确定的 5x5 左右对称头像
func Identicon(seed string) *image.NRGBA {
	sum := sha256.Sum256([]byte(seed))
	fg := color.NRGBA{R: sum[0], G: sum[1], B: sum[2], A: 255}
	bg := color.NRGBA{R: 240, G: 240, B: 240, A: 255}

	side := identiconGrid*identiconCell + 2*identiconPad
	img := imaging.New(side, side, bg)
	block := imaging.New(identiconCell, identiconCell, fg)

	half := (identiconGrid + 1) / 2
	for row := 0; row < identiconGrid; row++ {
		for col := 0; col < half; col++ {
			if sum[3+row*half+col]&1 == 0 {
				continue
			}
			y := identiconPad + row*identiconCell
			img = imaging.Paste(img, block, image.Pt(identiconPad+col*identiconCell, y))
			mirror := identiconGrid - 1 - col
			img = imaging.Paste(img, block, image.Pt(identiconPad+mirror*identiconCell, y))
		}
	}
	return img
}

// IdenticonPNGs 按尺寸依次输出 PNG
func IdenticonPNGs(seed string, sizes []int) ([][]byte, error) {
	base := Identicon(seed)
	out := make([][]byte, 0, len(sizes))
	for _, size := range sizes {
		var buf bytes.Buffer
		resized := imaging.Resize(base, size, size, imaging.NearestNeighbor)
		if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
			return nil, err
		}
		out = append(out, buf.Bytes())
	}
	return out, nil
}
