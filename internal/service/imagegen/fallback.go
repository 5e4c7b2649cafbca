package imagegen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/google/uuid"
)

const maxDownloadBytes = 32 << 20

// upscaleFallback resizes the image locally when no Replicate token is
// configured. Nearest-neighbor, so quality is well below Real-ESRGAN; the
// response carries a fallback flag so callers can tell.
func (s *Service) upscaleFallback(ctx context.Context, req UpscaleRequest) (string, error) {
	if s.assets == nil {
		return "", fmt.Errorf("no asset store for upscale fallback")
	}

	data, err := downloadImage(ctx, req.ImageURL)
	if err != nil {
		return "", err
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode source image: %w", err)
	}

	resized := resizeNearest(src, req.ScaleFactor)

	var out bytes.Buffer
	if err := png.Encode(&out, resized); err != nil {
		return "", fmt.Errorf("encode upscaled image: %w", err)
	}
	return s.assets.Save("upscale-"+uuid.NewString()+".png", out.Bytes())
}

func resizeNearest(src image.Image, scale int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx()*scale, b.Dy()*scale
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y/scale
		for x := 0; x < w; x++ {
			dst.Set(x, y, src.At(b.Min.X+x/scale, sy))
		}
	}
	return dst
}

func downloadImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}
