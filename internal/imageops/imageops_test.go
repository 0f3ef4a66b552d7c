package imageops

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
)

func TestLoad(t *testing.T) {
	img, err := Load(pngBytes(t, solid(30, 20, white)), Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	md := img.Metadata()
	if md.Width != 30 || md.Height != 20 || md.Format != "png" || md.Frames != 1 {
		t.Errorf("Metadata() = %+v", md)
	}
	if img.Animated() {
		t.Error("single frame image reported as animated")
	}
}

func TestLoad_Unsupported(t *testing.T) {
	_, err := Load([]byte("not an image"), Options{})
	if !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("Load() error = %v, want ErrUnsupportedSource", err)
	}
}

func TestLoad_AnimatedGIF(t *testing.T) {
	pal := color.Palette{color.Black, color.White}
	g := &gif.GIF{}
	for i := 0; i < 3; i++ {
		g.Image = append(g.Image, image.NewPaletted(image.Rect(0, 0, 8, 6), pal))
		g.Delay = append(g.Delay, 10)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("gif.EncodeAll: %v", err)
	}

	still, err := Load(buf.Bytes(), Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if still.Animated() {
		t.Error("expected only the first frame without Animated")
	}

	anim, err := Load(buf.Bytes(), Options{Animated: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := anim.Metadata().Frames; got != 3 {
		t.Fatalf("Frames = %d, want 3", got)
	}
	if err := anim.Resize(ResizeOptions{Width: 4, Fit: FitInside}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	out, err := anim.Buffer()
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	decoded, err := gif.DecodeAll(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("gif.DecodeAll: %v", err)
	}
	if len(decoded.Image) != 3 {
		t.Errorf("encoded %d frames, want 3", len(decoded.Image))
	}
	if b := decoded.Image[0].Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("frame size = %v, want 4x3", b)
	}
}

func TestResize(t *testing.T) {
	tests := []struct {
		name         string
		opts         ResizeOptions
		wantW, wantH int
	}{
		{"no dimensions", ResizeOptions{Fit: FitInside}, 100, 50},
		{"width only", ResizeOptions{Width: 50}, 50, 25},
		{"height only", ResizeOptions{Height: 10, Fit: FitCover}, 20, 10},
		{"inside", ResizeOptions{Width: 40, Height: 40, Fit: FitInside}, 40, 20},
		{"outside", ResizeOptions{Width: 40, Height: 40, Fit: FitOutside}, 80, 40},
		{"cover", ResizeOptions{Width: 40, Height: 40, Fit: FitCover}, 40, 40},
		{"contain", ResizeOptions{Width: 40, Height: 40, Fit: FitContain}, 40, 40},
		{"fill", ResizeOptions{Width: 30, Height: 70, Fit: FitFill}, 30, 70},
		{"default fit is cover", ResizeOptions{Width: 20, Height: 20}, 20, 20},
		{"inside enlarges", ResizeOptions{Width: 200, Height: 200, Fit: FitInside}, 200, 100},
		{"without enlargement", ResizeOptions{Width: 200, Height: 200, Fit: FitInside, WithoutEnlargement: true}, 100, 50},
		{"without reduction", ResizeOptions{Width: 10, Height: 10, Fit: FitInside, WithoutReduction: true}, 100, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := FromImage(solid(100, 50, white), "png")
			if err := img.Resize(tt.opts); err != nil {
				t.Fatalf("Resize: %v", err)
			}
			if img.Width() != tt.wantW || img.Height() != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", img.Width(), img.Height(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestResize_ContainPadsWithBackground(t *testing.T) {
	img := FromImage(solid(100, 50, white), "png")
	if err := img.Resize(ResizeOptions{Width: 40, Height: 40, Fit: FitContain, Background: red}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if got := img.Frame().NRGBAAt(20, 1); got != red {
		t.Errorf("padding pixel = %v, want %v", got, red)
	}
	if got := img.Frame().NRGBAAt(20, 20); got != white {
		t.Errorf("content pixel = %v, want %v", got, white)
	}
}

func TestExtract(t *testing.T) {
	img := FromImage(solid(50, 40, white), "png")
	if err := img.Extract(10, 5, 20, 30); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if img.Width() != 20 || img.Height() != 30 {
		t.Errorf("size = %dx%d, want 20x30", img.Width(), img.Height())
	}

	for _, r := range [][4]int{{0, 0, 21, 10}, {-1, 0, 5, 5}, {0, 0, 0, 5}, {15, 25, 10, 10}} {
		err := FromImage(solid(20, 30, white), "png").Extract(r[0], r[1], r[2], r[3])
		if !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Extract(%v) error = %v, want ErrOutOfBounds", r, err)
		}
	}
}

func TestRotate(t *testing.T) {
	img := FromImage(solid(30, 10, white), "png")
	img.Rotate(90)
	if img.Width() != 10 || img.Height() != 30 {
		t.Errorf("after 90: %dx%d, want 10x30", img.Width(), img.Height())
	}
	img.Rotate(-90)
	if img.Width() != 30 || img.Height() != 10 {
		t.Errorf("after -90: %dx%d, want 30x10", img.Width(), img.Height())
	}
	img.Rotate(45)
	if img.Height() <= 10 {
		t.Errorf("after 45: height %d did not grow", img.Height())
	}
}

func TestFlipFlop(t *testing.T) {
	src := solid(2, 2, white)
	src.SetNRGBA(0, 0, red)

	img := FromImage(src, "png")
	img.Flop()
	if got := img.Frame().NRGBAAt(1, 0); got != red {
		t.Errorf("flop moved red to %v", got)
	}
	img.Flip()
	if got := img.Frame().NRGBAAt(1, 1); got != red {
		t.Errorf("flip moved red to %v", got)
	}
}

func TestFlatten(t *testing.T) {
	img := FromImage(solid(4, 4, color.NRGBA{}), "png")
	img.Flatten(red)
	if got := img.Frame().NRGBAAt(1, 1); got != red {
		t.Errorf("flattened pixel = %v, want %v", got, red)
	}
}

func TestNegate(t *testing.T) {
	img := FromImage(solid(2, 2, red), "png")
	img.Negate()
	want := color.NRGBA{G: 255, B: 255, A: 255}
	if got := img.Frame().NRGBAAt(0, 0); got != want {
		t.Errorf("negated pixel = %v, want %v", got, want)
	}
}

func TestNormalize(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := uint8(100 + (x+y*16)*50/255)
			src.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	img := FromImage(src, "png")
	img.Normalize()
	lo, hi := img.Frame().NRGBAAt(0, 0).R, img.Frame().NRGBAAt(15, 15).R
	if lo > 10 || hi < 245 {
		t.Errorf("normalized range = [%d, %d], want close to [0, 255]", lo, hi)
	}
}

func TestTint(t *testing.T) {
	img := FromImage(solid(2, 2, color.NRGBA{R: 128, G: 128, B: 128, A: 255}), "png")
	img.Tint(red)
	got := img.Frame().NRGBAAt(0, 0)
	if got.R <= got.B || got.R <= got.G {
		t.Errorf("tinted pixel = %v, want a red cast", got)
	}
}

func TestBlurSharpen_SigmaRange(t *testing.T) {
	img := FromImage(solid(8, 8, white), "png")
	if err := img.Blur(nil); err != nil {
		t.Errorf("Blur(nil): %v", err)
	}
	s := 0.1
	if err := img.Blur(&s); err == nil {
		t.Error("Blur(0.1) succeeded, want range error")
	}
	s = 2
	if err := img.Blur(&s); err != nil {
		t.Errorf("Blur(2): %v", err)
	}
	if err := img.Sharpen(nil); err != nil {
		t.Errorf("Sharpen(nil): %v", err)
	}
}

func TestConvolve(t *testing.T) {
	src := solid(6, 6, white)
	src.SetNRGBA(3, 3, red)
	img := FromImage(src, "png")
	identity := ConvolveOptions{Width: 3, Height: 3, Kernel: []float64{0, 0, 0, 0, 1, 0, 0, 0, 0}}
	if err := img.Convolve(identity); err != nil {
		t.Fatalf("Convolve: %v", err)
	}
	if got := img.Frame().NRGBAAt(3, 3); got != red {
		t.Errorf("identity kernel changed pixel to %v", got)
	}

	bad := ConvolveOptions{Width: 3, Height: 3, Kernel: []float64{1, 2}}
	if err := img.Convolve(bad); err == nil {
		t.Error("Convolve with short kernel succeeded")
	}
}

func TestComposite_Over(t *testing.T) {
	img := FromImage(solid(20, 20, white), "png")
	left, top := 5, 5
	img.Composite(Layer{Source: solid(10, 10, red), Left: &left, Top: &top})
	f := img.Frame()
	if got := f.NRGBAAt(6, 6); got != red {
		t.Errorf("overlay pixel = %v, want red", got)
	}
	if got := f.NRGBAAt(1, 1); got != white {
		t.Errorf("background pixel = %v, want white", got)
	}
}

func TestComposite_AppliedAfterResize(t *testing.T) {
	img := FromImage(solid(100, 100, white), "png")
	left, top := 40, 40
	img.Composite(Layer{Source: solid(10, 10, red), Left: &left, Top: &top})
	if err := img.Resize(ResizeOptions{Width: 50, Height: 50, Fit: FitFill}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	f := img.Frame()
	if f.Bounds().Dx() != 50 {
		t.Fatalf("width = %d, want 50", f.Bounds().Dx())
	}
	if got := f.NRGBAAt(45, 45); got != red {
		t.Errorf("overlay pixel = %v, want red at the resized position", got)
	}
}

func TestComposite_CentredByDefault(t *testing.T) {
	img := FromImage(solid(21, 21, white), "png")
	img.Composite(Layer{Source: solid(1, 1, red)})
	if got := img.Frame().NRGBAAt(10, 10); got != red {
		t.Errorf("centre pixel = %v, want red", got)
	}
}

func TestEllipseMask(t *testing.T) {
	mask := EllipseMask(100, 60, 50, 30, 30, 20)
	if a := mask.NRGBAAt(50, 30).A; a != 255 {
		t.Errorf("centre alpha = %d, want 255", a)
	}
	if a := mask.NRGBAAt(2, 2).A; a != 0 {
		t.Errorf("corner alpha = %d, want 0", a)
	}
	if a := mask.NRGBAAt(50, 5).A; a != 0 {
		t.Errorf("above ellipse alpha = %d, want 0", a)
	}
}

func TestRoundMaskAndTrim(t *testing.T) {
	img := FromImage(solid(100, 60, red), "png")
	img.Composite(Layer{Source: EllipseMask(100, 60, 50, 30, 30, 20), Blend: BlendDestIn})
	next := img.Rebuild()
	next.Trim()
	if w, h := next.Width(), next.Height(); w < 58 || w > 62 || h < 38 || h > 42 {
		t.Errorf("trimmed size = %dx%d, want about 60x40", w, h)
	}
}

func TestMultiplyAlpha(t *testing.T) {
	img := FromImage(solid(2, 2, red), "png")
	img.MultiplyAlpha(0.5)
	if a := img.Frame().NRGBAAt(0, 0).A; a != 128 {
		t.Errorf("alpha = %d, want 128", a)
	}
}

func TestBuffer_Formats(t *testing.T) {
	for _, format := range []string{"jpeg", "jpg", "png", "webp", "tiff", "gif", "bmp"} {
		t.Run(format, func(t *testing.T) {
			img := FromImage(solid(12, 8, red), "png")
			img.ToFormat(format)
			out, err := img.Buffer()
			if err != nil {
				t.Fatalf("Buffer: %v", err)
			}
			back, err := Load(out, Options{})
			if err != nil {
				t.Fatalf("Load(%s output): %v", format, err)
			}
			if back.Width() != 12 || back.Height() != 8 {
				t.Errorf("decoded size = %dx%d", back.Width(), back.Height())
			}
		})
	}
}

func TestBuffer_Raw(t *testing.T) {
	img := FromImage(solid(3, 2, red), "png")
	img.ToFormat("raw")
	out, err := img.Buffer()
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	if len(out) != 3*2*4 {
		t.Errorf("raw length = %d, want 24", len(out))
	}
}

func TestBuffer_Unsupported(t *testing.T) {
	img := FromImage(solid(3, 2, red), "png")
	img.ToFormat("heif")
	if _, err := img.Buffer(); !errors.Is(err, ErrUnsupportedOutput) {
		t.Errorf("Buffer() error = %v, want ErrUnsupportedOutput", err)
	}
}

func TestSetQuality_SwitchesFormat(t *testing.T) {
	img := FromImage(solid(3, 2, red), "png")
	q := 50.0
	img.SetQuality("jpeg", Quality{Quality: &q})
	if got := img.Metadata().Format; got != "jpeg" {
		t.Errorf("format = %q, want jpeg", got)
	}
	img.WebP(5)
	if got := img.Metadata().Format; got != "webp" {
		t.Errorf("format = %q, want webp", got)
	}
	if e := img.Effort(); e == nil || *e != 5 {
		t.Errorf("Effort() = %v, want 5", e)
	}
}

func TestClassificationBuffer(t *testing.T) {
	img := FromImage(solid(4, 4, red), "webp")
	out, err := img.ClassificationBuffer()
	if err != nil {
		t.Fatalf("ClassificationBuffer: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("\x89PNG")) {
		t.Errorf("classification buffer is not PNG: % x", out[:8])
	}
	if got := img.Metadata().Format; got != "webp" {
		t.Errorf("output format changed to %q", got)
	}
}

func TestClone_Independent(t *testing.T) {
	img := FromImage(solid(10, 10, white), "png")
	c := img.Clone()
	if err := c.Resize(ResizeOptions{Width: 5, Height: 5, Fit: FitFill}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if img.Width() != 10 {
		t.Errorf("original width = %d after resizing clone", img.Width())
	}
}
