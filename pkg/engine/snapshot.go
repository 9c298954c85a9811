package engine

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// defaultPixelThreshold matches Playwright's default color threshold.
const defaultPixelThreshold = 0.2

// evalSnapshot compares a screenshot of the target, or of the page when
// there is no target, against a PNG baseline. A missing baseline is written
// and the assertion passes. On mismatch the screenshot is kept next to the
// baseline with an "-actual" suffix.
func (c *Core) evalSnapshot(page browser.Page, req AssertionRequest) outcome {
	opts := req.Options.Snapshot
	name := opts.Name
	if name == "" {
		name, _ = req.Expected.(string)
	}
	if name == "" {
		return outcome{err: errors.New("toMatchSnapshot needs a snapshot name")}
	}
	dir := opts.Dir
	if dir == "" {
		dir = c.snapshotDir
	}
	baseline := filepath.Join(dir, name+".png")
	out := outcome{expected: baseline}

	var (
		shot []byte
		err  error
	)
	switch {
	case req.Target != nil:
		shot, err = req.Target.Screenshot("")
	case page != nil:
		shot, err = page.Screenshot("", opts.FullPage)
	default:
		err = errors.New("no page to screenshot")
	}
	if err != nil {
		out.err = fmt.Errorf("screenshot: %w", err)
		return out
	}

	want, err := os.ReadFile(baseline)
	if opts.Update || errors.Is(err, os.ErrNotExist) {
		if werr := writeFile(baseline, shot); werr != nil {
			out.err = werr
			return out
		}
		out.passed = req.Mode != ModeHardNegated
		out.actual = "baseline written"
		return out
	}
	if err != nil {
		out.err = err
		return out
	}

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = defaultPixelThreshold
	}
	ratio, detail, err := pixelDiff(want, shot, threshold)
	if err != nil {
		out.err = err
		return out
	}
	match := ratio <= opts.MaxDiffRatio
	out.passed = match != (req.Mode == ModeHardNegated)
	out.actual = detail
	if !match {
		actualPath := filepath.Join(dir, name+"-actual.png")
		if werr := writeFile(actualPath, shot); werr == nil {
			out.actual += ", saved to " + actualPath
		}
	}
	return out
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// pixelDiff returns the share of pixels whose largest channel difference
// exceeds threshold, plus a description for the failure message.
func pixelDiff(want, got []byte, threshold float64) (float64, string, error) {
	a, err := png.Decode(bytes.NewReader(want))
	if err != nil {
		return 0, "", fmt.Errorf("decode baseline: %w", err)
	}
	b, err := png.Decode(bytes.NewReader(got))
	if err != nil {
		return 0, "", fmt.Errorf("decode screenshot: %w", err)
	}
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 1, fmt.Sprintf("size %dx%d, baseline is %dx%d", bb.Dx(), bb.Dy(), ab.Dx(), ab.Dy()), nil
	}
	total := ab.Dx() * ab.Dy()
	if total == 0 {
		return 0, "0 of 0 pixels differ", nil
	}
	limit := uint32(threshold * 0xffff)
	differ := 0
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			if channelDelta(a, b, ab.Min.X+x, ab.Min.Y+y, bb.Min.X+x, bb.Min.Y+y) > limit {
				differ++
			}
		}
	}
	return float64(differ) / float64(total), fmt.Sprintf("%d of %d pixels differ", differ, total), nil
}

func channelDelta(a, b image.Image, ax, ay, bx, by int) uint32 {
	r1, g1, b1, a1 := a.At(ax, ay).RGBA()
	r2, g2, b2, a2 := b.At(bx, by).RGBA()
	m := uint32(0)
	for _, d := range []uint32{absDiff(r1, r2), absDiff(g1, g2), absDiff(b1, b2), absDiff(a1, a2)} {
		if d > m {
			m = d
		}
	}
	return m
}

func absDiff(x, y uint32) uint32 {
	if x > y {
		return x - y
	}
	return y - x
}
