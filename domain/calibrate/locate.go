// Package calibrate finds the monitored screen regions by searching a full
// screenshot for the template images, then derives the slot and menu
// rectangles from where they were found.
package calibrate

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/xViada/arc-autofire/domain/hash"
)

// Hasher fingerprints image windows during the search.
type Hasher interface {
	Fingerprint(img image.Image) (hash.Fingerprint, error)
}

// Options tunes the sliding-window search. Zero strides pick a coarse default
// from the template size; the refinement pass then walks the neighborhood of
// the coarse winner at stride 1.
type Options struct {
	StrideX int
	StrideY int
}

// Result is the best window found for a template.
type Result struct {
	Region     image.Rectangle
	Distance   int
	Confidence float64
}

// Locate scans screen for the window most similar to tmpl and returns its
// rectangle in screen coordinates. It always returns the best window it saw;
// callers judge the confidence. Rows of candidate windows are scanned in
// parallel, then the winner's neighborhood is re-scanned densely.
func Locate(screen, tmpl image.Image, hasher Hasher, opts Options) (Result, error) {
	if screen == nil || tmpl == nil {
		return Result{}, errors.New("calibrate: nil image")
	}
	sb, tb := screen.Bounds(), tmpl.Bounds()
	tw, th := tb.Dx(), tb.Dy()
	if tw <= 0 || th <= 0 || sb.Dx() < tw || sb.Dy() < th {
		return Result{}, fmt.Errorf("calibrate: template %dx%d larger than screen %dx%d", tw, th, sb.Dx(), sb.Dy())
	}
	want, err := hasher.Fingerprint(tmpl)
	if err != nil {
		return Result{}, fmt.Errorf("calibrate: template fingerprint: %w", err)
	}

	strideX, strideY := opts.StrideX, opts.StrideY
	if strideX <= 0 {
		strideX = defaultStride(tw)
	}
	if strideY <= 0 {
		strideY = defaultStride(th)
	}

	coarse := scan(screen, want, hasher, sb.Min.X, sb.Min.Y, sb.Max.X-tw, sb.Max.Y-th, tw, th, strideX, strideY)

	// Dense pass around the coarse winner.
	minX := maxInt(sb.Min.X, coarse.Region.Min.X-strideX)
	minY := maxInt(sb.Min.Y, coarse.Region.Min.Y-strideY)
	maxX := minInt(sb.Max.X-tw, coarse.Region.Min.X+strideX)
	maxY := minInt(sb.Max.Y-th, coarse.Region.Min.Y+strideY)
	fine := scan(screen, want, hasher, minX, minY, maxX, maxY, tw, th, 1, 1)

	best := coarse
	if fine.Distance < best.Distance {
		best = fine
	}
	best.Confidence = hash.Confidence(best.Distance, want.Bits())
	return best, nil
}

// scan evaluates windows on a [minX..maxX] x [minY..maxY] origin grid and
// returns the one with the smallest distance. On ties the first window in
// row-major order wins, so repeated runs agree.
func scan(screen image.Image, want hash.Fingerprint, hasher Hasher, minX, minY, maxX, maxY, tw, th, strideX, strideY int) Result {
	type rowBest struct {
		y   int
		res Result
	}
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, runtime.NumCPU())
	)
	best := Result{Distance: want.Bits() + 1}
	bestY := maxY + 1
	for y := minY; y <= maxY; y += strideY {
		wg.Add(1)
		sem <- struct{}{}
		go func(y int) {
			defer wg.Done()
			defer func() { <-sem }()
			row := rowBest{y: y, res: Result{Distance: want.Bits() + 1}}
			for x := minX; x <= maxX; x += strideX {
				win := imaging.Crop(screen, image.Rect(x, y, x+tw, y+th))
				fp, err := hasher.Fingerprint(win)
				if err != nil {
					continue
				}
				d, err := hash.Distance(fp, want)
				if err != nil {
					continue
				}
				if d < row.res.Distance {
					row.res = Result{Region: image.Rect(x, y, x+tw, y+th), Distance: d}
				}
			}
			mu.Lock()
			if row.res.Distance < best.Distance || (row.res.Distance == best.Distance && row.y < bestY) {
				best = row.res
				bestY = row.y
			}
			mu.Unlock()
		}(y)
	}
	wg.Wait()
	return best
}

func defaultStride(dim int) int {
	s := dim / 2
	if s < 4 {
		s = 4
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
