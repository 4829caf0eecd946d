// Package debugdump is a developer convenience, entirely outside the
// optimizer's scope: it periodically writes a JSONL progress trace and PNG
// canvas previews to disk so a human can watch a long-running optimization
// from outside the shared-memory transport. Nothing in internal/stringart
// imports this package or knows it exists; it is wired in only by the CLI.
package debugdump

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CR1337/string-art/internal/colorart"
)

// TraceEntry is one JSONL line of iteration progress.
type TraceEntry struct {
	Iteration       uint64    `json:"iteration"`
	AbsoluteError   uint64    `json:"absolute_error"`
	NormalizedError float64   `json:"normalized_error"`
	Timestamp       time.Time `json:"timestamp"`
}

// Dumper writes a progress trace and periodic canvas snapshots under a
// directory. It is safe for the synchronous, single-goroutine use the
// optimizer's OnIteration hook gives it; the mutex exists only to protect
// the shared bufio.Writer against Close racing a late Dump.
type Dumper struct {
	mu         sync.Mutex
	dir        string
	imageWidth uint64
	file       *os.File
	writer     *bufio.Writer

	// snapshotEvery controls how often a PNG preview is rendered; writing
	// one per iteration would dominate runtime on any image of
	// non-trivial size.
	snapshotEvery uint64
}

// New creates the dump directory and its trace file.
func New(dir string, imageWidth uint64) (*Dumper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("debugdump: create directory: %w", err)
	}

	path := filepath.Join(dir, "trace.jsonl")
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("debugdump: create trace file: %w", err)
	}

	return &Dumper{
		dir:           dir,
		imageWidth:    imageWidth,
		file:          file,
		writer:        bufio.NewWriterSize(file, 64*1024),
		snapshotEvery: 25,
	}, nil
}

// Dump appends one trace entry and, every snapshotEvery iterations, renders
// a PNG preview of canvas.
func (d *Dumper) Dump(iteration, absoluteError uint64, normalizedError float64, canvas []colorart.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := TraceEntry{
		Iteration:       iteration,
		AbsoluteError:   absoluteError,
		NormalizedError: normalizedError,
		Timestamp:       time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("debugdump: marshal trace entry: %w", err)
	}
	if _, err := d.writer.Write(data); err != nil {
		return fmt.Errorf("debugdump: write trace entry: %w", err)
	}
	if err := d.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("debugdump: write trace newline: %w", err)
	}

	if d.snapshotEvery != 0 && iteration%d.snapshotEvery == 0 {
		if err := d.writeSnapshot(iteration, canvas); err != nil {
			return err
		}
	}

	return nil
}

func (d *Dumper) writeSnapshot(iteration uint64, canvas []colorart.Color) error {
	width := int(d.imageWidth)
	img := image.NewRGBA(image.Rect(0, 0, width, width))
	for i, c := range canvas {
		x := i % width
		y := i / width
		img.Set(x, y, cmyToRGBA(c))
	}

	path := filepath.Join(d.dir, fmt.Sprintf("iter_%08d.png", iteration))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("debugdump: create snapshot file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("debugdump: encode snapshot: %w", err)
	}
	return nil
}

// cmyToRGBA renders a subtractive CMY ink value as an additive RGB preview
// pixel: higher ink means darker, so each channel is inverted.
func cmyToRGBA(c colorart.Color) color.RGBA {
	return color.RGBA{
		R: 255 - c.C,
		G: 255 - c.M,
		B: 255 - c.Y,
		A: 255,
	}
}

// Close flushes and closes the trace file.
func (d *Dumper) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writer.Flush(); err != nil {
		d.file.Close()
		return fmt.Errorf("debugdump: flush trace: %w", err)
	}
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("debugdump: close trace file: %w", err)
	}
	return nil
}
