package ui

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar wraps progressbar/v3 with upip styling
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBarBytes creates a byte counter for downloads. A negative max
// renders a spinner instead of a bar.
func NewProgressBarBytes(w io.Writer, max int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(15),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65_000_000),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			io.WriteString(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// Add64 increments the progress bar by n
func (p *ProgressBar) Add64(n int64) error {
	return p.bar.Add64(n)
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() error {
	return p.bar.Finish()
}

// Current returns the bytes counted so far
func (p *ProgressBar) Current() int64 {
	return p.bar.State().CurrentNum
}

// ProgressReader wraps an io.Reader with a progress bar
type ProgressReader struct {
	reader io.Reader
	bar    *ProgressBar
}

// NewProgressReader creates a reader that reports progress on Stderr
func NewProgressReader(reader io.Reader, max int64, description string) *ProgressReader {
	return NewProgressReaderTo(Stderr, reader, max, description)
}

// NewProgressReaderTo creates a reader that reports progress on w
func NewProgressReaderTo(w io.Writer, reader io.Reader, max int64, description string) *ProgressReader {
	return &ProgressReader{
		reader: reader,
		bar:    NewProgressBarBytes(w, max, description),
	}
}

// Read implements io.Reader with progress tracking
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.bar.Add64(int64(n))
	}
	return n, err
}

// Close finishes the progress bar
func (pr *ProgressReader) Close() error {
	return pr.bar.Finish()
}
