package vision

import (
	"context"
	"image"
	"sync"

	"github.com/Limmita2/FaseWatch/internal/models"
)

// Lazy builds an analyzer on first use and shares it afterwards. A failed
// build is remembered; every caller sees the same error.
type Lazy struct {
	build func() (Analyzer, error)

	once     sync.Once
	analyzer Analyzer
	err      error
}

func NewLazy(build func() (Analyzer, error)) *Lazy {
	return &Lazy{build: build}
}

func (l *Lazy) Get() (Analyzer, error) {
	l.once.Do(func() {
		l.analyzer, l.err = l.build()
	})
	return l.analyzer, l.err
}

func (l *Lazy) Analyze(ctx context.Context, img image.Image) ([]models.Observation, error) {
	a, err := l.Get()
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, img)
}

// Close releases the analyzer if it was ever built.
func (l *Lazy) Close() {
	l.once.Do(func() {})
	if l.analyzer != nil {
		l.analyzer.Close()
	}
}
