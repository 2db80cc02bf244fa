// Package anyrec records training scalars and images.
package anyrec

import (
	"image"
	"sync"
)

// A Recorder stores scalar values keyed by tag and step.
type Recorder interface {
	Scalar(tag string, value float64, step int)
}

// An ImageRecorder is a Recorder that can also store
// images.
type ImageRecorder interface {
	Recorder
	Image(tag string, img image.Image, step int)
}

// Nop discards everything.
type Nop struct{}

// Scalar does nothing.
func (Nop) Scalar(tag string, value float64, step int) {
}

// Multi forwards to several recorders.
// Images go to the recorders that accept them.
type Multi []Recorder

// Scalar records the value in every recorder.
func (m Multi) Scalar(tag string, value float64, step int) {
	for _, r := range m {
		r.Scalar(tag, value, step)
	}
}

// Image records the image in every ImageRecorder.
func (m Multi) Image(tag string, img image.Image, step int) {
	for _, r := range m {
		if ir, ok := r.(ImageRecorder); ok {
			ir.Image(tag, img, step)
		}
	}
}

// A Point is one recorded scalar.
type Point struct {
	Step  int
	Value float64
}

// Mem keeps everything in memory.
// It is safe for concurrent use.
type Mem struct {
	lock    sync.Mutex
	scalars map[string][]Point
	images  map[string][]image.Image
}

// Scalar appends a point.
func (m *Mem) Scalar(tag string, value float64, step int) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.scalars == nil {
		m.scalars = map[string][]Point{}
	}
	m.scalars[tag] = append(m.scalars[tag], Point{Step: step, Value: value})
}

// Image appends an image.
func (m *Mem) Image(tag string, img image.Image, step int) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.images == nil {
		m.images = map[string][]image.Image{}
	}
	m.images[tag] = append(m.images[tag], img)
}

// Points returns the points recorded for a tag.
func (m *Mem) Points(tag string) []Point {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]Point{}, m.scalars[tag]...)
}

// Values returns the values recorded for a tag.
func (m *Mem) Values(tag string) []float64 {
	var res []float64
	for _, p := range m.Points(tag) {
		res = append(res, p.Value)
	}
	return res
}

// Images returns the images recorded for a tag.
func (m *Mem) Images(tag string) []image.Image {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]image.Image{}, m.images[tag]...)
}
