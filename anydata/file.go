package anydata

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// VolumeExt is the file extension of encoded volumes.
const VolumeExt = ".vol"

// EncodeVolume serializes a sample.
func EncodeVolume(s *Sample) ([]byte, error) {
	if err := s.Check(); err != nil {
		return nil, essentials.AddCtx("encode volume", err)
	}
	labels := make([]float64, len(s.Label))
	for i, l := range s.Label {
		labels[i] = float64(l)
	}
	return serializer.SerializeAny(
		serializer.Int(s.Shape.X),
		serializer.Int(s.Shape.Y),
		serializer.Int(s.Shape.Z),
		serializer.Int(s.Channels),
		&anyvecsave.S{Vector: s.Image},
		&anyvecsave.S{Vector: anyseg.MakeVector(s.Image.Creator(), labels)},
	)
}

// DecodeVolume deserializes a sample, converting its image
// to the creator c.
func DecodeVolume(c anyvec.Creator, data []byte) (*Sample, error) {
	var x, y, z, channels serializer.Int
	var image, labels *anyvecsave.S
	err := serializer.DeserializeAny(data, &x, &y, &z, &channels, &image, &labels)
	if err != nil {
		return nil, essentials.AddCtx("decode volume", err)
	}
	res := &Sample{
		Image:    anyseg.MakeVector(c, anyseg.Floats(image.Vector)),
		Channels: int(channels),
		Shape:    anyseg.Shape{X: int(x), Y: int(y), Z: int(z)},
	}
	if labels.Vector.Len() > 0 {
		for _, l := range anyseg.Floats(labels.Vector) {
			res.Label = append(res.Label, int(l))
		}
	}
	if err := res.Check(); err != nil {
		return nil, essentials.AddCtx("decode volume", err)
	}
	return res, nil
}

// WriteVolume encodes a sample to a file.
func WriteVolume(path string, s *Sample) error {
	data, err := EncodeVolume(s)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0644)
}

// ReadVolume decodes a sample from a file.
func ReadVolume(c anyvec.Creator, path string) (*Sample, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("read volume", err)
	}
	return DecodeVolume(c, data)
}

// ReadList reads a split file with one case name per line.
// Blank lines are ignored.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("read list", err)
	}
	defer f.Close()
	var res []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			res = append(res, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, essentials.AddCtx("read list", err)
	}
	return res, nil
}

// FileDataset reads each case from Dir/<name>.vol.
type FileDataset struct {
	Creator anyvec.Creator
	Dir     string
	Names   []string
}

// NewFileDataset creates a FileDataset for the cases named
// in a list file.
func NewFileDataset(c anyvec.Creator, dir, listPath string) (*FileDataset, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, essentials.AddCtx("open dataset", err)
	}
	names, err := ReadList(listPath)
	if err != nil {
		return nil, essentials.AddCtx("open dataset", err)
	}
	return &FileDataset{Creator: c, Dir: dir, Names: names}, nil
}

// Len returns the number of cases.
func (f *FileDataset) Len() int {
	return len(f.Names)
}

// Sample reads case i.
func (f *FileDataset) Sample(i int) (*Sample, error) {
	if i < 0 || i >= len(f.Names) {
		return nil, fmt.Errorf("case %d out of range", i)
	}
	return ReadVolume(f.Creator, filepath.Join(f.Dir, f.Names[i]+VolumeExt))
}
