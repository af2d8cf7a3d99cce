// Package codec implements the pluggable sample-compression boundary:
// a Codec turns a sample's raw little-endian bytes into a compressed
// representation and back, and a Registry dispatches on the
// `sample_compression` string carried in tensor meta.
//
// Concrete image codecs (jpeg, png) are the "opaque encode_image/
// decode_image" boundary spec.md places out of scope for the core; the
// byte-stream codecs (gzip, snappy, lz4) are real third-party
// dependencies wired in to exercise the pluggable registry with more
// than one backing implementation, the way the teacher's chunkenc.Encoding
// dispatches across gzip/snappy/lz4 pools.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io/ioutil"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"github.com/tensorstore/tensorstore/internal/tserr"
)

// Uncompressed is the sample_compression value meaning "store raw bytes
// verbatim".
const Uncompressed = "uncompressed"

// Codec encodes/decodes a single sample's raw bytes for a given shape and
// dtype. shape/dtype are required by image codecs (to reconstruct pixel
// layout) and ignored by generic byte-stream codecs.
type Codec interface {
	Name() string
	Encode(raw []byte, shape []uint64, dtype string) ([]byte, error)
	Decode(buf []byte, shape []uint64, dtype string) ([]byte, error)
}

// Registry maps sample_compression names to Codec implementations.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry returns a registry pre-populated with the default codec set:
// uncompressed, jpeg, png, gzip, snappy, lz4.
func NewRegistry() *Registry {
	r := &Registry{codecs: map[string]Codec{}}
	for _, c := range []Codec{
		passthroughCodec{},
		jpegCodec{},
		pngCodec{},
		gzipCodec{},
		snappyCodec{},
		lz4Codec{},
	} {
		r.codecs[c.Name()] = c
	}
	return r
}

// Register adds or replaces a codec under its own Name().
func (r *Registry) Register(c Codec) {
	r.codecs[c.Name()] = c
}

// Get returns the codec for name, or UnsupportedCompressionError.
func (r *Registry) Get(name string) (Codec, error) {
	c, ok := r.codecs[name]
	if !ok {
		return nil, &tserr.UnsupportedCompressionError{Name: name}
	}
	return c, nil
}

type passthroughCodec struct{}

func (passthroughCodec) Name() string { return Uncompressed }
func (passthroughCodec) Encode(raw []byte, _ []uint64, _ string) ([]byte, error) {
	return raw, nil
}
func (passthroughCodec) Decode(buf []byte, _ []uint64, _ string) ([]byte, error) {
	return buf, nil
}

// --- image codecs -----------------------------------------------------

// rawImage adapts a raw uint8 buffer with shape (h, w, c) into image.Image
// without copying, so encoders can consume it directly.
type rawImage struct {
	pix           []byte
	w, h, c       int
}

func (r *rawImage) ColorModel() color.Model {
	if r.c == 1 {
		return color.GrayModel
	}
	return color.RGBAModel
}
func (r *rawImage) Bounds() image.Rectangle { return image.Rect(0, 0, r.w, r.h) }
func (r *rawImage) At(x, y int) color.Color {
	i := (y*r.w + x) * r.c
	switch r.c {
	case 1:
		return color.Gray{Y: r.pix[i]}
	case 3:
		return color.RGBA{R: r.pix[i], G: r.pix[i+1], B: r.pix[i+2], A: 0xff}
	case 4:
		return color.RGBA{R: r.pix[i], G: r.pix[i+1], B: r.pix[i+2], A: r.pix[i+3]}
	default:
		return color.Gray{Y: r.pix[i]}
	}
}

func shapeToHWC(shape []uint64) (h, w, c int, err error) {
	switch len(shape) {
	case 2:
		return int(shape[0]), int(shape[1]), 1, nil
	case 3:
		return int(shape[0]), int(shape[1]), int(shape[2]), nil
	default:
		return 0, 0, 0, fmt.Errorf("codec: image shape must be rank 2 or 3, got %v", shape)
	}
}

func imageToRaw(img image.Image, c int) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*c)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			switch c {
			case 1:
				g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
				out[i] = g.Y
				i++
			default:
				r, g, bl, a := img.At(x, y).RGBA()
				out[i] = byte(r >> 8)
				out[i+1] = byte(g >> 8)
				out[i+2] = byte(bl >> 8)
				if c == 4 {
					out[i+3] = byte(a >> 8)
				}
				i += c
			}
		}
	}
	return out
}

type jpegCodec struct{}

func (jpegCodec) Name() string { return "jpeg" }

func (jpegCodec) Encode(raw []byte, shape []uint64, dtype string) ([]byte, error) {
	if dtype != "uint8" {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "jpeg", Cause: fmt.Errorf("jpeg requires dtype uint8, got %s", dtype)}
	}
	h, w, c, err := shapeToHWC(shape)
	if err != nil {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "jpeg", Cause: err}
	}
	if len(raw) != h*w*c {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "jpeg", Cause: fmt.Errorf("raw buffer is %d bytes, shape implies %d", len(raw), h*w*c)}
	}
	img := &rawImage{pix: raw, w: w, h: h, c: c}
	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "jpeg", Cause: err}
	}
	return out.Bytes(), nil
}

func (jpegCodec) Decode(buf []byte, shape []uint64, dtype string) ([]byte, error) {
	_, _, c, err := shapeToHWC(shape)
	if err != nil {
		return nil, &tserr.SampleDecompressionError{Cause: err}
	}
	img, err := jpeg.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, &tserr.SampleDecompressionError{Cause: err}
	}
	return imageToRaw(img, c), nil
}

type pngCodec struct{}

func (pngCodec) Name() string { return "png" }

func (pngCodec) Encode(raw []byte, shape []uint64, dtype string) ([]byte, error) {
	if dtype != "uint8" {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "png", Cause: fmt.Errorf("png requires dtype uint8, got %s", dtype)}
	}
	h, w, c, err := shapeToHWC(shape)
	if err != nil {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "png", Cause: err}
	}
	if len(raw) != h*w*c {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "png", Cause: fmt.Errorf("raw buffer is %d bytes, shape implies %d", len(raw), h*w*c)}
	}
	img := &rawImage{pix: raw, w: w, h: h, c: c}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "png", Cause: err}
	}
	return out.Bytes(), nil
}

func (pngCodec) Decode(buf []byte, shape []uint64, dtype string) ([]byte, error) {
	_, _, c, err := shapeToHWC(shape)
	if err != nil {
		return nil, &tserr.SampleDecompressionError{Cause: err}
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, &tserr.SampleDecompressionError{Cause: err}
	}
	return imageToRaw(img, c), nil
}

// --- generic byte-stream codecs ----------------------------------------

type gzipCodec struct{}

func (gzipCodec) Name() string { return "gzip" }

func (gzipCodec) Encode(raw []byte, shape []uint64, _ string) ([]byte, error) {
	var out bytes.Buffer
	w := gzip.NewWriter(&out)
	if _, err := w.Write(raw); err != nil {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "gzip", Cause: err}
	}
	if err := w.Close(); err != nil {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "gzip", Cause: err}
	}
	return out.Bytes(), nil
}

func (gzipCodec) Decode(buf []byte, _ []uint64, _ string) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(buf))
	if err != nil {
		return nil, &tserr.SampleDecompressionError{Cause: err}
	}
	defer r.Close()
	out, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, &tserr.SampleDecompressionError{Cause: err}
	}
	return out, nil
}

type snappyCodec struct{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) Encode(raw []byte, _ []uint64, _ string) ([]byte, error) {
	return snappy.Encode(nil, raw), nil
}

func (snappyCodec) Decode(buf []byte, _ []uint64, _ string) ([]byte, error) {
	out, err := snappy.Decode(nil, buf)
	if err != nil {
		return nil, &tserr.SampleDecompressionError{Cause: err}
	}
	return out, nil
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Encode(raw []byte, shape []uint64, _ string) ([]byte, error) {
	var out bytes.Buffer
	w := lz4.NewWriter(&out)
	if _, err := w.Write(raw); err != nil {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "lz4", Cause: err}
	}
	if err := w.Close(); err != nil {
		return nil, &tserr.SampleCompressionError{Shape: shape, Compression: "lz4", Cause: err}
	}
	return out.Bytes(), nil
}

func (lz4Codec) Decode(buf []byte, _ []uint64, _ string) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(buf))
	out, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(&tserr.SampleDecompressionError{Cause: err}, "lz4")
	}
	return out, nil
}
