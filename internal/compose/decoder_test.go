package compose

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image/png"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, solid(w, h, red)); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeBytes(t *testing.T) {
	decoded, err := DecodeBytes(context.Background(), "a.png", pngBytes(t, 12, 7))
	if err != nil {
		t.Fatalf("DecodeBytes returned error: %v", err)
	}
	if decoded.Width != 12 || decoded.Height != 7 {
		t.Errorf("Expected 12x7, got %dx%d", decoded.Width, decoded.Height)
	}
	if decoded.Image == nil {
		t.Error("Expected a drawable image")
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := DecodeBytes(context.Background(), "notes.txt", []byte("definitely not an image"))

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Expected DecodeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "notes.txt") {
		t.Errorf("Expected error to name the file, got %q", err.Error())
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h truecolor
// pixels with no image data behind it.
func pngHeader(w, h uint32) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	chunk = append(chunk, 8, 2, 0, 0, 0)

	_ = binary.Write(buf, binary.BigEndian, uint32(len(chunk)-4))
	buf.Write(chunk)
	_ = binary.Write(buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeRejectsHugeDimensions(t *testing.T) {
	_, err := DecodeBytes(context.Background(), "bomb.png", pngHeader(100000, 100000))

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Expected DecodeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "pixel limit") {
		t.Errorf("Expected a pixel limit error, got %q", err.Error())
	}
}

func TestDecodeBytesWithin(t *testing.T) {
	data := pngBytes(t, 20, 10)

	if _, err := DecodeBytesWithin(context.Background(), "a.png", data, 200); err != nil {
		t.Fatalf("Expected 20x10 to fit a 200 pixel budget, got %v", err)
	}

	_, err := DecodeBytesWithin(context.Background(), "a.png", data, 199)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Expected DecodeError over budget, got %v", err)
	}

	_, _, _, err = DecodeDataURIWithin(context.Background(), "remote", DataURI("image/png", data), 100)
	if !errors.As(err, &decodeErr) {
		t.Errorf("Expected DecodeError for oversized data URI, got %v", err)
	}
}

func TestDecodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := DecodeBytes(ctx, "a.png", pngBytes(t, 2, 2)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestParseDataURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		contentType string
		data        string
		wantErr     bool
	}{
		{name: "png payload", uri: "data:image/png;base64,aGVsbG8=", contentType: "image/png", data: "hello"},
		{name: "no content type", uri: "data:;base64,aGVsbG8=", contentType: "text/plain", data: "hello"},
		{name: "not a data uri", uri: "https://pbs.twimg.com/media/x.jpg", wantErr: true},
		{name: "missing payload", uri: "data:image/png;base64", wantErr: true},
		{name: "not base64", uri: "data:image/png,raw", wantErr: true},
		{name: "bad base64", uri: "data:image/png;base64,!!!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contentType, data, err := ParseDataURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDataURI returned error: %v", err)
			}
			if contentType != tt.contentType || string(data) != tt.data {
				t.Errorf("Expected %s %q, got %s %q", tt.contentType, tt.data, contentType, data)
			}
		})
	}
}

func TestDecodeDataURI(t *testing.T) {
	raw := pngBytes(t, 5, 9)

	decoded, contentType, data, err := DecodeDataURI(context.Background(), "remote", DataURI("image/png", raw))
	if err != nil {
		t.Fatalf("DecodeDataURI returned error: %v", err)
	}
	if decoded.Width != 5 || decoded.Height != 9 {
		t.Errorf("Expected 5x9, got %dx%d", decoded.Width, decoded.Height)
	}
	if contentType != "image/png" || !bytes.Equal(data, raw) {
		t.Error("Expected the original bytes and content type back")
	}

	_, _, _, err = DecodeDataURI(context.Background(), "remote", "data:image/png;base64,????")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Expected DecodeError for malformed URI, got %v", err)
	}
}
