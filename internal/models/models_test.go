package models

import (
	"encoding/json"
	"image"
	"testing"
	"time"
)

func TestParseLayoutMode(t *testing.T) {
	tests := []struct {
		input    string
		expected LayoutMode
		wantErr  bool
	}{
		{input: "vertical", expected: LayoutVertical},
		{input: " Horizontal ", expected: LayoutHorizontal},
		{input: "GRID", expected: LayoutGrid},
		{input: "diagonal", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseLayoutMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLayoutMode returned error: %v", err)
			}
			if mode != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, mode)
			}
		})
	}
}

func TestStatusJSON(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{status: Pending{}, expected: `{"state":"pending"}`},
		{status: Decoding{}, expected: `{"state":"decoding"}`},
		{status: Ready{Width: 640, Height: 480}, expected: `{"state":"ready","width":640,"height":480}`},
		{status: Failed{Reason: "unexpected EOF"}, expected: `{"state":"failed","reason":"unexpected EOF"}`},
	}

	for _, tt := range tests {
		t.Run(tt.status.State(), func(t *testing.T) {
			data, err := json.Marshal(tt.status)
			if err != nil {
				t.Fatalf("Marshal returned error: %v", err)
			}
			if string(data) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, data)
			}

			back, err := UnmarshalStatus(data)
			if err != nil {
				t.Fatalf("UnmarshalStatus returned error: %v", err)
			}
			if back != tt.status {
				t.Errorf("Expected %#v, got %#v", tt.status, back)
			}
		})
	}

	if _, err := UnmarshalStatus([]byte(`{"state":"exploded"}`)); err == nil {
		t.Error("Expected error for unknown state")
	}
}

func TestSourceImageJSON(t *testing.T) {
	img := SourceImage{
		ID:      "b3c1",
		Name:    "a.png",
		Origin:  OriginUpload,
		Size:    42,
		Status:  Ready{Width: 10, Height: 20},
		AddedAt: time.Date(2024, time.August, 31, 14, 19, 0, 0, time.UTC),
	}

	data, err := json.Marshal(img)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var back SourceImage
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if back.ID != img.ID || back.Status != img.Status || !back.AddedAt.Equal(img.AddedAt) {
		t.Errorf("Expected %+v, got %+v", img, back)
	}

	w, h, ok := back.Dimensions()
	if !ok || w != 10 || h != 20 {
		t.Errorf("Expected ready 10x20, got %dx%d ok=%v", w, h, ok)
	}

	var pending SourceImage
	if err := json.Unmarshal([]byte(`{"id":"x","name":"b.png"}`), &pending); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if _, _, ok := pending.Dimensions(); ok || pending.Status != (Pending{}) {
		t.Errorf("Expected missing status to read as pending, got %#v", pending.Status)
	}
}

func TestRectPixels(t *testing.T) {
	tests := []struct {
		name     string
		rect     Rect
		expected image.Rectangle
	}{
		{name: "whole pixels", rect: Rect{X: 0, Y: 400, W: 200, H: 50}, expected: image.Rect(0, 400, 200, 450)},
		{name: "fractional edges", rect: Rect{X: 33.4, Y: 0, W: 66.3, H: 10.5}, expected: image.Rect(33, 0, 100, 11)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rect.Pixels(); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}

	// neighbours that share a fractional edge share the rounded edge
	left := Rect{X: 0, W: 66.66666}
	right := Rect{X: 66.66666, W: 66.66666}
	if left.Pixels().Max.X != right.Pixels().Min.X {
		t.Errorf("Expected shared edge, got %v and %v", left.Pixels(), right.Pixels())
	}
}
