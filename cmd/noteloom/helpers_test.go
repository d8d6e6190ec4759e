package main

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
)

func Test_setSetting(t *testing.T) {
	t.Parallel()
	s := model.DefaultSettings()

	got, err := setSetting(s, "lineSpacing", "1.25")
	if err != nil || got.LineSpacing != 1.25 {
		t.Fatalf("lineSpacing: %+v %v", got, err)
	}
	got, err = setSetting(got, "accentColor", "#000")
	if err != nil || got.AccentColor != "#000" || got.LineSpacing != 1.25 {
		t.Fatalf("accentColor: %+v %v", got, err)
	}
	if _, err := setSetting(s, "fontSize", "16.5"); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("fractional int: %v", err)
	}
	if s.AccentColor != "#4a90e2" {
		t.Fatalf("input mutated")
	}
}

func Test_readLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"secret1\nrest", "secret1", nil},
		{"secret1\r\n", "secret1", nil},
		{"no newline", "no newline", nil},
		{"", "", io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		got, err := readLine(strings.NewReader(tt.in))
		if !errors.Is(err, tt.wantErr) || got != tt.want {
			t.Fatalf("readLine(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func Test_newLogger(t *testing.T) {
	t.Parallel()
	if _, err := newLogger("debug"); err != nil {
		t.Fatalf("debug: %v", err)
	}
	if _, err := newLogger("chatty"); err == nil {
		t.Fatalf("want error for unknown level")
	}
}
