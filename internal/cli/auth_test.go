package cli

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func TestReadSecretLine(t *testing.T) {
	t.Run("newline terminated", func(t *testing.T) {
		got, err := readSecretLine(strings.NewReader("hunter2\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "hunter2" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("eof without newline", func(t *testing.T) {
		got, err := readSecretLine(strings.NewReader("hunter2"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "hunter2" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("surrounding whitespace trimmed", func(t *testing.T) {
		got, err := readSecretLine(strings.NewReader("  hunter2  \n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "hunter2" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		got, err := readSecretLine(strings.NewReader(""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("read failure surfaces", func(t *testing.T) {
		boom := errors.New("tty gone")
		if _, err := readSecretLine(iotest.ErrReader(boom)); !errors.Is(err, boom) {
			t.Fatalf("expected wrapped read error, got %v", err)
		}
	})
}
