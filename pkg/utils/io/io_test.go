package io_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	kio "github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/io"
)

func TestMD5(t *testing.T) {
	// md5 hash in expected is generated with BSD `md5` command.
	type When struct {
		payload string
	}
	type Then struct {
		md5 string
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			t.Run("writer", func(t *testing.T) {
				buf := new(bytes.Buffer)
				testee := kio.NewMD5Writer(buf)
				if _, err := io.WriteString(testee, when.payload); err != nil {
					t.Fatal(err)
				}
				if buf.String() != when.payload {
					t.Errorf("written content mismatch: %q", buf.String())
				}
				if got := hex.EncodeToString(testee.Sum()); got != then.md5 {
					t.Errorf("md5: (actual, expected) = (%s, %s)", got, then.md5)
				}
			})

			t.Run("reader", func(t *testing.T) {
				testee := kio.NewMD5Reader(strings.NewReader(when.payload))
				got, err := io.ReadAll(testee)
				if err != nil {
					t.Fatal(err)
				}
				if string(got) != when.payload {
					t.Errorf("read content mismatch: %q", string(got))
				}
				if sum := hex.EncodeToString(testee.Sum()); sum != then.md5 {
					t.Errorf("md5: (actual, expected) = (%s, %s)", sum, then.md5)
				}
			})
		}
	}

	t.Run("when it is given nothing, it return hash of empty", theory(
		When{payload: ""},
		Then{md5: "d41d8cd98f00b204e9800998ecf8427e"},
	))
	t.Run("when it given bytes, it produce MD5 hash", theory(
		When{payload: "test text to be hashed"},
		Then{md5: "a21436eeedcb3a89a5c9b4513655048f"},
	))
}

func TestTriggerReader(t *testing.T) {
	t.Run("it calls callbacks at the end of stream.", func(t *testing.T) {
		message := "quick brown fox jumps over the lazy dog."
		testee := kio.NewTriggerReader(strings.NewReader(message))

		chars := 0
		charsAtTheEnd := -1
		called := 0
		testee.OnEnd(func() {
			charsAtTheEnd = chars
			called += 1
		})

		for {
			buf := make([]byte, 1)
			l, err := testee.Read(buf)
			chars += l
			if errors.Is(err, io.EOF) {
				break
			} else if err != nil {
				t.Fatalf("fail to read stream.: %v", err)
			}
		}
		// reading after EOF does not trigger again.
		testee.Read(make([]byte, 1))

		if charsAtTheEnd != len(message) {
			t.Errorf(
				"callback is not triggerd just before EOF. callback called at: %d bytes. expected at %d bytes)",
				charsAtTheEnd, len(message),
			)
		}
		if called != 1 {
			t.Errorf("callback is called %d times", called)
		}
	})

	t.Run("callback registered after the end is called immediately", func(t *testing.T) {
		testee := kio.NewTriggerReader(strings.NewReader(""))
		if _, err := io.ReadAll(testee); err != nil {
			t.Fatal(err)
		}
		called := false
		testee.OnEnd(func() { called = true })
		if !called {
			t.Error("callback is not called")
		}
	})
}
