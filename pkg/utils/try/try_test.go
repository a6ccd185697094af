package try_test

import (
	"errors"
	"testing"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/try"
)

type fataler struct {
	fatal [][]any
}

func (f *fataler) Fatal(args ...any) {
	f.fatal = append(f.fatal, args)
}

type helperfataler struct {
	fataler

	helper uint
}

func (hf *helperfataler) Helper() {
	hf.helper += 1
}

func TestTry(t *testing.T) {
	t.Run("when it does not have error, OrFatal returns the value without Fatal", func(t *testing.T) {
		f := &helperfataler{}
		actual := try.To(42, nil).OrFatal(f)
		if actual != 42 {
			t.Errorf("unexpected result: (actual, expected) = (%d, %d)", actual, 42)
		}
		if len(f.fatal) != 0 || f.helper != 0 {
			t.Errorf("Fatal or Helper is called unexpectedly: %+v", f)
		}
	})

	t.Run("when it has error, OrFatal calls Helper and Fatal", func(t *testing.T) {
		expected := errors.New("fake error")
		f := &helperfataler{}
		actual := try.To(42, expected).OrFatal(f)
		if actual != 0 {
			t.Errorf("zero value is expected, but %d", actual)
		}
		if f.helper != 1 {
			t.Errorf("Helper is called %d times", f.helper)
		}
		if len(f.fatal) != 1 || f.fatal[0][0] != expected {
			t.Errorf("Fatal is not called with the error: %+v", f.fatal)
		}
	})

	t.Run("Get returns zero value with error", func(t *testing.T) {
		expected := errors.New("fake error")
		v, err := try.To("value", expected).Get()
		if v != "" || !errors.Is(err, expected) {
			t.Errorf("unexpected result: (%q, %v)", v, err)
		}
	})
}
