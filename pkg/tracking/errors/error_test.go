package errors_test

import (
	"errors"
	"strings"
	"testing"

	cerr "github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/errors"
)

func TestCuiError(t *testing.T) {
	t.Run("it unwraps the cause and shows it in verbose message", func(t *testing.T) {
		cause := errors.New("connection refused")
		testee := cerr.NewCuiError(
			"cannot reach knitfab",
			cerr.WithVerbose("GET /api/data"),
			cerr.WithCause(cause),
		)

		if !errors.Is(testee, cause) {
			t.Error("cause is not unwrapped")
		}
		if testee.Error() != "cannot reach knitfab" {
			t.Errorf("unexpected summary: %s", testee.Error())
		}
		v := testee.Verbose()
		for _, want := range []string{"cannot reach knitfab", "GET /api/data", "connection refused"} {
			if !strings.Contains(v, want) {
				t.Errorf("verbose message does not contain %q:\n%s", want, v)
			}
		}
	})

	t.Run("it decorates summary with detail printer", func(t *testing.T) {
		testee := cerr.NewCuiError(
			"server error",
			cerr.WithDetail(func(summary string) (string, error) {
				return summary + "\nreason: disk full", nil
			}),
		)
		if testee.Error() != "server error\nreason: disk full" {
			t.Errorf("unexpected message: %s", testee.Error())
		}
	})

	t.Run("nested CUIError is shown verbosely", func(t *testing.T) {
		inner := cerr.NewCuiError("inner", cerr.WithVerbose("inner detail"))
		outer := cerr.NewCuiError("outer", cerr.WithCause(inner))
		if !strings.Contains(outer.Verbose(), "inner detail") {
			t.Errorf("verbose of cause is not included:\n%s", outer.Verbose())
		}
	})
}
