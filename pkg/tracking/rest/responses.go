package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apierr "github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/errors"
	cerr "github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/errors"
)

// MessageFor is a summary of error for each status code range.
type MessageFor map[StatusCodeRange]string

// unmarshalJsonResponse decodes JSON response into v.
//
// When the status code is 4xx or 5xx, it returns CUIError
// whose summary comes from messageFor and detail from the server message.
func unmarshalJsonResponse[T any](resp *http.Response, v *T, messageFor MessageFor) error {
	if StatusCodeRangeOf(resp) <= Status2xx {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			message := fmt.Sprintf("unexpected response: %s (status code = %d)", err.Error(), resp.StatusCode)
			return cerr.NewCuiError(message, cerr.WithCause(err))
		}
		return nil
	}
	return errorResponse(resp, messageFor)
}

// unmarshalStreamResponse returns response body if the status code is not an error.
func unmarshalStreamResponse(resp *http.Response, messageFor MessageFor) (io.ReadCloser, error) {
	if StatusCodeRangeOf(resp) <= Status2xx {
		return resp.Body, nil
	}
	return nil, errorResponse(resp, messageFor)
}

func errorResponse(resp *http.Response, messageFor MessageFor) error {
	scr := StatusCodeRangeOf(resp)
	message, ok := messageFor[scr]
	if !ok {
		message = fmt.Sprintf("%s (status code = %d)", scr, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cerr.NewCuiError(
			fmt.Sprintf("%s\ncannot read server message: %s", message, err.Error()),
			cerr.WithCause(err),
		)
	}

	detail := parseErrorMessage(body)
	return cerr.NewCuiError(
		message,
		cerr.WithDetail(func(summary string) (string, error) {
			return summary + "\n" + detail, nil
		}),
	)
}

func parseErrorMessage(body []byte) string {
	eresp := apierr.ErrorMessage{}
	if err := json.Unmarshal(body, &eresp); err == nil {
		return eresp.String()
	}

	wrapped := apierr.ErrorResponse{}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Message.Reason != "" {
		return wrapped.Message.String()
	}

	msg := struct {
		Message *string `json:"message"`
	}{}
	if err := json.Unmarshal(body, &msg); err == nil && msg.Message != nil {
		return *msg.Message
	}

	return string(body)
}
