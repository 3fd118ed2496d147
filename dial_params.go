package wspool

import (
	"context"
	"net/http"
)

type (
	// DialParams are the parameters of a single dial attempt.
	DialParams struct {
		URL    string
		Header http.Header
	}

	// DialParamsGetter resolves the parameters for the next dial attempt.
	// It runs once per attempt, so reconnects can refresh expiring
	// credentials such as signed auth headers.
	DialParamsGetter func(ctx context.Context) (DialParams, error)
)

// staticDialParams always dials the same URL with the same headers.
func staticDialParams(url string, header http.Header) DialParamsGetter {
	return func(context.Context) (DialParams, error) {
		return DialParams{URL: url, Header: header}, nil
	}
}
