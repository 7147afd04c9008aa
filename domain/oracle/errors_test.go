package oracle

import (
	"context"
	"testing"

	"github.com/pkg/errors"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		isTransport bool
		isTimeout   bool
		isMalformed bool
	}{
		{
			name:        "transport",
			err:         NewTransportError(errors.New("connection refused")),
			isTransport: true,
		},
		{
			name:        "wrapped deadline",
			err:         errors.Wrap(context.DeadlineExceeded, "header at height 5"),
			isTransport: true,
			isTimeout:   true,
		},
		{
			name:        "canceled",
			err:         context.Canceled,
			isTransport: true,
		},
		{
			name:        "malformed",
			err:         errors.Wrap(NewMalformedResponseError(errors.New("31 byte header")), "reorg check"),
			isMalformed: true,
		},
		{
			name: "plain",
			err:  errors.New("something else"),
		},
	}
	for _, test := range tests {
		if IsTransportError(test.err) != test.isTransport {
			t.Fatalf("%s: IsTransportError expected %t", test.name, test.isTransport)
		}
		if IsTimeout(test.err) != test.isTimeout {
			t.Fatalf("%s: IsTimeout expected %t", test.name, test.isTimeout)
		}
		if IsMalformedResponse(test.err) != test.isMalformed {
			t.Fatalf("%s: IsMalformedResponse expected %t", test.name, test.isMalformed)
		}
	}
}
