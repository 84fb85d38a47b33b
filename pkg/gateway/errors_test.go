package gateway_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openshift-assisted/fleet-telemetry/pkg/gateway"
)

var _ = DescribeTable("IsRetryable",
	func(err error, expected bool) {
		Expect(gateway.IsRetryable(err)).To(Equal(expected))
	},
	Entry("nil", nil, false),
	Entry("network", gateway.NewErrNetwork(errUpstream), true),
	Entry("timeout", gateway.NewErrTimeout(errUpstream), true),
	Entry("server", gateway.NewErrServer(errUpstream), true),
	Entry("unclassified", errors.New("connection reset"), true),
	Entry("authentication", gateway.NewErrAuthentication(errUpstream), false),
	Entry("bad request", gateway.NewErrBadRequest(errUpstream), false),
	Entry("rate limit", gateway.NewErrRateLimit(errUpstream), false),
	Entry("malformed", gateway.NewErrMalformedResponse(errUpstream, "login", nil), false),
	Entry("cancelled", context.Canceled, false),
	Entry("deadline", context.DeadlineExceeded, false),
)

var _ = Describe("ErrMalformedResponse", func() {
	It("should truncate the payload preview", func() {
		err := gateway.NewErrMalformedResponse(errUpstream, "lastposition", []byte(strings.Repeat("x", 1000)))

		Expect(err.Action).To(Equal("lastposition"))
		Expect(len(err.Preview)).To(BeNumerically("<=", 256))
		Expect(err).To(MatchError(gateway.ErrData))
		Expect(gateway.Kind(err)).To(Equal("data"))
	})
})

var _ = Describe("Request signature", func() {
	It("should not depend on entity or param ordering", func() {
		a := gateway.Request{Action: "lastposition", EntityIDs: []string{"1", "2"}, Params: map[string]string{"x": "1", "y": "2"}}
		b := gateway.Request{Action: "lastposition", EntityIDs: []string{"2", "1"}, Params: map[string]string{"y": "2", "x": "1"}}

		Expect(a.Signature()).To(Equal(b.Signature()))
	})

	It("should change with the cursor", func() {
		a := gateway.Request{Action: "lastposition", EntityIDs: []string{"1"}}
		b := a
		b.Cursor = 42

		Expect(a.Signature()).NotTo(Equal(b.Signature()))
	})
})
