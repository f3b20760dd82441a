package observability

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer hangs X-Ray subsegments off the ambient request segment. Calls
// made outside a sampled request (local runs, tests) pass straight
// through untraced.
type Tracer struct {
	serviceName string
}

// NewTracer creates a tracer for the named service.
func NewTracer(serviceName string) *Tracer {
	return &Tracer{serviceName: serviceName}
}

// InstrumentAWSClients adds X-Ray middleware to every AWS client built
// from the config, so storage and messaging calls appear as subsegments.
func (t *Tracer) InstrumentAWSClients(cfg *aws.Config) {
	awsv2.AWSV2Instrumentor(&cfg.APIOptions)
}

// Capture runs fn inside a subsegment named after the operation. The
// error is recorded on the subsegment and returned unchanged.
func (t *Tracer) Capture(ctx context.Context, name string, fn func(context.Context) error) error {
	if xray.GetSegment(ctx) == nil {
		return fn(ctx)
	}
	return xray.Capture(ctx, t.serviceName+"."+name, fn)
}

// AddAnnotation sets an indexed annotation on the current segment, if any.
func (t *Tracer) AddAnnotation(ctx context.Context, key, value string) {
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddAnnotation(key, value)
	}
}
