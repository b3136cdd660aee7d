package usecase

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("orderengine/usecase")

// 想定内（4xx相当）のエラーはspanをエラー扱いにしない
func endSpan(span trace.Span, err error) {
	if err != nil {
		if ae, ok := AsAppError(err); !ok || ae.Kind == KindInternal || ae.Kind == KindTransient {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
