package tracing

import (
	"fmt"
	"io"
	"net/http"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// InitTracer 初始化Jaeger Tracer
func InitTracer(serviceName, endpoint string, sampler float64) (opentracing.Tracer, io.Closer, error) {
	cfg := &jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: sampler,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans:           true,
			LocalAgentHostPort: endpoint,
		},
	}

	tracer, closer, err := cfg.NewTracer(jaegercfg.Logger(jaeger.StdLogger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init jaeger tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

// StartSpanFromHTTP 从 HTTP 请求头提取上游 span context 并创建 server span。
// 没有上游 trace 时创建根 span。调用方负责 span.Finish()。
func StartSpanFromHTTP(serviceName string, r *http.Request) opentracing.Span {
	tracer := opentracing.GlobalTracer()

	var span opentracing.Span
	carrier := opentracing.HTTPHeadersCarrier(r.Header)
	if sc, err := tracer.Extract(opentracing.HTTPHeaders, carrier); err == nil {
		span = tracer.StartSpan(r.Method+" "+r.URL.Path, ext.RPCServerOption(sc))
	} else {
		span = tracer.StartSpan(r.Method + " " + r.URL.Path)
	}

	ext.SpanKindRPCServer.Set(span)
	ext.HTTPMethod.Set(span, r.Method)
	ext.HTTPUrl.Set(span, r.URL.String())
	ext.Component.Set(span, "http")
	if serviceName != "" {
		span.SetTag("service", serviceName)
	}
	return span
}
