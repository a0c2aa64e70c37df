package metrics

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	grpc_core "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/code-payments/endpoint-mock/pkg/grpc"
	"github.com/code-payments/endpoint-mock/pkg/metrics"
)

type statusCodeHandler func(*newrelic.Transaction, *status.Status)

const (
	grpcRequestPackageAttributeKey = "grpc.request.package"
	grpcRequestServiceAttributeKey = "grpc.request.service"
	grpcRequestMethodAttributeKey  = "grpc.request.method"

	grpcResponseStatusCodeAttributeKey      = "grpc.response.statusCode"
	grpcResponseStatusMessageAttributeKey   = "grpc.response.statusMessage"
	grpcResponseStatusCodeLevelAttributeKey = "grpc.response.statusCodeLevel"

	clientUserAgentAttributeKey = "grpc.client.userAgent"

	infoLevel    = "info"
	warningLevel = "warning"
	errorLevel   = "error"
)

var (
	statusCodeHandlers = map[codes.Code]statusCodeHandler{
		codes.OK:              infoStatusCodeHandler,
		codes.AlreadyExists:   infoStatusCodeHandler,
		codes.Canceled:        infoStatusCodeHandler,
		codes.InvalidArgument: infoStatusCodeHandler,
		codes.NotFound:        infoStatusCodeHandler,
		codes.Unauthenticated: infoStatusCodeHandler,

		codes.Aborted:            warningStatusCodeHandler,
		codes.DeadlineExceeded:   warningStatusCodeHandler,
		codes.FailedPrecondition: warningStatusCodeHandler,
		codes.OutOfRange:         warningStatusCodeHandler,
		codes.PermissionDenied:   warningStatusCodeHandler,
		codes.ResourceExhausted:  warningStatusCodeHandler,
		codes.Unavailable:        warningStatusCodeHandler,

		codes.DataLoss:      errorStatusCodeHandler,
		codes.Unknown:       errorStatusCodeHandler,
		codes.Internal:      errorStatusCodeHandler,
		codes.Unimplemented: errorStatusCodeHandler,
	}
	defaultStatusCodeHandler = errorStatusCodeHandler

)

func infoStatusCodeHandler(m *newrelic.Transaction, s *status.Status) {
	m.SetWebResponse(nil).WriteHeader(int(codes.OK))
	m.AddAttribute(grpcResponseStatusCodeAttributeKey, s.Code().String())
	m.AddAttribute(grpcResponseStatusMessageAttributeKey, s.Message())
	m.AddAttribute(grpcResponseStatusCodeLevelAttributeKey, infoLevel)
}

func warningStatusCodeHandler(m *newrelic.Transaction, s *status.Status) {
	m.SetWebResponse(nil).WriteHeader(int(codes.OK))
	m.AddAttribute(grpcResponseStatusCodeAttributeKey, s.Code().String())
	m.AddAttribute(grpcResponseStatusMessageAttributeKey, s.Message())
	m.AddAttribute(grpcResponseStatusCodeLevelAttributeKey, warningLevel)
}

func errorStatusCodeHandler(m *newrelic.Transaction, s *status.Status) {
	m.SetWebResponse(nil).WriteHeader(int(codes.OK))
	m.AddAttribute(grpcResponseStatusCodeAttributeKey, s.Code().String())
	m.AddAttribute(grpcResponseStatusMessageAttributeKey, s.Message())
	m.AddAttribute(grpcResponseStatusCodeLevelAttributeKey, errorLevel)
	m.NoticeError(&newrelic.Error{
		Message: s.Message(),
		Class:   "gRPC Status: " + s.Code().String(),
	})
}

// CustomNewRelicUnaryServerInterceptor is a custom implementation of the New
// Relic unary interceptor.
func CustomNewRelicUnaryServerInterceptor(app *newrelic.Application) grpc_core.UnaryServerInterceptor {
	if app == nil {
		return func(ctx context.Context, req interface{}, info *grpc_core.UnaryServerInfo, handler grpc_core.UnaryHandler) (interface{}, error) {
			return handler(ctx, req)
		}
	}

	return func(ctx context.Context, req interface{}, info *grpc_core.UnaryServerInfo, handler grpc_core.UnaryHandler) (interface{}, error) {
		// Inject the application to allow for any custom metrics, events, etc
		// in downstream code.
		ctx = metrics.WithNewRelicApp(ctx, app)

		m := startTransaction(ctx, app, info.FullMethod)
		defer m.End()

		ctx = newrelic.NewContext(ctx, m)

		includeParsedFullMethodName(m, info.FullMethod)
		includeClientMetadata(ctx, m)

		resp, err := handler(ctx, req)
		includeGRPCStatusCode(m, err)
		return resp, err
	}
}

func CustomNewRelicStreamServerInterceptor(app *newrelic.Application) grpc_core.StreamServerInterceptor {
	if app == nil {
		return func(srv interface{}, ss grpc_core.ServerStream, info *grpc_core.StreamServerInfo, handler grpc_core.StreamHandler) error {
			return handler(srv, ss)
		}
	}

	return func(srv interface{}, ss grpc_core.ServerStream, info *grpc_core.StreamServerInfo, handler grpc_core.StreamHandler) error {
		// Inject the application to allow for any custom metrics, events, etc
		// in downstream code.
		ctx := metrics.WithNewRelicApp(ss.Context(), app)

		m := startTransaction(ctx, app, info.FullMethod)
		defer m.End()

		ctx = newrelic.NewContext(ctx, m)

		includeParsedFullMethodName(m, info.FullMethod)
		includeClientMetadata(ctx, m)

		err := handler(srv, newWrappedStream(ctx, ss))
		includeGRPCStatusCode(m, err)
		return err
	}
}

type wrappedStream struct {
	ctx context.Context
	grpc_core.ServerStream
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}

func newWrappedStream(ctx context.Context, wrapped grpc_core.ServerStream) grpc_core.ServerStream {
	return &wrappedStream{ctx, wrapped}
}

func startTransaction(ctx context.Context, app *newrelic.Application, fullMethod string) *newrelic.Transaction {
	method := strings.TrimPrefix(fullMethod, "/")

	// todo: we may not want to include all headers, especially if they contain
	//       sensitive information
	var hdrs http.Header
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		hdrs = make(http.Header, len(md))
		for k, vs := range md {
			for _, v := range vs {
				hdrs.Add(k, v)
			}
		}
	}

	target := hdrs.Get(":authority")
	url := getURL(method, target)

	webReq := newrelic.WebRequest{
		Header:    hdrs,
		URL:       url,
		Method:    method,
		Transport: newrelic.TransportHTTP,
	}
	txn := app.StartTransaction(method)
	txn.SetWebRequest(webReq)

	// Load balancer probes would otherwise drown out real traffic.
	if grpc.IsHealthCheckEndpoint(fullMethod) {
		txn.Ignore()
	}

	return txn
}

func getURL(method, target string) *url.URL {
	var host string
	// target can be anything from
	// https://github.com/grpc/grpc/blob/master/doc/naming.md
	// see https://godoc.org/google.golang.org/grpc#DialContext
	if strings.HasPrefix(target, "unix:") {
		host = "localhost"
	} else {
		host = strings.TrimPrefix(target, "dns:///")
	}
	return &url.URL{
		Scheme: "grpc",
		Host:   host,
		Path:   method,
	}
}

func includeGRPCStatusCode(m *newrelic.Transaction, err error) {
	grpcStatus := status.Convert(err)
	handler, ok := statusCodeHandlers[grpcStatus.Code()]
	if !ok {
		handler = defaultStatusCodeHandler
	}
	handler(m, grpcStatus)
}

func includeParsedFullMethodName(m *newrelic.Transaction, fullMethodName string) {
	packageName, serviceName, methodName, err := grpc.ParseFullMethodName(fullMethodName)
	if err != nil {
		return
	}

	m.AddAttribute(grpcRequestPackageAttributeKey, packageName)
	m.AddAttribute(grpcRequestServiceAttributeKey, serviceName)
	m.AddAttribute(grpcRequestMethodAttributeKey, methodName)
}

func includeClientMetadata(ctx context.Context, m *newrelic.Transaction) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return
	}

	if userAgents := md.Get("user-agent"); len(userAgents) > 0 {
		m.AddAttribute(clientUserAgentAttributeKey, userAgents[0])
	}
}
