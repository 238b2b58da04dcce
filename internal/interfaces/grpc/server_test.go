package grpc

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/turtacn/entigo/internal/application/resolution"
	"github.com/turtacn/entigo/internal/config"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/entigo/internal/intelligence/entity_detect"
	"github.com/turtacn/entigo/internal/testutil"
	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/entity"
)

func testEngine() *entity_detect.Engine {
	return entity_detect.NewEngine().
		MustRegisterRegexp("EMAIL", `[a-z0-9.]+@[a-z0-9.]+\.[a-z]+`, entity_detect.Options{Anonymize: true}).
		MustRegisterRegexp("NUMBER", `\d+`, entity_detect.Options{}).
		MustRegisterRegexp("PRICE", `@NUMBER\s*czk`, entity_detect.Options{ExtractValueFrom: "NUMBER"}).
		MustRegisterRegexp("CITY-PRICE", `@CITY\s+@PRICE`, entity_detect.Options{})
}

type testEnv struct {
	server *Server
	conn   *grpc.ClientConn
	client *ResolutionClient
	logger *testutil.MockLogger
}

// startTestServer serves the resolution service for svc over an in-memory
// listener.
func startTestServer(t *testing.T, svc resolution.Service, opts ...Option) *testEnv {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	logger := testutil.NewMockLogger()

	srv, err := NewServer(config.GRPCConfig{}, append([]Option{WithListener(lis), WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	srv.RegisterService(&ResolutionServiceDesc, NewResolutionServer(svc))

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		require.NoError(t, srv.Stop(context.Background()))
		require.NoError(t, <-done)
	})
	return &testEnv{server: srv, conn: conn, client: NewResolutionClient(conn), logger: logger}
}

func TestServer_Resolve(t *testing.T) {
	env := startTestServer(t, resolution.NewService(testEngine()))

	var header metadata.MD
	out, err := env.client.Resolve(context.Background(), &ResolveRequest{Text: "Mail a@b.com about 100 czk"}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, "mail @EMAIL about 100 czk", out.Result.Text)
	assert.Equal(t, []string{"EMAIL", "PRICE"}, entity.Names(out.Result.Entities))
	assert.False(t, out.Cached)
	require.NotEmpty(t, header.Get(MetadataRequestID))
	assert.Equal(t, header.Get(MetadataRequestID)[0], out.RequestID)
}

func TestServer_Resolve_AdoptsCallerRequestID(t *testing.T) {
	env := startTestServer(t, resolution.NewService(testEngine()))

	ctx := metadata.AppendToOutgoingContext(context.Background(), MetadataRequestID, "req-42")
	out, err := env.client.Resolve(ctx, &ResolveRequest{Text: "order 100 czk"})
	require.NoError(t, err)
	assert.Equal(t, "req-42", out.RequestID)

	ctx = metadata.AppendToOutgoingContext(context.Background(), MetadataRequestID, strings.Repeat("x", maxRequestIDLength+1))
	out, err = env.client.Resolve(ctx, &ResolveRequest{Text: "order 100 czk"})
	require.NoError(t, err)
	assert.Len(t, out.RequestID, 36)
}

func TestServer_EntitiesValueAndDetectors(t *testing.T) {
	env := startTestServer(t, resolution.NewService(testEngine()))
	ctx := context.Background()

	ents, err := env.client.Entities(ctx, &EntitiesRequest{Text: "call 42", Entity: "NUMBER"})
	require.NoError(t, err)
	require.Len(t, ents.Entities, 1)
	assert.Equal(t, "42", ents.Entities[0].Text)

	none, err := env.client.Entities(ctx, &EntitiesRequest{Text: "nothing here"})
	require.NoError(t, err)
	assert.NotNil(t, none.Entities)
	assert.Empty(t, none.Entities)

	v, err := env.client.Value(ctx, &ValueRequest{Entity: "PRICE", Text: "100 czk"})
	require.NoError(t, err)
	assert.Equal(t, "PRICE", v.Entity)
	assert.Equal(t, "100", v.Value)

	dets, err := env.client.Detectors(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(dets.Detectors))
	for _, d := range dets.Detectors {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"EMAIL", "NUMBER", "PRICE", "CITY-PRICE"}, names)
}

func TestServer_Dependencies(t *testing.T) {
	env := startTestServer(t, resolution.NewService(testEngine()))
	ctx := context.Background()
	known, unknown := true, false

	all, err := env.client.Dependencies(ctx, &DependenciesRequest{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"NUMBER", "PRICE", "city"}, all.Dependencies)

	k, err := env.client.Dependencies(ctx, &DependenciesRequest{Known: &known})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"NUMBER", "PRICE"}, k.Dependencies)

	u, err := env.client.Dependencies(ctx, &DependenciesRequest{Known: &unknown})
	require.NoError(t, err)
	assert.Equal(t, []string{"city"}, u.Dependencies)
}

func TestServer_ValidationError(t *testing.T) {
	env := startTestServer(t, resolution.NewService(testEngine()))

	var trailer metadata.MD
	_, err := env.client.Resolve(context.Background(), &ResolveRequest{Text: "  "}, grpc.Trailer(&trailer))
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "text must not be empty", st.Message())
	assert.Equal(t, []string{errors.ErrCodeBadRequest.String()}, trailer.Get(MetadataErrorCode))

	_, err = env.client.Value(context.Background(), &ValueRequest{Text: "100 czk"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_UnknownEntityIsNotFound(t *testing.T) {
	env := startTestServer(t, resolution.NewService(testEngine()))

	_, err := env.client.Entities(context.Background(), &EntitiesRequest{Text: "brno", Entity: "CITY"})
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "entity is not registered", st.Message())
}

func TestServer_HealthReportsServing(t *testing.T) {
	env := startTestServer(t, resolution.NewService(testEngine()))
	hc := healthpb.NewHealthClient(env.conn)

	for _, svc := range []string{"", ServiceName} {
		resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: svc})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus(), svc)
	}
}

func TestServer_LogsAndRecordsMetrics(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, nil)
	require.NoError(t, err)
	metrics := prometheus.NewAppMetrics(collector)
	env := startTestServer(t, resolution.NewService(testEngine()), WithMetrics(metrics))

	_, err = env.client.Resolve(context.Background(), &ResolveRequest{Text: "order 100 czk"})
	require.NoError(t, err)
	_, err = env.client.Resolve(context.Background(), &ResolveRequest{})
	require.Error(t, err)

	assert.True(t, env.logger.HasMessage("info", "grpc request"))
	assert.False(t, env.logger.HasMessage("error", "grpc handler failed"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	body := w.Body.String()
	assert.Contains(t, body, `test_grpc_requests_total{code="OK",method="Resolve",service="entigo.v1.Resolution"} 1`)
	assert.Contains(t, body, `test_grpc_requests_total{code="InvalidArgument",method="Resolve",service="entigo.v1.Resolution"} 1`)
	assert.Contains(t, body, "test_grpc_request_duration_seconds_count")
}

func TestNewServer_BindsConfiguredAddress(t *testing.T) {
	srv, err := NewServer(config.GRPCConfig{Host: "127.0.0.1", Port: 0})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(srv.Addr(), "127.0.0.1:"))
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestNewServer_InvalidAddress(t *testing.T) {
	_, err := NewServer(config.GRPCConfig{Host: "999.999.999.999", Port: 99999})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestNewServer_Options(t *testing.T) {
	srv, err := NewServer(config.GRPCConfig{MaxRecvMsgSize: 1024, GracefulTimeout: time.Second},
		WithListener(bufconn.Listen(1024)))
	require.NoError(t, err)
	assert.Equal(t, 1024, srv.opts.maxRecvMsgSize)
	assert.Equal(t, time.Second, srv.opts.gracefulTimeout)

	srv, err = NewServer(config.GRPCConfig{MaxRecvMsgSize: 1024},
		WithListener(bufconn.Listen(1024)), WithMaxRecvMsgSize(2048), WithGracefulTimeout(2*time.Second), WithMaxRecvMsgSize(-1))
	require.NoError(t, err)
	assert.Equal(t, 2048, srv.opts.maxRecvMsgSize)
	assert.Equal(t, 2*time.Second, srv.opts.gracefulTimeout)
	assert.NotNil(t, srv.opts.logger)

	srv, err = NewServer(config.GRPCConfig{}, WithListener(bufconn.Listen(1024)))
	require.NoError(t, err)
	assert.Equal(t, defaultMaxRecvMsgSize, srv.opts.maxRecvMsgSize)
	assert.Equal(t, defaultGracefulTimeout, srv.opts.gracefulTimeout)
}

func TestServer_DoubleStart(t *testing.T) {
	env := startTestServer(t, resolution.NewService(testEngine()))
	err := env.server.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	logger := testutil.NewMockLogger()
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/Resolve"}

	_, err := recoveryUnaryInterceptor(logger)(context.Background(), nil, info,
		func(context.Context, interface{}) (interface{}, error) { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.True(t, logger.HasMessage("error", "grpc panic recovered"))

	resp, err := recoveryUnaryInterceptor(logger)(context.Background(), nil, info,
		func(context.Context, interface{}) (interface{}, error) { return "ok", nil })
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestStatusUnaryInterceptor_MasksServerErrors(t *testing.T) {
	logger := testutil.NewMockLogger()
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/Resolve"}
	call := func(err error) error {
		_, got := statusUnaryInterceptor(logger)(context.Background(), nil, info,
			func(context.Context, interface{}) (interface{}, error) { return nil, err })
		return got
	}

	err := call(errors.Internal("redis exploded"))
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "internal server error", st.Message())
	assert.True(t, logger.HasMessage("error", "grpc handler failed"))

	err = call(errors.New(errors.ErrCodeEntityUnknown, "entity is not registered"))
	assert.Equal(t, codes.NotFound, status.Code(err))

	err = call(errors.Unavailable("engine draining"))
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Equal(t, "service unavailable", status.Convert(err).Message())

	passthrough := status.Error(codes.Aborted, "aborted")
	assert.Equal(t, passthrough, call(passthrough))

	assert.Equal(t, codes.Internal, status.Code(call(context.DeadlineExceeded)))
}

func TestValidationUnaryInterceptor(t *testing.T) {
	called := false
	handler := func(context.Context, interface{}) (interface{}, error) {
		called = true
		return nil, nil
	}

	_, err := validationUnaryInterceptor()(context.Background(), &ResolveRequest{}, nil, handler)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	assert.False(t, called)

	_, err = validationUnaryInterceptor()(context.Background(), &DetectorsRequest{}, nil, handler)
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestCodeForHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   codes.Code
	}{
		{400, codes.InvalidArgument},
		{422, codes.InvalidArgument},
		{404, codes.NotFound},
		{409, codes.AlreadyExists},
		{429, codes.ResourceExhausted},
		{501, codes.Unimplemented},
		{503, codes.Unavailable},
		{504, codes.DeadlineExceeded},
		{500, codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, codeForHTTPStatus(tt.status), tt.status)
	}
}

func TestSplitMethodName(t *testing.T) {
	service, method := splitMethodName("/entigo.v1.Resolution/Resolve")
	assert.Equal(t, "entigo.v1.Resolution", service)
	assert.Equal(t, "Resolve", method)

	service, method = splitMethodName("Resolve")
	assert.Equal(t, "unknown", service)
	assert.Equal(t, "Resolve", method)
}

func TestIsHealthCheck(t *testing.T) {
	assert.True(t, isHealthCheck("/grpc.health.v1.Health/Check"))
	assert.False(t, isHealthCheck("/entigo.v1.Resolution/Resolve"))
}

func TestJSONCodec(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, CodecName, c.Name())

	b, err := c.Marshal(&ResolveRequest{Text: "hi", ExpectedEntities: []string{"NUMBER"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hi","expected_entities":["NUMBER"]}`, string(b))

	var req ResolveRequest
	require.NoError(t, c.Unmarshal([]byte(`{"text":"x"}`), &req))
	assert.Equal(t, "x", req.Text)
	assert.NoError(t, c.Unmarshal(nil, &req))

	_, err = c.Marshal(make(chan int))
	assert.Error(t, err)
	assert.Error(t, c.Unmarshal([]byte("{"), &req))
}

//Personal.AI order the ending
