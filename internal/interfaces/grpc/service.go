package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"

	"github.com/turtacn/entigo/internal/application/resolution"
	"github.com/turtacn/entigo/internal/intelligence/entity_detect"
	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/entity"
)

// ServiceName is the fully qualified name of the resolution service.
const ServiceName = "entigo.v1.Resolution"

// ResolveRequest asks for the resolution of one utterance.
type ResolveRequest struct {
	Text             string   `json:"text"`
	ExpectedEntities []string `json:"expected_entities,omitempty"`
}

func (r *ResolveRequest) Validate() error { return requireText(r.Text) }

// ResolveResponse carries the intents of one utterance.
type ResolveResponse struct {
	RequestID string        `json:"request_id"`
	Result    entity.Result `json:"result"`
	Cached    bool          `json:"cached"`
}

// EntitiesRequest asks for the raw entities of one utterance.
type EntitiesRequest struct {
	Text             string   `json:"text"`
	ExpectedEntities []string `json:"expected_entities,omitempty"`
	Entity           string   `json:"entity,omitempty"`
}

func (r *EntitiesRequest) Validate() error { return requireText(r.Text) }

// EntitiesResponse lists raw entities.
type EntitiesResponse struct {
	Entities []entity.Entity `json:"entities"`
}

// ValueRequest asks for the value of one entity in text.
type ValueRequest struct {
	Entity string `json:"entity"`
	Text   string `json:"text"`
}

func (r *ValueRequest) Validate() error {
	if r.Entity == "" {
		return errors.InvalidParam("entity must not be empty")
	}
	return requireText(r.Text)
}

// ValueResponse carries an extracted entity value.  Values decode as generic
// JSON on the client side.
type ValueResponse struct {
	Entity string      `json:"entity"`
	Value  interface{} `json:"value"`
}

// DependenciesRequest filters dependent entities.  A nil Known lists all of
// them.
type DependenciesRequest struct {
	Known *bool `json:"known,omitempty"`
}

// DependenciesResponse lists dependent entities.
type DependenciesResponse struct {
	Dependencies []string `json:"dependencies"`
}

// DetectorsRequest is empty.
type DetectorsRequest struct{}

// DetectorsResponse lists registered detectors.
type DetectorsResponse struct {
	Detectors []resolution.DetectorInfo `json:"detectors"`
}

func requireText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.InvalidParam("text must not be empty")
	}
	return nil
}

// ResolutionServer is the server API of the resolution service.
type ResolutionServer interface {
	Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error)
	Entities(context.Context, *EntitiesRequest) (*EntitiesResponse, error)
	Value(context.Context, *ValueRequest) (*ValueResponse, error)
	Dependencies(context.Context, *DependenciesRequest) (*DependenciesResponse, error)
	Detectors(context.Context, *DetectorsRequest) (*DetectorsResponse, error)
}

// ResolutionServiceDesc describes the resolution service for
// grpc.Server.RegisterService.
var ResolutionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResolutionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: unaryHandler("Resolve", ResolutionServer.Resolve)},
		{MethodName: "Entities", Handler: unaryHandler("Entities", ResolutionServer.Entities)},
		{MethodName: "Value", Handler: unaryHandler("Value", ResolutionServer.Value)},
		{MethodName: "Dependencies", Handler: unaryHandler("Dependencies", ResolutionServer.Dependencies)},
		{MethodName: "Detectors", Handler: unaryHandler("Detectors", ResolutionServer.Detectors)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "entigo/v1/resolution",
}

// unaryHandler adapts a typed ResolutionServer method to a grpc method
// handler, running it through the server interceptor chain.
func unaryHandler[Req, Resp any](
	method string,
	call func(ResolutionServer, context.Context, *Req) (*Resp, error),
) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		invoke := func(ctx context.Context, req interface{}) (interface{}, error) {
			out, err := call(srv.(ResolutionServer), ctx, req.(*Req))
			if err != nil {
				return nil, err
			}
			return out, nil
		}
		if interceptor == nil {
			return invoke(ctx, in)
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, invoke)
	}
}

// resolutionServer serves the resolution service from a resolution.Service.
type resolutionServer struct {
	svc resolution.Service
}

// NewResolutionServer creates a ResolutionServer backed by svc.
func NewResolutionServer(svc resolution.Service) ResolutionServer {
	return &resolutionServer{svc: svc}
}

func (s *resolutionServer) Resolve(ctx context.Context, in *ResolveRequest) (*ResolveResponse, error) {
	out, err := s.svc.Resolve(ctx, &resolution.ResolveInput{
		Text:             in.Text,
		ExpectedEntities: in.ExpectedEntities,
	})
	if err != nil {
		return nil, err
	}
	return &ResolveResponse{RequestID: out.RequestID, Result: out.Result, Cached: out.Cached}, nil
}

func (s *resolutionServer) Entities(ctx context.Context, in *EntitiesRequest) (*EntitiesResponse, error) {
	ents, err := s.svc.Entities(ctx, &resolution.EntitiesInput{
		Text:             in.Text,
		ExpectedEntities: in.ExpectedEntities,
		Entity:           in.Entity,
	})
	if err != nil {
		return nil, err
	}
	if ents == nil {
		ents = []entity.Entity{}
	}
	return &EntitiesResponse{Entities: ents}, nil
}

func (s *resolutionServer) Value(ctx context.Context, in *ValueRequest) (*ValueResponse, error) {
	v, err := s.svc.Value(ctx, &resolution.ValueInput{Entity: in.Entity, Text: in.Text})
	if err != nil {
		return nil, err
	}
	return &ValueResponse{Entity: in.Entity, Value: v}, nil
}

func (s *resolutionServer) Dependencies(_ context.Context, in *DependenciesRequest) (*DependenciesResponse, error) {
	filter := entity_detect.AllDependencies
	if in.Known != nil {
		filter = entity_detect.UnknownDependencies
		if *in.Known {
			filter = entity_detect.KnownDependencies
		}
	}
	deps := s.svc.Dependencies(filter)
	if deps == nil {
		deps = []string{}
	}
	return &DependenciesResponse{Dependencies: deps}, nil
}

func (s *resolutionServer) Detectors(context.Context, *DetectorsRequest) (*DetectorsResponse, error) {
	return &DetectorsResponse{Detectors: s.svc.Detectors()}, nil
}

// ResolutionClient calls the resolution service over a client connection.
type ResolutionClient struct {
	cc grpc.ClientConnInterface
}

// NewResolutionClient creates a ResolutionClient on cc.
func NewResolutionClient(cc grpc.ClientConnInterface) *ResolutionClient {
	return &ResolutionClient{cc: cc}
}

// Resolve resolves one utterance.
func (c *ResolutionClient) Resolve(ctx context.Context, in *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error) {
	out := new(ResolveResponse)
	if err := c.invoke(ctx, "Resolve", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Entities extracts raw entities.
func (c *ResolutionClient) Entities(ctx context.Context, in *EntitiesRequest, opts ...grpc.CallOption) (*EntitiesResponse, error) {
	out := new(EntitiesResponse)
	if err := c.invoke(ctx, "Entities", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Value extracts one entity value.
func (c *ResolutionClient) Value(ctx context.Context, in *ValueRequest, opts ...grpc.CallOption) (*ValueResponse, error) {
	out := new(ValueResponse)
	if err := c.invoke(ctx, "Value", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Dependencies lists dependent entities.
func (c *ResolutionClient) Dependencies(ctx context.Context, in *DependenciesRequest, opts ...grpc.CallOption) (*DependenciesResponse, error) {
	out := new(DependenciesResponse)
	if err := c.invoke(ctx, "Dependencies", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Detectors lists registered detectors.
func (c *ResolutionClient) Detectors(ctx context.Context, opts ...grpc.CallOption) (*DetectorsResponse, error) {
	out := new(DetectorsResponse)
	if err := c.invoke(ctx, "Detectors", &DetectorsRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ResolutionClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

//Personal.AI order the ending
