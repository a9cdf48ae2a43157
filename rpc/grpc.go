package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "xdao.matreg.v1.Registry"

// RegistryServer is the server API for the Registry gRPC service.
//
// Requests and responses are google.protobuf.Struct messages so the service
// needs no protoc step. uint64 fields travel as decimal strings.
type RegistryServer interface {
	SetAuthority(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetRegistrationFee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetMaxMaterials(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RegisterMaterial(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMaterial(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateMaterial(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeactivateMaterial(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyMaterial(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMaterialByHash(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMaterialCount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedRegistryServer can be embedded to have forward compatible implementations.
type UnimplementedRegistryServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedRegistryServer) SetAuthority(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("SetAuthority")
}
func (UnimplementedRegistryServer) SetRegistrationFee(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("SetRegistrationFee")
}
func (UnimplementedRegistryServer) SetMaxMaterials(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("SetMaxMaterials")
}
func (UnimplementedRegistryServer) RegisterMaterial(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("RegisterMaterial")
}
func (UnimplementedRegistryServer) GetMaterial(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("GetMaterial")
}
func (UnimplementedRegistryServer) UpdateMaterial(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("UpdateMaterial")
}
func (UnimplementedRegistryServer) DeactivateMaterial(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("DeactivateMaterial")
}
func (UnimplementedRegistryServer) VerifyMaterial(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("VerifyMaterial")
}
func (UnimplementedRegistryServer) GetMaterialByHash(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("GetMaterialByHash")
}
func (UnimplementedRegistryServer) GetMaterialCount(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("GetMaterialCount")
}
func (UnimplementedRegistryServer) GetConfig(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("GetConfig")
}

// RegisterRegistryServer registers the Registry service on a gRPC server.
func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&Registry_ServiceDesc, srv)
}

// invoke calls method on cc with Struct request and response.
func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type unaryMethod func(RegistryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(method string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RegistryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		h := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RegistryServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, h)
	}
}

// Registry_ServiceDesc is the grpc.ServiceDesc for the Registry service.
var Registry_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SetAuthority", Handler: handler("SetAuthority", RegistryServer.SetAuthority)},
		{MethodName: "SetRegistrationFee", Handler: handler("SetRegistrationFee", RegistryServer.SetRegistrationFee)},
		{MethodName: "SetMaxMaterials", Handler: handler("SetMaxMaterials", RegistryServer.SetMaxMaterials)},
		{MethodName: "RegisterMaterial", Handler: handler("RegisterMaterial", RegistryServer.RegisterMaterial)},
		{MethodName: "GetMaterial", Handler: handler("GetMaterial", RegistryServer.GetMaterial)},
		{MethodName: "UpdateMaterial", Handler: handler("UpdateMaterial", RegistryServer.UpdateMaterial)},
		{MethodName: "DeactivateMaterial", Handler: handler("DeactivateMaterial", RegistryServer.DeactivateMaterial)},
		{MethodName: "VerifyMaterial", Handler: handler("VerifyMaterial", RegistryServer.VerifyMaterial)},
		{MethodName: "GetMaterialByHash", Handler: handler("GetMaterialByHash", RegistryServer.GetMaterialByHash)},
		{MethodName: "GetMaterialCount", Handler: handler("GetMaterialCount", RegistryServer.GetMaterialCount)},
		{MethodName: "GetConfig", Handler: handler("GetConfig", RegistryServer.GetConfig)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "registry.proto",
}
