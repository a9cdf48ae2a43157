// Package rpc exposes the registry over gRPC.
//
// Business outcomes (every registry error code) travel inside the response
// as {ok: false, code, message}; gRPC status errors are reserved for
// transport and argument problems.
package rpc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"xdao.co/matreg/registry"
)

// CallerMetadataKey carries the authenticated caller principal.
const CallerMetadataKey = "x-matreg-caller"

// Backend is the registry surface the server exposes. *service.Service implements it.
type Backend interface {
	SetAuthority(ctx context.Context, caller, candidate registry.Principal) error
	SetRegistrationFee(ctx context.Context, caller registry.Principal, fee uint64) error
	SetMaxMaterials(ctx context.Context, caller registry.Principal, limit uint64) error
	RegisterMaterial(ctx context.Context, caller registry.Principal, reg registry.Registration) (registry.Receipt, error)
	ArchiveAndRegister(ctx context.Context, caller registry.Principal, data []byte, reg registry.Registration) (registry.Receipt, error)
	UpdateMaterial(ctx context.Context, caller registry.Principal, id uint64, title, description string) error
	DeactivateMaterial(ctx context.Context, caller registry.Principal, id uint64) error

	GetMaterial(id uint64) (registry.Material, bool)
	GetMaterialByHash(h registry.Hash) (registry.Material, bool)
	VerifyMaterial(h registry.Hash) (registry.Material, error)
	MaterialCount() uint64
	Config() registry.Config
}

// Server adapts a Backend to RegistryServer.
type Server struct {
	UnimplementedRegistryServer
	Backend Backend
}

func callerFrom(ctx context.Context) (registry.Principal, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get(CallerMetadataKey) {
		if v = strings.TrimSpace(v); v != "" {
			return registry.Principal(v), nil
		}
	}
	return "", status.Error(codes.Unauthenticated, "missing "+CallerMetadataKey+" metadata")
}

func (s *Server) ready() error {
	if s == nil || s.Backend == nil {
		return status.Error(codes.FailedPrecondition, "missing backend")
	}
	return nil
}

func invalid(err error) error { return status.Error(codes.InvalidArgument, err.Error()) }

func reply(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// result projects err onto the response. Registry errors become {ok:false};
// anything else is a status error.
func result(err error, extra map[string]any) (*structpb.Struct, error) {
	if err == nil {
		fields := map[string]any{"ok": true}
		for k, v := range extra {
			fields[k] = v
		}
		return reply(fields)
	}
	var re *registry.Error
	if errors.As(err, &re) {
		return reply(map[string]any{
			"ok":      false,
			"code":    float64(re.Code),
			"message": re.Message,
		})
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, status.FromContextError(err).Err()
	}
	return nil, status.Error(codes.Internal, err.Error())
}

func (s *Server) mutation(ctx context.Context, fn func(caller registry.Principal) error) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	return result(fn(caller), nil)
}

func (s *Server) SetAuthority(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.mutation(ctx, func(caller registry.Principal) error {
		return s.Backend.SetAuthority(ctx, caller, registry.Principal(str(in, "principal")))
	})
}

func (s *Server) SetRegistrationFee(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fee, err := u64(in, "fee")
	if err != nil {
		return nil, invalid(err)
	}
	return s.mutation(ctx, func(caller registry.Principal) error {
		return s.Backend.SetRegistrationFee(ctx, caller, fee)
	})
}

func (s *Server) SetMaxMaterials(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	limit, err := u64(in, "max")
	if err != nil {
		return nil, invalid(err)
	}
	return s.mutation(ctx, func(caller registry.Principal) error {
		return s.Backend.SetMaxMaterials(ctx, caller, limit)
	})
}

// RegisterMaterial registers by hash, or, when the request carries a
// base64 payload, archives the payload and registers its hash in one commit.
func (s *Server) RegisterMaterial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	data, withPayload, err := payload(in)
	if err != nil {
		return nil, invalid(err)
	}
	reg := registry.Registration{
		Title:       str(in, "title"),
		Description: str(in, "description"),
		Category:    str(in, "category"),
		Language:    str(in, "language"),
		Format:      str(in, "format"),
	}

	var rcpt registry.Receipt
	if withPayload {
		if str(in, "hash") != "" {
			reg.Hash = rawHash(in, "hash")
		}
		rcpt, err = s.Backend.ArchiveAndRegister(ctx, caller, data, reg)
	} else {
		reg.Hash = rawHash(in, "hash")
		rcpt, err = s.Backend.RegisterMaterial(ctx, caller, reg)
	}
	if err != nil {
		return result(err, nil)
	}
	extra := map[string]any{"id": u64String(rcpt.ID)}
	if rcpt.Transfer != nil {
		extra["transfer"] = transferFields(*rcpt.Transfer)
	}
	return result(nil, extra)
}

func (s *Server) UpdateMaterial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := u64(in, "id")
	if err != nil {
		return nil, invalid(err)
	}
	return s.mutation(ctx, func(caller registry.Principal) error {
		return s.Backend.UpdateMaterial(ctx, caller, id, str(in, "title"), str(in, "description"))
	})
}

func (s *Server) DeactivateMaterial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := u64(in, "id")
	if err != nil {
		return nil, invalid(err)
	}
	return s.mutation(ctx, func(caller registry.Principal) error {
		return s.Backend.DeactivateMaterial(ctx, caller, id)
	})
}

func found(m registry.Material, ok bool) (*structpb.Struct, error) {
	if !ok {
		return reply(map[string]any{"found": false})
	}
	return reply(map[string]any{"found": true, "material": materialFields(m)})
}

func (s *Server) GetMaterial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := u64(in, "id")
	if err != nil {
		return nil, invalid(err)
	}
	return found(s.Backend.GetMaterial(id))
}

func (s *Server) GetMaterialByHash(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	h, ok, err := lookupHash(in, "hash")
	if err != nil {
		return nil, invalid(err)
	}
	if !ok {
		return found(registry.Material{}, false)
	}
	return found(s.Backend.GetMaterialByHash(h))
}

func (s *Server) VerifyMaterial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	h, ok, err := lookupHash(in, "hash")
	if err != nil {
		return nil, invalid(err)
	}
	if !ok {
		return result(registry.NewError(registry.CodeMaterialNotFound, "no material with hash "+str(in, "hash")), nil)
	}
	m, err := s.Backend.VerifyMaterial(h)
	if err != nil {
		return result(err, nil)
	}
	return result(nil, map[string]any{"material": materialFields(m)})
}

func (s *Server) GetMaterialCount(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return reply(map[string]any{"count": u64String(s.Backend.MaterialCount())})
}

func (s *Server) GetConfig(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return reply(configFields(s.Backend.Config()))
}
