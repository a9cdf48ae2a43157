package rpc

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"xdao.co/matreg/registry"
)

// Client calls the Registry service as Caller.
type Client struct {
	cc *grpc.ClientConn

	// Caller is sent with every call. Mutations need it.
	Caller registry.Principal
}

// Dial creates a client for target. The connection is established lazily.
func Dial(target string, caller registry.Principal, extra ...grpc.DialOption) (*Client, error) {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, extra...)
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, Caller: caller}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	if c.Caller != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, CallerMetadataKey, string(c.Caller))
	}
	return invoke(ctx, c.cc, method, in)
}

// outcome rebuilds the registry error carried by a {ok:false} response.
func outcome(out *structpb.Struct) error {
	if boolean(out, "ok") {
		return nil
	}
	code, err := u64(out, "code")
	if err != nil {
		return fmt.Errorf("rpc: malformed response: %w", err)
	}
	return registry.NewError(registry.Code(code), str(out, "message"))
}

func (c *Client) mutate(ctx context.Context, method string, fields map[string]any) error {
	out, err := c.call(ctx, method, fields)
	if err != nil {
		return err
	}
	return outcome(out)
}

func (c *Client) SetAuthority(ctx context.Context, candidate registry.Principal) error {
	return c.mutate(ctx, "SetAuthority", map[string]any{"principal": string(candidate)})
}

func (c *Client) SetRegistrationFee(ctx context.Context, fee uint64) error {
	return c.mutate(ctx, "SetRegistrationFee", map[string]any{"fee": u64String(fee)})
}

func (c *Client) SetMaxMaterials(ctx context.Context, limit uint64) error {
	return c.mutate(ctx, "SetMaxMaterials", map[string]any{"max": u64String(limit)})
}

func registrationFields(reg registry.Registration) map[string]any {
	return map[string]any{
		"hash":        fmt.Sprintf("%x", reg.Hash),
		"title":       reg.Title,
		"description": reg.Description,
		"category":    reg.Category,
		"language":    reg.Language,
		"format":      reg.Format,
	}
}

func (c *Client) RegisterMaterial(ctx context.Context, reg registry.Registration) (registry.Receipt, error) {
	return c.register(ctx, registrationFields(reg))
}

// ArchiveAndRegister uploads data with the registration. The daemon stores
// it in its archive in the same commit that registers its hash; reg.Hash may
// be left empty.
func (c *Client) ArchiveAndRegister(ctx context.Context, data []byte, reg registry.Registration) (registry.Receipt, error) {
	fields := registrationFields(reg)
	fields["payload"] = base64.StdEncoding.EncodeToString(data)
	return c.register(ctx, fields)
}

func (c *Client) register(ctx context.Context, fields map[string]any) (registry.Receipt, error) {
	out, err := c.call(ctx, "RegisterMaterial", fields)
	if err != nil {
		return registry.Receipt{}, err
	}
	if err := outcome(out); err != nil {
		return registry.Receipt{}, err
	}
	var rcpt registry.Receipt
	if rcpt.ID, err = u64(out, "id"); err != nil {
		return registry.Receipt{}, fmt.Errorf("rpc: malformed response: %w", err)
	}
	if v, ok := field(out, "transfer"); ok {
		t, err := transferFromStruct(v.GetStructValue())
		if err != nil {
			return registry.Receipt{}, fmt.Errorf("rpc: malformed transfer: %w", err)
		}
		rcpt.Transfer = &t
	}
	return rcpt, nil
}

func (c *Client) UpdateMaterial(ctx context.Context, id uint64, title, description string) error {
	return c.mutate(ctx, "UpdateMaterial", map[string]any{
		"id":          u64String(id),
		"title":       title,
		"description": description,
	})
}

func (c *Client) DeactivateMaterial(ctx context.Context, id uint64) error {
	return c.mutate(ctx, "DeactivateMaterial", map[string]any{"id": u64String(id)})
}

func material(out *structpb.Struct) (registry.Material, error) {
	v, ok := field(out, "material")
	if !ok {
		return registry.Material{}, fmt.Errorf("rpc: response carries no material")
	}
	return materialFromStruct(v.GetStructValue())
}

func (c *Client) lookup(ctx context.Context, method string, fields map[string]any) (registry.Material, bool, error) {
	out, err := c.call(ctx, method, fields)
	if err != nil {
		return registry.Material{}, false, err
	}
	if !boolean(out, "found") {
		return registry.Material{}, false, nil
	}
	m, err := material(out)
	if err != nil {
		return registry.Material{}, false, err
	}
	return m, true, nil
}

func (c *Client) GetMaterial(ctx context.Context, id uint64) (registry.Material, bool, error) {
	return c.lookup(ctx, "GetMaterial", map[string]any{"id": u64String(id)})
}

func (c *Client) GetMaterialByHash(ctx context.Context, h registry.Hash) (registry.Material, bool, error) {
	return c.lookup(ctx, "GetMaterialByHash", map[string]any{"hash": h.String()})
}

func (c *Client) VerifyMaterial(ctx context.Context, h registry.Hash) (registry.Material, error) {
	out, err := c.call(ctx, "VerifyMaterial", map[string]any{"hash": h.String()})
	if err != nil {
		return registry.Material{}, err
	}
	if err := outcome(out); err != nil {
		return registry.Material{}, err
	}
	return material(out)
}

func (c *Client) MaterialCount(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, "GetMaterialCount", nil)
	if err != nil {
		return 0, err
	}
	return u64(out, "count")
}

func (c *Client) Config(ctx context.Context) (registry.Config, error) {
	out, err := c.call(ctx, "GetConfig", nil)
	if err != nil {
		return registry.Config{}, err
	}
	return configFromStruct(out)
}
