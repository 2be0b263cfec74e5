package cadastro

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ongspa/form"
	"github.com/hazyhaar/ongspa/idgen"
	"github.com/hazyhaar/ongspa/kit"
	"github.com/hazyhaar/ongspa/mask"
	"github.com/hazyhaar/ongspa/validate"
)

// RegisterMCP registers the cadastro tools on an MCP server.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	s.registerValidateCPFTool(srv)
	s.registerMaskTool(srv)
	s.registerSubmitTool(srv)
	s.registerListRecordsTool(srv)
	s.registerNavigateTool(srv)
	s.registerPageTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// register wraps endpoint with logging and a per-call request id.
func (s *Session) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	ep := kit.Chain(kit.Logging(s.logger, tool.Name))(endpoint)
	kit.RegisterMCPTool(srv, tool, ep, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		res, err := decode(req)
		if err != nil {
			return nil, err
		}
		res.EnrichCtx = func(ctx context.Context) context.Context {
			return kit.WithSessionID(kit.WithRequestID(ctx, idgen.Prefixed("req_", idgen.Default)()), s.ID)
		}
		return res, nil
	})
}

// --- validate_cpf ---

type validateCPFReq struct {
	CPF string `json:"cpf"`
}

func (s *Session) registerValidateCPFTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cadastro_validate_cpf",
		Description: "Check a Brazilian CPF (check digits, repeated digits) and return its masked form.",
		InputSchema: inputSchema(map[string]any{
			"cpf": map[string]any{"type": "string", "description": "CPF, with or without punctuation"},
		}, []string{"cpf"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*validateCPFReq)
		return map[string]any{
			"valid":  validate.NationalID(r.CPF),
			"masked": mask.NationalID(r.CPF),
		}, nil
	}
	s.register(srv, tool, endpoint, kit.DecodeArgs[validateCPFReq]())
}

// --- mask ---

type maskReq struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Session) registerMaskTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cadastro_mask",
		Description: "Apply the input mask of a form field (cpf, telefone, cep) to a raw value.",
		InputSchema: inputSchema(map[string]any{
			"field": map[string]any{"type": "string", "enum": []string{"cpf", "telefone", "cep"}},
			"value": map[string]any{"type": "string"},
		}, []string{"field", "value"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*maskReq)
		fn, ok := mask.ByName(r.Field)
		if !ok {
			return nil, fmt.Errorf("unknown field %q", r.Field)
		}
		return map[string]string{"value": fn(r.Value)}, nil
	}
	s.register(srv, tool, endpoint, kit.DecodeArgs[maskReq]())
}

// --- submit ---

type submitReq struct {
	Fields map[string]string `json:"fields"`
}

type submitResp struct {
	Accepted bool         `json:"accepted"`
	Record   *form.Record `json:"record,omitempty"`
	Errors   []string     `json:"errors,omitempty"`
}

func (s *Session) registerSubmitTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cadastro_submit",
		Description: "Validate a registration and store it when every check passes. Rejections list every failed check.",
		InputSchema: inputSchema(map[string]any{
			"fields": map[string]any{
				"type":                 "object",
				"description":          "Form fields: nome, email, cpf, telefone, nascimento, endereco, cep, cidade, estado, tipo",
				"additionalProperties": map[string]any{"type": "string"},
			},
		}, []string{"fields"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*submitReq)
		rec, err := s.Process(ctx, r.Fields)
		var verr *form.ValidationError
		switch {
		case errors.As(err, &verr):
			return submitResp{Errors: verr.Messages}, nil
		case err != nil:
			return nil, err
		}
		return submitResp{Accepted: true, Record: rec}, nil
	}
	s.register(srv, tool, endpoint, kit.DecodeArgs[submitReq]())
}

// --- list_records ---

func (s *Session) registerListRecordsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cadastro_list_records",
		Description: "List every stored registration, oldest first.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		recs, err := s.Records(ctx)
		if err != nil {
			return nil, err
		}
		if recs == nil {
			recs = []form.Record{}
		}
		return map[string]any{"records": recs, "count": len(recs)}, nil
	}
	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}
	s.register(srv, tool, endpoint, decode)
}

// --- navigate ---

type navigateReq struct {
	Path string `json:"path"`
}

func (s *Session) registerNavigateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cadastro_navigate",
		Description: "Navigate the page shell to a page of the site, in place when possible.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Page path relative to the current page, e.g. cadastro.html"},
		}, []string{"path"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*navigateReq)
		if s.State().Navigation.CurrentPath == "" {
			if err := s.Open(ctx, r.Path); err != nil {
				return nil, err
			}
		} else {
			s.Navigate(ctx, r.Path)
		}
		return s.State(), nil
	}
	s.register(srv, tool, endpoint, kit.DecodeArgs[navigateReq]())
}

// --- page ---

type pageReq struct {
	Selector string `json:"selector"`
	Format   string `json:"format"`
}

func (s *Session) registerPageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cadastro_page",
		Description: "Return the current page (or one element) as markdown or html, with the navigation state.",
		InputSchema: inputSchema(map[string]any{
			"selector": map[string]any{"type": "string", "description": "Element selector; empty for the whole page"},
			"format":   map[string]any{"type": "string", "enum": []string{"markdown", "html"}},
		}, nil),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*pageReq)
		var content string
		switch r.Format {
		case "", "markdown":
			md, err := s.Markdown(r.Selector)
			if err != nil {
				return nil, err
			}
			content = md
		case "html":
			content = s.HTML(r.Selector)
		default:
			return nil, fmt.Errorf("unknown format %q", r.Format)
		}
		return map[string]any{"state": s.State(), "content": content}, nil
	}
	s.register(srv, tool, endpoint, kit.DecodeArgs[pageReq]())
}
