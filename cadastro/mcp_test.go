package cadastro

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "cadastro-test", Version: "0.1.0"}

func mcpSession(t *testing.T, s *Session) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	s.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any, out any) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	if err := json.Unmarshal([]byte(tc.Text), out); err != nil {
		t.Fatalf("CallTool(%s): unmarshal %s: %v", name, tc.Text, err)
	}
}

func TestMCP_ValidateCPF(t *testing.T) {
	session := mcpSession(t, newSession(t))

	tests := []struct {
		cpf    string
		valid  bool
		masked string
	}{
		{"52998224725", true, "529.982.247-25"},
		{"529.982.247-24", false, "529.982.247-24"},
		{"11111111111", false, "111.111.111-11"},
	}
	for _, tt := range tests {
		var resp struct {
			Valid  bool   `json:"valid"`
			Masked string `json:"masked"`
		}
		mcpCallTool(t, session, "cadastro_validate_cpf", map[string]any{"cpf": tt.cpf}, &resp)
		if resp.Valid != tt.valid || resp.Masked != tt.masked {
			t.Errorf("validate %q = %+v", tt.cpf, resp)
		}
	}
}

func TestMCP_Mask(t *testing.T) {
	session := mcpSession(t, newSession(t))

	var resp struct {
		Value string `json:"value"`
	}
	mcpCallTool(t, session, "cadastro_mask", map[string]any{"field": "telefone", "value": "1134567890"}, &resp)
	if resp.Value != "(11) 3456-7890" {
		t.Errorf("mask telefone = %q", resp.Value)
	}

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "cadastro_mask",
		Arguments: map[string]any{"field": "rg", "value": "1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.GetError() == nil {
		t.Error("expected tool error for unknown field")
	}
}

func TestMCP_SubmitAndList(t *testing.T) {
	session := mcpSession(t, newSession(t))

	fields := map[string]string{
		"nome": "Ana Souza", "email": "ana@example.org", "cpf": "529.982.247-25",
		"telefone": "(11) 98765-4321", "nascimento": "1990-05-20", "endereco": "Rua A, 10",
		"cep": "01310-100", "cidade": "São Paulo", "estado": "SP", "tipo": "voluntario",
	}
	var ok submitResp
	mcpCallTool(t, session, "cadastro_submit", map[string]any{"fields": fields}, &ok)
	if !ok.Accepted || ok.Record == nil || ok.Record.Fields["nome"] != "Ana Souza" {
		t.Fatalf("submit = %+v", ok)
	}

	fields["cpf"] = "123.456.789-00"
	fields["nascimento"] = "2015-03-01"
	var rejected submitResp
	mcpCallTool(t, session, "cadastro_submit", map[string]any{"fields": fields}, &rejected)
	want := []string{"CPF inválido.", "É necessário ter pelo menos 16 anos para se cadastrar."}
	if rejected.Accepted || strings.Join(rejected.Errors, "|") != strings.Join(want, "|") {
		t.Fatalf("rejected = %+v", rejected)
	}

	var list struct {
		Count   int              `json:"count"`
		Records []map[string]any `json:"records"`
	}
	mcpCallTool(t, session, "cadastro_list_records", map[string]any{}, &list)
	if list.Count != 1 || list.Records[0]["cpf"] != "529.982.247-25" {
		t.Fatalf("list = %+v", list)
	}
}

func TestMCP_NavigateAndPage(t *testing.T) {
	session := mcpSession(t, newSession(t))

	var st PageState
	mcpCallTool(t, session, "cadastro_navigate", map[string]any{"path": "index.html"}, &st)
	if st.Navigation.CurrentPath != "index.html" || st.Navigation.HistoryDepth != 1 {
		t.Fatalf("first navigate = %+v", st)
	}
	mcpCallTool(t, session, "cadastro_navigate", map[string]any{"path": "projetos.html"}, &st)
	if st.Navigation.CurrentPath != "projetos.html" || st.Navigation.HistoryDepth != 2 {
		t.Fatalf("second navigate = %+v", st)
	}

	var page struct {
		State   PageState `json:"state"`
		Content string    `json:"content"`
	}
	mcpCallTool(t, session, "cadastro_page", map[string]any{"selector": "main"}, &page)
	if !strings.Contains(page.Content, "Mesa Solidária") || page.State.Title != "Projetos | ONG Esperança" {
		t.Fatalf("page = %+v", page)
	}
	mcpCallTool(t, session, "cadastro_page", map[string]any{"selector": "main", "format": "html"}, &page)
	if !strings.Contains(page.Content, `<article id="educacao">`) {
		t.Fatalf("html page = %s", page.Content)
	}
}
