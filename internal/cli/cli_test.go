// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disam-ia/disamia/internal/chat"
	"github.com/disam-ia/disamia/internal/knowledge"
	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/prompt"
	"github.com/disam-ia/disamia/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeOllama serves /api/tags and a fixed streamed reply on /api/chat, and
// records the chat requests it receives.
type fakeOllama struct {
	mu       sync.Mutex
	requests []ollama.ChatRequest
}

func (f *fakeOllama) handler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		io.WriteString(w, "Ollama is running")
	case "/api/tags":
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"models":[
			{"name":"llama3.2:latest","size":2147483648,"details":{"parameter_size":"3.2B"}},
			{"name":"qwen2.5:7b","size":4683087332,"details":{"parameter_size":"7.6B"}}
		]}`)
	case "/api/chat":
		var req ollama.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, frag := range []string{"Hola", " desde", " DISAM"} {
			b, _ := json.Marshal(map[string]any{
				"model":   req.Model,
				"message": map[string]string{"role": "assistant", "content": frag},
				"done":    false,
			})
			w.Write(append(b, '\n'))
		}
		io.WriteString(w, `{"model":"`+req.Model+`","message":{"role":"assistant","content":""},"done":true,"eval_count":3,"eval_duration":1000000}`+"\n")
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeOllama) chatRequests() []ollama.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ollama.ChatRequest(nil), f.requests...)
}

// setupEnv points the config at a temporary home and a fake Ollama.
func setupEnv(t *testing.T) *fakeOllama {
	t.Helper()
	fake := &fakeOllama{}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	t.Setenv("DISAMIA_HOME", t.TempDir())
	t.Setenv("DISAMIA_OLLAMA_URL", srv.URL)
	t.Setenv("DISAMIA_MODEL", "")
	t.Setenv("DISAMIA_STORAGE_DRIVER", "file")
	t.Setenv("DISAMIA_STORAGE_DIR", "")
	t.Setenv("DISAMIA_KNOWLEDGE_WATCH", "false")
	t.Setenv("DISAMIA_LOG_LEVEL", "warn")
	return fake
}

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	res := run(t, "", args...)
	require.NoError(t, res.err, "stderr: %s", res.stderr)
	return res.stdout
}

// decodeData parses a --json response and decodes its data into v.
func decodeData(t *testing.T, out string, v interface{}) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *string         `json:"error"`
		Command string          `json:"command"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.True(t, resp.Success)
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// =============================================================================
// VERSION / ROOT
// =============================================================================

func TestVersion(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "version")
	assert.Contains(t, out, "disamia "+Version)

	var info versionInfo
	decodeData(t, mustRun(t, "version", "--json"), &info)
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestUnknownCommand(t *testing.T) {
	setupEnv(t)
	res := run(t, "", "frobnicate")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown command")
}

// =============================================================================
// KNOWLEDGE
// =============================================================================

func TestKnowledgeList_Defaults(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "knowledge", "list")
	assert.Contains(t, out, "disam_general")
	assert.Contains(t, out, "farmacia")

	var entries []knowledge.Entry
	decodeData(t, mustRun(t, "knowledge", "list", "--json"), &entries)
	assert.Len(t, entries, len(knowledge.DefaultEntries()))
}

func TestKnowledgeList_Category(t *testing.T) {
	setupEnv(t)

	var entries []knowledge.Entry
	decodeData(t, mustRun(t, "--json", "knowledge", "list", "--category", "Urgencias"), &entries)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, "Urgencias", e.Category)
	}
}

func TestKnowledgeCategories(t *testing.T) {
	setupEnv(t)

	var cats []string
	decodeData(t, mustRun(t, "--json", "kb", "categories"), &cats)
	assert.Contains(t, cats, "Institucional")
	assert.Contains(t, cats, "Centros de Salud")
}

func TestKnowledgeAddShowUpdateDelete(t *testing.T) {
	setupEnv(t)

	var added knowledge.Entry
	decodeData(t, mustRun(t, "--json", "knowledge", "add",
		"--title", "Vacunatorio", "--category", "Servicios", "--content", "Lunes a viernes 8:30-16:00"), &added)
	require.NotEmpty(t, added.ID)
	assert.Equal(t, "Vacunatorio", added.Title)

	out := mustRun(t, "knowledge", "show", added.ID)
	assert.Contains(t, out, "Vacunatorio")
	assert.Contains(t, out, "Lunes a viernes")

	var updated knowledge.Entry
	decodeData(t, mustRun(t, "--json", "knowledge", "update", added.ID, "--title", "Vacunatorio central"), &updated)
	assert.Equal(t, "Vacunatorio central", updated.Title)
	assert.Equal(t, "Servicios", updated.Category)
	assert.Equal(t, "Lunes a viernes 8:30-16:00", updated.Content)

	// The system prompt picks the change up.
	ctxOut := mustRun(t, "knowledge", "context")
	assert.Contains(t, ctxOut, "Vacunatorio central")

	res := run(t, "", "--json", "knowledge", "delete", added.ID)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--yes")

	out = mustRun(t, "knowledge", "delete", added.ID, "--yes")
	assert.Contains(t, out, "Deleted "+added.ID)

	res = run(t, "", "knowledge", "show", added.ID)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "entry not found")
}

func TestKnowledgeAdd_ContentFromStdin(t *testing.T) {
	setupEnv(t)

	res := run(t, "Texto desde stdin\n", "--json", "knowledge", "add", "-t", "Stdin", "-c", "Pruebas", "--content", "-")
	require.NoError(t, res.err, res.stderr)

	var added knowledge.Entry
	decodeData(t, res.stdout, &added)
	assert.Equal(t, "Texto desde stdin", added.Content)
}

func TestKnowledgeAdd_Validation(t *testing.T) {
	setupEnv(t)

	res := run(t, "", "knowledge", "add", "--title", "   ", "--category", "X", "--content", "y")
	require.Error(t, res.err)
	var verr *knowledge.ValidationError
	assert.ErrorAs(t, res.err, &verr)
	assert.Equal(t, "title", verr.Field)
}

func TestKnowledgeUpdate_Errors(t *testing.T) {
	setupEnv(t)

	res := run(t, "", "knowledge", "update", "farmacia")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "nothing to update")

	res = run(t, "", "knowledge", "update", "missing", "--title", "X")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "entry not found: missing")

	res = run(t, "", "knowledge", "update", "farmacia", "--category", "")
	require.Error(t, res.err)
	var verr *knowledge.ValidationError
	assert.ErrorAs(t, res.err, &verr)
}

func TestKnowledgeReset(t *testing.T) {
	setupEnv(t)

	mustRun(t, "knowledge", "delete", "farmacia", "--yes")
	mustRun(t, "knowledge", "add", "-t", "Extra", "-c", "Otros", "--content", "x")

	res := run(t, "", "--json", "knowledge", "reset")
	require.Error(t, res.err)

	mustRun(t, "knowledge", "reset", "--yes")

	var entries []knowledge.Entry
	decodeData(t, mustRun(t, "--json", "knowledge", "list"), &entries)
	assert.Equal(t, knowledge.DefaultEntries(), entries)
}

func TestKnowledgeContext(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "knowledge", "context")
	assert.Contains(t, out, knowledge.DefaultContextHeader)
	assert.NotContains(t, out, prompt.DefaultInstructions)

	out = mustRun(t, "knowledge", "context", "--prompt")
	assert.Contains(t, out, knowledge.DefaultContextHeader)
	assert.Contains(t, out, prompt.DefaultInstructions)
}

func TestKnowledgeExportAndLoad(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()

	var exported struct {
		Path    string `json:"path"`
		Entries int    `json:"entries"`
	}
	decodeData(t, mustRun(t, "--json", "knowledge", "export", "--format", "yaml", "--output", dir), &exported)
	assert.Equal(t, len(knowledge.DefaultEntries()), exported.Entries)
	assert.Equal(t, dir, filepath.Dir(exported.Path))
	assert.Equal(t, ".yaml", filepath.Ext(exported.Path))

	mustRun(t, "knowledge", "add", "-t", "Temporal", "-c", "Otros", "--content", "se descarta")

	out := mustRun(t, "knowledge", "load", exported.Path, "--yes")
	assert.Contains(t, out, "Loaded")

	var entries []knowledge.Entry
	decodeData(t, mustRun(t, "--json", "knowledge", "list"), &entries)
	assert.Len(t, entries, len(knowledge.DefaultEntries()))
	for _, e := range entries {
		assert.NotEqual(t, "Temporal", e.Title)
	}
}

func TestKnowledgeExport_Stdout(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "knowledge", "export", "--stdout", "--format", "json")
	var entries []knowledge.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries), out)
	assert.Len(t, entries, len(knowledge.DefaultEntries()))
}

func TestKnowledgeExport_BadFormat(t *testing.T) {
	setupEnv(t)
	res := run(t, "", "knowledge", "export", "--format", "xml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unsupported format")
}

func TestKnowledgeImport(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "horarios-invierno.txt")
	require.NoError(t, os.WriteFile(path, []byte("CESFAM abierto hasta las 20:00\n"), 0644))

	var e knowledge.Entry
	decodeData(t, mustRun(t, "--json", "knowledge", "import", path), &e)
	assert.Equal(t, "horarios-invierno", e.Title)
	assert.Equal(t, knowledge.DefaultImportCategory, e.Category)
	assert.Contains(t, e.Content, "CESFAM abierto")

	res := run(t, "", "knowledge", "import", filepath.Join(t.TempDir(), "foto.png"))
	require.Error(t, res.err)
}

// =============================================================================
// MODELS
// =============================================================================

func TestModels(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "models")
	assert.Contains(t, out, "llama3.2:latest")
	assert.Contains(t, out, "qwen2.5:7b")
	assert.Contains(t, out, "2.0 GiB")

	var res modelsResult
	decodeData(t, mustRun(t, "models", "--json"), &res)
	assert.Len(t, res.Models, 2)
	assert.Equal(t, "llama3.2:latest", res.Selected)

	decodeData(t, mustRun(t, "models", "--json", "-m", "qwen2.5:7b"), &res)
	assert.Equal(t, "qwen2.5:7b", res.Selected)
}

func TestModels_OllamaDown(t *testing.T) {
	setupEnv(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	t.Setenv("DISAMIA_OLLAMA_URL", url)

	res := run(t, "", "models")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "ollama serve")
	assert.True(t, ollama.IsNotRunning(res.err))
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_StreamsAndSaves(t *testing.T) {
	fake := setupEnv(t)

	out := mustRun(t, "ask", "¿Horario", "de", "farmacia?")
	assert.Equal(t, "Hola desde DISAM\n", out)

	reqs := fake.chatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "llama3.2:latest", reqs[0].Model)
	assert.True(t, reqs[0].Stream)
	require.Len(t, reqs[0].Messages, 2)
	assert.Equal(t, ollama.RoleSystem, reqs[0].Messages[0].Role)
	assert.Contains(t, reqs[0].Messages[0].Content, knowledge.DefaultContextHeader)
	assert.Equal(t, ollama.Message{Role: ollama.RoleUser, Content: "¿Horario de farmacia?"}, reqs[0].Messages[1])

	var convs []storage.Conversation
	decodeData(t, mustRun(t, "--json", "conversations", "list"), &convs)
	require.Len(t, convs, 1)
	assert.Equal(t, "¿Horario de farmacia?", convs[0].Title)
	require.Len(t, convs[0].Messages, 2)
	assert.Equal(t, "Hola desde DISAM", convs[0].Messages[1].Content)
}

func TestAsk_FromStdin(t *testing.T) {
	fake := setupEnv(t)

	res := run(t, "¿Dónde queda el CESFAM?\n", "ask", "-m", "qwen2.5:7b", "--no-save")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "Hola desde DISAM\n", res.stdout)

	reqs := fake.chatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "qwen2.5:7b", reqs[0].Model)

	var convs []storage.Conversation
	decodeData(t, mustRun(t, "--json", "conversations", "list"), &convs)
	assert.Empty(t, convs)
}

func TestAsk_JSON(t *testing.T) {
	setupEnv(t)

	var res askResult
	decodeData(t, mustRun(t, "--json", "ask", "Hola"), &res)
	assert.Equal(t, "Hola desde DISAM", res.Reply)
	assert.Equal(t, "Hola", res.Question)
	assert.Equal(t, "llama3.2:latest", res.Model)
	assert.NotEmpty(t, res.ConversationID)
	assert.Equal(t, 3, res.Stats.CompletionTokens)
}

func TestAsk_Empty(t *testing.T) {
	setupEnv(t)

	res := run(t, "   \n", "ask")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, chat.ErrEmptyMessage)
}

func TestAsk_Document(t *testing.T) {
	fake := setupEnv(t)
	path := filepath.Join(t.TempDir(), "informe.txt")
	require.NoError(t, os.WriteFile(path, []byte("Atenciones de enero: 1200"), 0644))

	mustRun(t, "ask", "--file", path, "--no-save")

	reqs := fake.chatRequests()
	require.Len(t, reqs, 1)
	user := reqs[0].Messages[len(reqs[0].Messages)-1]
	assert.Equal(t, prompt.DocumentPrompt("informe.txt", "Atenciones de enero: 1200"), user.Content)
}

// =============================================================================
// CHAT (scripted through stdin)
// =============================================================================

func TestChat_Scripted(t *testing.T) {
	fake := setupEnv(t)

	script := strings.Join([]string{
		"/help",
		"¿Qué es DISAM?",
		"",
		"Gracias",
		"/history",
		"/model qwen2.5:7b",
		"Otra pregunta",
		"/nope",
		"/quit",
		"never sent",
	}, "\n") + "\n"

	res := run(t, script, "chat")
	require.NoError(t, res.err, res.stderr)

	assert.Contains(t, res.stdout, "/attach <ruta>")
	assert.Equal(t, 3, strings.Count(res.stdout, "Hola desde DISAM"))
	assert.Contains(t, res.stdout, "¿Qué es DISAM?") // history table title
	assert.Contains(t, res.stderr, "Modelo: qwen2.5:7b")
	assert.Contains(t, res.stderr, "Comando desconocido: /nope")

	reqs := fake.chatRequests()
	require.Len(t, reqs, 3)
	// The second turn carries the first exchange.
	require.Len(t, reqs[1].Messages, 4)
	assert.Equal(t, "Hola desde DISAM", reqs[1].Messages[2].Content)
	assert.Equal(t, "llama3.2:latest", reqs[1].Model)
	assert.Equal(t, "qwen2.5:7b", reqs[2].Model)

	var convs []storage.Conversation
	decodeData(t, mustRun(t, "--json", "conversations", "list"), &convs)
	require.Len(t, convs, 1)
	assert.Len(t, convs[0].Messages, 6)
}

func TestChat_NewAndOpen(t *testing.T) {
	setupEnv(t)

	mustRun(t, "ask", "Primera conversación")
	var convs []storage.Conversation
	decodeData(t, mustRun(t, "--json", "conversations", "list"), &convs)
	require.Len(t, convs, 1)
	short := shortConversationID(convs[0].ID)

	script := "/open " + short + "\nSeguimos\n/new\nSegunda\n/quit\n"
	res := run(t, script, "chat")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "Conversación abierta: Primera conversación (2 mensajes)")

	decodeData(t, mustRun(t, "--json", "conversations", "list"), &convs)
	require.Len(t, convs, 2)
	// Newest first.
	assert.Equal(t, "Segunda", convs[0].Title)
	assert.Len(t, convs[1].Messages, 4)
}

func TestChat_Attach(t *testing.T) {
	fake := setupEnv(t)
	path := filepath.Join(t.TempDir(), "nota.txt")
	require.NoError(t, os.WriteFile(path, []byte("contenido"), 0644))

	res := run(t, "/attach "+path+"\n/attach\n", "chat")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "Uso: /attach")

	reqs := fake.chatRequests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[1].Content, "nota.txt")
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestConversations_ShowExportDelete(t *testing.T) {
	setupEnv(t)
	mustRun(t, "ask", "¿Horario de urgencias?")

	var convs []storage.Conversation
	decodeData(t, mustRun(t, "--json", "conv", "list"), &convs)
	require.Len(t, convs, 1)
	id := convs[0].ID
	short := shortConversationID(id)

	out := mustRun(t, "conversations", "show", short)
	assert.Contains(t, out, "¿Horario de urgencias?")
	assert.Contains(t, out, "Hola desde DISAM")

	out = mustRun(t, "conversations", "export", short, "--stdout", "--format", "md")
	assert.Contains(t, out, "Hola desde DISAM")

	dir := t.TempDir()
	var exported map[string]string
	decodeData(t, mustRun(t, "--json", "conversations", "export", id, "--format", "json", "--output", dir), &exported)
	assert.Equal(t, id, exported["id"])
	_, err := os.Stat(exported["path"])
	assert.NoError(t, err)

	out = mustRun(t, "conversations", "list", "--search", "nada que ver")
	assert.Contains(t, out, "No conversations.")

	mustRun(t, "conversations", "delete", short, "--yes")
	res := run(t, "", "conversations", "show", short)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "conversation not found")
}

func TestConversations_Clear(t *testing.T) {
	setupEnv(t)
	mustRun(t, "ask", "uno")
	mustRun(t, "ask", "dos")

	res := run(t, "", "--json", "conversations", "clear")
	require.Error(t, res.err)

	var cleared map[string]int
	decodeData(t, mustRun(t, "--json", "conversations", "clear", "--yes"), &cleared)
	assert.Equal(t, 2, cleared["deleted"])

	var convs []storage.Conversation
	decodeData(t, mustRun(t, "--json", "conversations", "list"), &convs)
	assert.Empty(t, convs)
}

func TestResolveConversation(t *testing.T) {
	store := storage.NewConversationStore(storage.NewMemoryBackend())
	a, err := store.Create("a")
	require.NoError(t, err)

	id, err := resolveConversation(store, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	id, err = resolveConversation(store, shortConversationID(a.ID))
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	_, err = resolveConversation(store, "zzzz-not-there")
	assert.Error(t, err)

	// "conv_" prefixes every id.
	_, err = resolveConversation(store, conversationPrefix)
	assert.NoError(t, err)
	_, err = store.Create("b")
	require.NoError(t, err)
	_, err = resolveConversation(store, conversationPrefix)
	assert.ErrorContains(t, err, "ambiguous")
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_InitSetGet(t *testing.T) {
	setupEnv(t)

	path := strings.TrimSpace(mustRun(t, "config", "path"))
	assert.Equal(t, filepath.Join(os.Getenv("DISAMIA_HOME"), "config.toml"), path)

	mustRun(t, "config", "init")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	res := run(t, "", "config", "init")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "already exists")

	mustRun(t, "config", "set", "ollama.model", "qwen2.5:7b")
	assert.Equal(t, "qwen2.5:7b\n", mustRun(t, "config", "get", "ollama.model"))

	// The configured model wins over the first installed one.
	var models modelsResult
	decodeData(t, mustRun(t, "--json", "models"), &models)
	assert.Equal(t, "qwen2.5:7b", models.Selected)

	res = run(t, "", "config", "set", "storage.driver", "postgres")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "storage.driver")

	res = run(t, "", "config", "set", "ollama.nope", "x")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown field")

	keys := mustRun(t, "config", "keys")
	assert.Contains(t, keys, "ollama.timeout_secs")
	assert.Contains(t, keys, "server.admin_token_hash")
}

func TestConfig_EnvOverrideNotSaved(t *testing.T) {
	setupEnv(t)
	t.Setenv("DISAMIA_MODEL", "desde-env")

	mustRun(t, "config", "set", "log.level", "debug")
	assert.Equal(t, "desde-env\n", mustRun(t, "config", "get", "ollama.model"))

	t.Setenv("DISAMIA_MODEL", "")
	assert.Equal(t, "\n", mustRun(t, "config", "get", "ollama.model"))
}

func TestConfig_HashToken(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "config", "hash-token", "secreto", "--save")
	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$2"), hash)

	assert.Equal(t, hash+"\n", mustRun(t, "config", "get", "server.admin_token_hash"))

	res := run(t, "otro\n", "config", "hash-token")
	require.NoError(t, res.err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(res.stdout), "$2"))

	res = run(t, "\n", "config", "hash-token")
	require.Error(t, res.err)
}

func TestConfig_Show(t *testing.T) {
	setupEnv(t)
	out := mustRun(t, "config", "show")
	assert.Contains(t, out, "[ollama]")
	assert.Contains(t, out, os.Getenv("DISAMIA_OLLAMA_URL"))
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table(&buf, []string{"ID", "TÍTULO"}, [][]string{{"a", "uno"}, {"ccc", "dos"}})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID   TÍTULO", lines[0])
	assert.Equal(t, "a    uno", lines[1])
	assert.Equal(t, "ccc  dos", lines[2])
}

func TestPromptYesNo(t *testing.T) {
	for input, want := range map[string]bool{
		"y\n": true, "sí\n": true, "YES\n": true, "\n": false, "n\n": false, "": false,
	} {
		ok, err := promptYesNo(strings.NewReader(input), io.Discard, "¿Seguro?")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "input %q", input)
	}
}

func TestJSONErrorResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONErrorResponse("disamia models", assert.AnError).Print(&buf))

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, assert.AnError.Error(), *resp.Error)
	assert.Nil(t, resp.Data)
}
