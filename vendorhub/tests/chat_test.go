package tests

import (
	"errors"
	"strings"
	"testing"
)

func TestChatMessage(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	vendorId := createVendorUser(t, env, admin, "vendor1")
	createProject(t, admin, "storefront rebuild")

	metrics := createMetrics(t, admin, "quality")
	projectId := createProject(t, admin, "p2")
	participationId, err := admin.assignVendor(projectId, vendorId, map[string]string{"role": "dev"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := admin.saveEvaluation(participationId, "ok", []map[string]interface{}{{"metric_id": metrics[0].Id, "value": 4}}); err != nil {
		t.Fatal(err)
	}

	env.llm.response = "vendor1 ltd is your strongest option"

	res, err := admin.chatMessage("who should build the storefront?", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "vendor1 ltd is your strongest option" {
		t.Fatalf("invalid answer %v", res.Answer)
	}
	if len(res.History) != 2 || res.History[0].Role != "user" || res.History[1].Role != "assistant" {
		t.Fatalf("invalid history %v", res.History)
	}

	if len(env.llm.systemPrompts) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(env.llm.systemPrompts))
	}
	prompt := env.llm.systemPrompts[0]
	if !strings.Contains(prompt, "vendor1 ltd (score 4.00)") {
		t.Fatalf("vendor directory missing from prompt: %v", prompt)
	}
	if !strings.Contains(prompt, "storefront rebuild for acme [planned]") {
		t.Fatalf("project registry missing from prompt: %v", prompt)
	}

	// History round trips through subsequent messages.
	res, err = admin.chatMessage("why?", []map[string]string{
		{"role": "user", "content": "who should build the storefront?"},
		{"role": "assistant", "content": "vendor1 ltd is your strongest option"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.History) != 4 {
		t.Fatalf("invalid history %v", res.History)
	}

	_, err = admin.chatMessage("", nil)
	if err == nil {
		t.Fatal("empty messages are rejected")
	}
}

func TestTenderSummary(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	createVendorUser(t, env, admin, "vendor1")

	env.llm.response = "tender asks for a webshop, vendor1 ltd fits"

	document := []byte("%PDF-1.4 fake tender document")
	res, err := admin.summarizeTender("tender.pdf", document, "We need a webshop built in 6 months")
	if err != nil {
		t.Fatal(err)
	}

	if res.Summary != "tender asks for a webshop, vendor1 ltd fits" {
		t.Fatalf("invalid summary %v", res.Summary)
	}
	if res.UploadId == "" || res.Path == "" {
		t.Fatalf("invalid upload info %v", res)
	}

	// The document is persisted under the returned path.
	stored, err := env.storage.Read(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer stored.Close()

	if len(env.llm.histories) != 1 || !strings.Contains(env.llm.histories[0][0].Content, "webshop") {
		t.Fatalf("tender text should be passed to the assistant: %v", env.llm.histories)
	}

	_, err = admin.summarizeTender("tender.docx", document, "We need a webshop built in 6 months")
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("only pdf tenders are accepted: %v", err)
	}
}
