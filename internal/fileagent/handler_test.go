package fileagent

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	root := t.TempDir()
	return NewHandler(root, nil), root
}

func decodeReply(t *testing.T, raw []byte) Reply {
	t.Helper()
	var r Reply
	if err := json.Unmarshal(raw, &r); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	return r
}

func TestHandler_CreateFolderAndListRemote(t *testing.T) {
	h, _ := newTestHandler(t)

	req, _ := json.Marshal(Request{Type: "create_folder", Path: "sub", RequestID: "r1"})
	raw, err := h.HandleMessage(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply := decodeReply(t, raw)
	if reply.Type != "create_folder_result" || reply.RequestID != "r1" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	req, _ = json.Marshal(Request{Type: "list_remote", Path: "."})
	raw, err = h.HandleMessage(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply = decodeReply(t, raw)
	if reply.Type != "list_remote_result" {
		t.Fatalf("expected list_remote_result, got %+v", reply)
	}
}

func TestHandler_UploadThenDownloadRoundTrips(t *testing.T) {
	h, _ := newTestHandler(t)
	payload := []byte("hello world")
	encoded := base64.StdEncoding.EncodeToString(payload)

	req, _ := json.Marshal(Request{Type: "upload_file", Path: "notes.txt", Content: encoded})
	if _, err := h.HandleMessage(req); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	req, _ = json.Marshal(Request{Type: "download_file", Path: "notes.txt"})
	raw, err := h.HandleMessage(req)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	reply := decodeReply(t, raw)
	got, ok := reply.Data.(string)
	if !ok {
		t.Fatalf("expected string data, got %T", reply.Data)
	}
	decoded, err := base64.StdEncoding.DecodeString(got)
	if err != nil || string(decoded) != string(payload) {
		t.Fatalf("round-trip mismatch: %q", decoded)
	}
}

func TestHandler_PathEscapeIsRejected(t *testing.T) {
	h, _ := newTestHandler(t)
	req, _ := json.Marshal(Request{Type: "delete", Path: "../../etc/passwd"})
	raw, err := h.HandleMessage(req)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	reply := decodeReply(t, raw)
	if reply.Type != "error" {
		t.Fatalf("expected error reply for escaping path, got %+v", reply)
	}
}

func TestHandler_UnknownCommandIsError(t *testing.T) {
	h, _ := newTestHandler(t)
	req, _ := json.Marshal(Request{Type: "not_a_real_command"})
	raw, err := h.HandleMessage(req)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	reply := decodeReply(t, raw)
	if reply.Type != "error" {
		t.Fatalf("expected error reply, got %+v", reply)
	}
}

func TestHandler_RenameMovesFile(t *testing.T) {
	h, root := newTestHandler(t)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	req, _ := json.Marshal(Request{Type: "rename", Path: "a.txt", NewPath: "b.txt"})
	if _, err := h.HandleMessage(req); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "b.txt")); err != nil {
		t.Fatalf("expected b.txt to exist: %v", err)
	}
}

func TestHandler_ZipThenUnzipRoundTrips(t *testing.T) {
	h, root := newTestHandler(t)
	if err := os.MkdirAll(filepath.Join(root, "srcdir"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "srcdir", "f.txt"), []byte("zippable"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	req, _ := json.Marshal(Request{Type: "zip_file", Path: "srcdir", Dest: "out.zip"})
	raw, err := h.HandleMessage(req)
	if err != nil {
		t.Fatalf("zip error: %v", err)
	}
	if decodeReply(t, raw).Type != "zip_file_result" {
		t.Fatalf("expected zip_file_result")
	}

	req, _ = json.Marshal(Request{Type: "unzip_file", Path: "out.zip", Dest: "extracted"})
	raw, err = h.HandleMessage(req)
	if err != nil {
		t.Fatalf("unzip error: %v", err)
	}
	if decodeReply(t, raw).Type != "unzip_file_result" {
		t.Fatalf("expected unzip_file_result")
	}

	data, err := os.ReadFile(filepath.Join(root, "extracted", "f.txt"))
	if err != nil || string(data) != "zippable" {
		t.Fatalf("round-trip content mismatch: %v %q", err, data)
	}
}

func TestHandler_GetAgentDetailsWithoutInventoryIsError(t *testing.T) {
	h, _ := newTestHandler(t)
	req, _ := json.Marshal(Request{Type: "get_agent_details"})
	raw, err := h.HandleMessage(req)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if decodeReply(t, raw).Type != "error" {
		t.Fatalf("expected error reply when Inventory is nil")
	}
}

func TestHandler_MalformedJSONReturnsError(t *testing.T) {
	h, _ := newTestHandler(t)
	if _, err := h.HandleMessage([]byte("{not json")); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}
