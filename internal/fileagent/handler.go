// Package fileagent implements the JSON-over-text-frame file-service
// described in §6: list_remote, rename, delete, create_folder, upload_file,
// download_file, paste_file, edit_file, save_file, zip_file, unzip_file,
// open_file, get_agent_details, and get_installed_software.
package fileagent

import (
	"archive/zip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/northwind-rmm/agent/internal/logging"
)

var fileAgentLog = logging.L("fileagent")

// Request is one decoded file-service command.
type Request struct {
	Type      string   `json:"type"`
	RequestID string   `json:"request_id,omitempty"`
	Path      string   `json:"path,omitempty"`
	NewPath   string   `json:"newPath,omitempty"`
	Dest      string   `json:"dest,omitempty"`
	Content   string   `json:"content,omitempty"` // base64 for binary, raw for edit/save
	Paths     []string `json:"paths,omitempty"`
}

// Reply is the JSON response shape: type ends in "_result", or is "error"
// with a message.
type Reply struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Handler dispatches file-service JSON requests against the local
// filesystem. Every path is resolved under Root to block traversal outside
// the agent's configured working area.
type Handler struct {
	Root      string
	Inventory *Inventory
}

func NewHandler(root string, inv *Inventory) *Handler {
	return &Handler{Root: root, Inventory: inv}
}

// HandleMessage decodes one JSON text-frame body and returns the encoded
// reply. File-command errors are captured and returned as a JSON error
// reply (§7) — they never propagate as a Go error that would terminate the
// connection; HandleMessage only returns an error for malformed JSON.
func (h *Handler) HandleMessage(body []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("fileagent: malformed request: %w", err)
	}

	reply := h.dispatch(req)
	out, err := json.Marshal(reply)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Handler) dispatch(req Request) Reply {
	switch req.Type {
	case "list_remote":
		return h.listRemote(req)
	case "rename":
		return h.rename(req)
	case "delete":
		return h.delete(req)
	case "create_folder":
		return h.createFolder(req)
	case "upload_file":
		return h.uploadFile(req)
	case "download_file":
		return h.downloadFile(req)
	case "paste_file":
		return h.pasteFile(req)
	case "edit_file", "save_file":
		return h.saveFile(req)
	case "zip_file":
		return h.zipFile(req)
	case "unzip_file":
		return h.unzipFile(req)
	case "open_file":
		return h.openFile(req)
	case "get_agent_details":
		return h.getAgentDetails(req)
	case "get_installed_software":
		return h.getInstalledSoftware(req)
	default:
		return h.errorReply(req, fmt.Errorf("unknown command: %s", req.Type))
	}
}

func (h *Handler) errorReply(req Request, err error) Reply {
	fileAgentLog.Warn("file command failed", "type", req.Type, "error", err)
	return Reply{Type: "error", RequestID: req.RequestID, Message: err.Error()}
}

func (h *Handler) resultReply(req Request, data any) Reply {
	return Reply{Type: req.Type + "_result", RequestID: req.RequestID, Data: data}
}

// resolve joins a client-supplied relative path under Root, rejecting any
// attempt to escape it via "..".
func (h *Handler) resolve(rel string) (string, error) {
	root := filepath.Clean(h.Root)
	full := filepath.Join(root, rel)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root: %s", rel)
	}
	return full, nil
}

type fileEntry struct {
	Name    string `json:"name"`
	IsDir   bool   `json:"isDir"`
	SizeB   int64  `json:"size"`
	ModUnix int64  `json:"modified"`
}

func (h *Handler) listRemote(req Request) Reply {
	full, err := h.resolve(req.Path)
	if err != nil {
		return h.errorReply(req, err)
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return h.errorReply(req, err)
	}
	out := make([]fileEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, fileEntry{Name: e.Name(), IsDir: e.IsDir(), SizeB: info.Size(), ModUnix: info.ModTime().Unix()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return h.resultReply(req, out)
}

func (h *Handler) rename(req Request) Reply {
	src, err := h.resolve(req.Path)
	if err != nil {
		return h.errorReply(req, err)
	}
	dst, err := h.resolve(req.NewPath)
	if err != nil {
		return h.errorReply(req, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return h.errorReply(req, err)
	}
	return h.resultReply(req, nil)
}

func (h *Handler) delete(req Request) Reply {
	full, err := h.resolve(req.Path)
	if err != nil {
		return h.errorReply(req, err)
	}
	if err := os.RemoveAll(full); err != nil {
		return h.errorReply(req, err)
	}
	return h.resultReply(req, nil)
}

func (h *Handler) createFolder(req Request) Reply {
	full, err := h.resolve(req.Path)
	if err != nil {
		return h.errorReply(req, err)
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return h.errorReply(req, err)
	}
	return h.resultReply(req, nil)
}

func (h *Handler) uploadFile(req Request) Reply {
	full, err := h.resolve(req.Path)
	if err != nil {
		return h.errorReply(req, err)
	}
	data, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		return h.errorReply(req, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return h.errorReply(req, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return h.errorReply(req, err)
	}
	return h.resultReply(req, nil)
}

func (h *Handler) downloadFile(req Request) Reply {
	full, err := h.resolve(req.Path)
	if err != nil {
		return h.errorReply(req, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return h.errorReply(req, err)
	}
	return h.resultReply(req, base64.StdEncoding.EncodeToString(data))
}

func (h *Handler) pasteFile(req Request) Reply {
	src, err := h.resolve(req.Path)
	if err != nil {
		return h.errorReply(req, err)
	}
	dst, err := h.resolve(req.Dest)
	if err != nil {
		return h.errorReply(req, err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return h.errorReply(req, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return h.errorReply(req, err)
	}
	return h.resultReply(req, nil)
}

func (h *Handler) saveFile(req Request) Reply {
	full, err := h.resolve(req.Path)
	if err != nil {
		return h.errorReply(req, err)
	}
	if err := os.WriteFile(full, []byte(req.Content), 0o644); err != nil {
		return h.errorReply(req, err)
	}
	return h.resultReply(req, nil)
}

func (h *Handler) zipFile(req Request) Reply {
	src, err := h.resolve(req.Path)
	if err != nil {
		return h.errorReply(req, err)
	}
	dst, err := h.resolve(req.Dest)
	if err != nil {
		return h.errorReply(req, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return h.errorReply(req, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	walkErr := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(rel)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if cerr := zw.Close(); walkErr == nil {
		walkErr = cerr
	}
	if walkErr != nil {
		return h.errorReply(req, walkErr)
	}
	return h.resultReply(req, nil)
}

func (h *Handler) unzipFile(req Request) Reply {
	src, err := h.resolve(req.Path)
	if err != nil {
		return h.errorReply(req, err)
	}
	dst, err := h.resolve(req.Dest)
	if err != nil {
		return h.errorReply(req, err)
	}

	r, err := zip.OpenReader(src)
	if err != nil {
		return h.errorReply(req, err)
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(dst, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(dst)) {
			return h.errorReply(req, fmt.Errorf("zip entry escapes destination: %s", f.Name))
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return h.errorReply(req, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return h.errorReply(req, err)
		}
		rc, err := f.Open()
		if err != nil {
			return h.errorReply(req, err)
		}
		out, err := os.Create(target)
		if err != nil {
			rc.Close()
			return h.errorReply(req, err)
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return h.errorReply(req, copyErr)
		}
	}
	return h.resultReply(req, nil)
}

func (h *Handler) openFile(req Request) Reply {
	full, err := h.resolve(req.Path)
	if err != nil {
		return h.errorReply(req, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return h.errorReply(req, err)
	}
	return h.resultReply(req, base64.StdEncoding.EncodeToString(data))
}

func (h *Handler) getAgentDetails(req Request) Reply {
	if h.Inventory == nil {
		return h.errorReply(req, fmt.Errorf("inventory unavailable"))
	}
	details, err := h.Inventory.AgentDetails()
	if err != nil {
		return h.errorReply(req, err)
	}
	return h.resultReply(req, details)
}

func (h *Handler) getInstalledSoftware(req Request) Reply {
	if h.Inventory == nil {
		return h.errorReply(req, fmt.Errorf("inventory unavailable"))
	}
	software, err := h.Inventory.InstalledSoftware()
	if err != nil {
		return h.errorReply(req, err)
	}
	return h.resultReply(req, software)
}
