package guestagent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmsandbox/orchestrator/internal/wire"
	"github.com/vmsandbox/orchestrator/pkg/types"
)

// maxReadSize is the 10 MiB cap on read_file.
const maxReadSize = 10 * 1024 * 1024

func (s *Server) handleReadFile(req wire.Request) wire.Response {
	var p wire.PathParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return wire.Failure(req.ID, wire.CodeInvalidParams, "invalid params: "+err.Error())
	}
	content, err := readFile(p.Path)
	if err != nil {
		return wire.Failure(req.ID, wire.CodeInternalError, err.Error())
	}
	return wire.Success(req.ID, wire.ReadFileResult{Content: content})
}

func (s *Server) handleWriteFile(req wire.Request) wire.Response {
	var p wire.WriteFileParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return wire.Failure(req.ID, wire.CodeInvalidParams, "invalid params: "+err.Error())
	}
	if err := writeFile(p.Path, p.Content); err != nil {
		return wire.Failure(req.ID, wire.CodeInternalError, err.Error())
	}
	return wire.Success(req.ID, wire.WriteFileResult{Success: true})
}

func (s *Server) handleListDir(req wire.Request) wire.Response {
	var p wire.PathParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return wire.Failure(req.ID, wire.CodeInvalidParams, "invalid params: "+err.Error())
	}
	entries, err := listDir(p.Path)
	if err != nil {
		return wire.Failure(req.ID, wire.CodeInternalError, err.Error())
	}
	wireEntries := make([]wire.FileEntryWire, len(entries))
	for i, e := range entries {
		wireEntries[i] = wire.FileEntryWire{Name: e.Name, IsDir: e.IsDir, Size: e.Size}
	}
	return wire.Success(req.ID, wire.ListDirResult{Entries: wireEntries})
}

// readFile rejects files whose size exceeds maxReadSize before reading
// them into memory.
func readFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > maxReadSize {
		return "", &fileTooLargeError{path: path, size: info.Size()}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// writeFile creates missing parent directories and overwrites existing
// content.
func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// listDir returns entries sorted ascending by name; directories report
// size 0.
func listDir(path string) ([]types.FileEntry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	entries := make([]types.FileEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		size := int64(0)
		if !info.IsDir() {
			size = info.Size()
		}
		entries = append(entries, types.FileEntry{
			Name:  de.Name(),
			IsDir: de.IsDir(),
			Size:  size,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

type fileTooLargeError struct {
	path string
	size int64
}

func (e *fileTooLargeError) Error() string {
	return "file too large: " + e.path
}
