package guestagent

import (
	"bytes"
	"encoding/json"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/vmsandbox/orchestrator/internal/wire"
	"github.com/vmsandbox/orchestrator/pkg/types"
)

// maxOutputSize is the 1 MiB cap on captured stdout/stderr.
const maxOutputSize = 1024 * 1024

const truncationSuffix = "\n... [output truncated]"

func (s *Server) handleExec(req wire.Request) wire.Response {
	var p wire.ExecParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return wire.Failure(req.ID, wire.CodeInvalidParams, "invalid params: "+err.Error())
	}
	result := execCommand(p.Cmd)
	return wire.Success(req.ID, result)
}

func (s *Server) handleExecCode(req wire.Request) wire.Response {
	var p wire.ExecParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return wire.Failure(req.ID, wire.CodeInvalidParams, "invalid params: "+err.Error())
	}
	result := execCode(p.Lang, p.Code)
	return wire.Success(req.ID, result)
}

// execCommand runs cmd via the default shell interpreter.
func execCommand(cmd string) types.ExecResult {
	return runCaptured(exec.Command("sh", "-c", cmd))
}

// execCode selects an interpreter by case-insensitive language tag and
// runs code through it.
func execCode(lang, code string) types.ExecResult {
	var program string
	var args []string

	switch strings.ToLower(lang) {
	case "python", "python3":
		program, args = "python3", []string{"-c", code}
	case "node", "javascript", "js":
		program, args = "node", []string{"-e", code}
	case "bash":
		program, args = "bash", []string{"-c", code}
	case "sh":
		program, args = "sh", []string{"-c", code}
	default:
		return types.ErrorResult("unsupported language: " + lang)
	}

	return runCaptured(exec.Command(program, args...))
}

// runCaptured executes cmd, captures stdout/stderr, and truncates each to
// maxOutputSize on a valid UTF-8 boundary.
func runCaptured(cmd *exec.Cmd) types.ExecResult {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return types.ExecResult{
				ExitCode: exitErr.ExitCode(),
				Stdout:   truncateOutput(stdout.String()),
				Stderr:   truncateOutput(stderr.String()),
			}
		}
		// Process could not be spawned at all.
		return types.ErrorResult(err.Error())
	}

	return types.ExecResult{
		ExitCode: 0,
		Stdout:   truncateOutput(stdout.String()),
		Stderr:   truncateOutput(stderr.String()),
	}
}

// truncateOutput caps s to maxOutputSize bytes on a valid UTF-8 rune
// boundary and appends the truncation suffix.
func truncateOutput(s string) string {
	if len(s) <= maxOutputSize {
		return s
	}
	end := maxOutputSize
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end] + truncationSuffix
}
