// Package clipboard reads and writes the system clipboard through the
// platform's command-line tools.
package clipboard

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrClipboardUnavailable is returned when no clipboard tool is installed.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// tool is a clipboard command with its copy and paste arguments.
type tool struct {
	name  string
	copy  []string
	paste []string
}

// tools lists the supported clipboard commands per OS, in preference order.
var tools = map[string][]tool{
	"darwin": {
		{name: "pbcopy"},
	},
	"linux": {
		{name: "wl-copy"},
		{name: "xclip", copy: []string{"-selection", "clipboard"}, paste: []string{"-selection", "clipboard", "-o"}},
		{name: "xsel", copy: []string{"--clipboard", "--input"}, paste: []string{"--clipboard", "--output"}},
	},
}

// pasteNames maps copy-only tools to their paste counterpart.
var pasteNames = map[string]string{
	"pbcopy":  "pbpaste",
	"wl-copy": "wl-paste",
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// find returns the first installed tool for goos.
func find(goos string) (tool, error) {
	for _, t := range tools[goos] {
		if _, err := lookPath(t.name); err == nil {
			return t, nil
		}
	}
	return tool{}, ErrClipboardUnavailable
}

// pasteCommand returns the command name and arguments that print the
// clipboard for t.
func (t tool) pasteCommand() (string, []string) {
	if name, ok := pasteNames[t.name]; ok {
		return name, nil
	}
	return t.name, t.paste
}

// Copy places text on the clipboard.
func Copy(text string) error {
	t, err := find(runtime.GOOS)
	if err != nil {
		return err
	}
	cmd := exec.Command(t.name, t.copy...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", t.name, err, bytes.TrimSpace(out))
	}
	return nil
}

// Paste returns the clipboard's text.
func Paste() (string, error) {
	t, err := find(runtime.GOOS)
	if err != nil {
		return "", err
	}
	name, args := t.pasteCommand()
	var stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return string(out), nil
}
