package pdf

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// SystemViewer opens PDFs with the platform's default application.
const SystemViewer = "system"

// ErrUnsupportedPlatform is returned when no opener is known for the OS.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Opener launches a PDF viewer for a paper's file.
type Opener struct {
	viewer string
	goos   string
	start  func(*exec.Cmd) error
}

// NewOpener creates an opener for viewer. An empty viewer means the system
// default; any other value is run as a command with the path as its argument,
// except for the macOS application names "skim" and "preview".
func NewOpener(viewer string) *Opener {
	if viewer == "" {
		viewer = SystemViewer
	}
	return &Opener{
		viewer: viewer,
		goos:   runtime.GOOS,
		start:  (*exec.Cmd).Start,
	}
}

// Open starts the viewer on path without waiting for it to exit.
func (o *Opener) Open(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PDF file does not exist: %s", path)
		}
		return fmt.Errorf("checking PDF file: %w", err)
	}

	cmd, err := o.command(path)
	if err != nil {
		return err
	}
	if err := o.start(cmd); err != nil {
		return fmt.Errorf("starting %s: %w", o.viewer, err)
	}
	return nil
}

func (o *Opener) command(path string) (*exec.Cmd, error) {
	switch o.goos {
	case "darwin":
		switch o.viewer {
		case "skim":
			return exec.Command("open", "-a", "Skim", path), nil
		case "preview":
			return exec.Command("open", "-a", "Preview", path), nil
		case SystemViewer:
			return exec.Command("open", path), nil
		}
	case "linux", "freebsd", "openbsd":
		if o.viewer == SystemViewer {
			return exec.Command("xdg-open", path), nil
		}
	case "windows":
		if o.viewer == SystemViewer {
			return exec.Command("rundll32", "url.dll,FileProtocolHandler", path), nil
		}
	default:
		if o.viewer == SystemViewer {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, o.goos)
		}
	}
	return exec.Command(o.viewer, path), nil
}
