package transform

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// External delegates the PNG transform to ImageMagick and produces the same
// canvas as Pixel. -sample is used rather than -filter point -resize, which
// still weights neighbouring pixels on enlargement.
type External struct {
	command string
	logger  *slog.Logger
}

func NewExternal(command string) *External {
	if command == "" {
		command = "magick"
	}
	return &External{
		command: command,
		logger:  slog.Default().With("component", "external-transformer", "command", command),
	}
}

func externalArgs() []string {
	content := strconv.Itoa(ContentSize)
	return []string{
		"png:-",
		"-background", "black",
		"-alpha", "remove",
		"-sample", content + "x" + content,
		"-gravity", "center",
		"-extent", content + "x" + content,
		"-bordercolor", "black",
		"-border", strconv.Itoa(BorderSize),
		"-strip",
		"-define", "png:exclude-chunks=date,time",
		"png:-",
	}
}

func (e *External) Transform(ctx context.Context, data []byte, format Format) ([]byte, error) {
	if format != PNG {
		return nil, unsupported(format)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.command, externalArgs()...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		e.logger.Error("transform command failed", "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("running %s: %w", e.command, err)
	}
	return stdout.Bytes(), nil
}

// Available reports whether the command can be found on PATH.
func (e *External) Available() bool {
	_, err := exec.LookPath(e.command)
	return err == nil
}
