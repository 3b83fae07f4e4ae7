package slb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// shell is the interpreter used to run mapper/folder command lines, per
// spec §6 ("executed through a POSIX shell with -c").
const shell = "/bin/sh"

// terminate sends SIGTERM to a child's entire process group. Used only
// during best-effort shutdown after another stage of the pipeline has
// already failed; errors are not actionable and intentionally ignored,
// since the child may already have exited on its own.
func terminate(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = unix.Kill(-cmd.Process.Pid, unix.SIGTERM)
}

// terminateErr adapts terminate to the signature exec.Cmd.Cancel wants,
// so that context cancellation (a user abort) signals the whole child
// process group rather than just the immediate child.
func terminateErr(cmd *exec.Cmd) error {
	terminate(cmd)
	return nil
}

// Mapper is one running mapper child process. Its stdout is captured as
// a live byte stream (the sharder reads it directly) rather than
// redirected to a file, since mapper output feeds straight into the
// sharding stage.
type Mapper struct {
	Index  int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	Stdout io.ReadCloser
}

// StartMapper spawns a mapper child through the shell, in its own
// process group. The chunk's bytes are copied to its stdin by the
// caller (see Feed); StartMapper only wires up the process.
func StartMapper(ctx context.Context, index int, cmdline string) (*Mapper, error) {
	cmd := exec.CommandContext(ctx, shell, "-c", cmdline)
	cmd.Cancel = func() error { return terminateErr(cmd) }
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "mapper %d: creating stdin pipe", index)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "mapper %d: creating stdout pipe", index)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "mapper %d: spawning %q", index, cmdline)
	}
	return &Mapper{Index: index, cmd: cmd, stdin: stdin, Stdout: stdout}, nil
}

// Feed copies exactly the chunk's bytes to the mapper's stdin and closes
// it, signaling EOF to the child. bufSize sizes the buffered reader
// wrapping the chunk (per spec §6's --bufsize); values <= 0 fall back to
// bufio's own default.
func (m *Mapper) Feed(chunk FileChunk, bufSize int) error {
	r, err := chunk.Open()
	if err != nil {
		m.stdin.Close()
		return err
	}
	defer r.Close()
	var src io.Reader = r
	if bufSize > 0 {
		src = bufio.NewReaderSize(r, bufSize)
	}
	_, copyErr := io.Copy(m.stdin, src)
	closeErr := m.stdin.Close()
	if copyErr != nil {
		return errors.Wrapf(copyErr, "mapper %d: feeding chunk", m.Index)
	}
	return closeErr
}

// Wait blocks until the mapper child exits. The caller must have fully
// drained Stdout first, or this can deadlock against a child blocked
// writing to a full pipe.
func (m *Mapper) Wait() error {
	if err := m.cmd.Wait(); err != nil {
		return ChildFailed{Role: RoleMapper, Index: m.Index, State: err.Error()}
	}
	return nil
}

// Kill sends SIGTERM to the mapper's process group; best-effort, used
// during shutdown after a sibling failure.
func (m *Mapper) Kill() { terminate(m.cmd) }

// Folder is one running folder child process. Its stdout is redirected
// directly to its shard's output file (an *os.File passed to exec.Cmd),
// so there is no Go-side pipe to drain and no risk of a full-stdout-pipe
// deadlock while its stdin is still being fed; only its stdin is a pipe,
// driven by the shard queue.
type Folder struct {
	Index  int
	cmd    *exec.Cmd
	Stdin  io.WriteCloser
	out    *os.File
	Output string
}

// StartFolder spawns a folder child through the shell, in its own
// process group, with its stdout redirected to a freshly created (or
// truncated) file at outputPath.
func StartFolder(ctx context.Context, index int, cmdline, outputPath string) (*Folder, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, errors.Wrapf(err, "folder %d: preparing output directory", index)
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "folder %d: creating output file %s", index, outputPath)
	}

	cmd := exec.CommandContext(ctx, shell, "-c", cmdline)
	cmd.Cancel = func() error { return terminateErr(cmd) }
	cmd.Stderr = os.Stderr
	cmd.Stdout = out
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		out.Close()
		return nil, errors.Wrapf(err, "folder %d: creating stdin pipe", index)
	}
	if err := cmd.Start(); err != nil {
		out.Close()
		return nil, errors.Wrapf(err, "folder %d: spawning %q", index, cmdline)
	}
	return &Folder{Index: index, cmd: cmd, Stdin: stdin, out: out, Output: outputPath}, nil
}

// Wait blocks until the folder child exits and closes its output file.
// The caller must have already closed Stdin.
func (f *Folder) Wait() error {
	waitErr := f.cmd.Wait()
	closeErr := f.out.Close()
	if waitErr != nil {
		return ChildFailed{Role: RoleFolder, Index: f.Index, State: waitErr.Error()}
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "folder %d: closing output file", f.Index)
	}
	return nil
}

// Kill sends SIGTERM to the folder's process group; best-effort, used
// during shutdown after a sibling failure.
func (f *Folder) Kill() { terminate(f.cmd) }

// OutputPath returns the output file path for shard index i of n total
// shards: basename(outprefix) ++ zero-padded decimal index, placed in
// dirname(outprefix), per spec §6.
func OutputPath(outprefix string, i, n int) string {
	width := decimalWidth(n)
	return outprefix + fmt.Sprintf("%0*d", width, i)
}

// decimalWidth returns ceil(log10(n)), at least 1, computed with integer
// arithmetic to avoid floating-point edge cases at exact powers of ten.
func decimalWidth(n int) int {
	width := 1
	for p := int64(10); p < int64(n); p *= 10 {
		width++
	}
	return width
}

// ensureDir makes sure the directory component of path exists.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
