// Package pty implements PtyLinkAnnotator (§4.10): it forks the child CLI
// behind a pseudo-terminal, shuttles bytes in both directions, and
// annotates the child's output with OSC-8 hyperlinks before it reaches the
// user's real terminal.
package pty

import (
	"bytes"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// pollTimeoutMs is the PTY read-loop poll timeout (§4.10 parent loop):
// long enough to avoid busy-spinning, short enough that a partial line
// still gets flushed promptly.
const pollTimeoutMs = 50

// readBufSize is the chunk size read from stdin/master per poll wakeup.
const readBufSize = 4096

// Run execs name/args as a child of a new PTY, annotates its output with
// OSC-8 hyperlinks resolved against cwd, and blocks until the child exits.
// It returns the child's exit code. extraEnv entries are appended to the
// current process's environment for the child.
func Run(name string, args []string, extraEnv []string, cwd string) (int, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), extraEnv...)

	master, err := pty.Start(cmd)
	if err != nil {
		return 0, err
	}
	defer master.Close()

	if err := pty.InheritSize(os.Stdin, master); err != nil {
		log.WithError(err).Debug("pty: initial window size sync failed")
	}

	var oldState *term.State
	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err = term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			log.WithError(err).Warn("pty: failed to set stdin to raw mode")
		}
	}
	restoreTerm := func() {
		if oldState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), oldState)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigCh:
				if err := pty.InheritSize(os.Stdin, master); err != nil {
					log.WithError(err).Debug("pty: window size resync failed")
				}
			case <-done:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	runPumpLoop(os.Stdin, master, os.Stdout, NewHyperlinkDetector(cwd))
	close(done)

	restoreTerm()

	waitErr := cmd.Wait()
	return exitCodeOf(waitErr), nil
}

// runPumpLoop shuttles stdin->master verbatim and master->stdout through
// the line-buffered hyperlink annotator (§4.10 parent loop).
func runPumpLoop(stdin, master, stdout *os.File, detector *HyperlinkDetector) {
	stdinFd := int(stdin.Fd())
	masterFd := int(master.Fd())

	readBuf := make([]byte, readBufSize)
	var lineBuf []byte
	var residual utf8Residual

	flushPartial := func() {
		if len(lineBuf) == 0 {
			return
		}
		stdout.WriteString(detector.EnhanceLine(string(lineBuf)))
		lineBuf = lineBuf[:0]
	}

	for {
		fds := []unix.PollFd{
			{Fd: int32(stdinFd), Events: unix.POLLIN},
			{Fd: int32(masterFd), Events: unix.POLLIN},
		}
		n, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			break
		}
		if n == 0 {
			// Timeout: flush an incomplete line so output doesn't lag
			// behind a slow-writing child.
			flushPartial()
			continue
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			read, err := stdin.Read(readBuf)
			if err != nil || read == 0 {
				break
			}
			if _, err := master.Write(readBuf[:read]); err != nil {
				break
			}
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			read, err := master.Read(readBuf)
			if err != nil || read == 0 {
				flushPartial()
				break
			}
			lineBuf = append(lineBuf, []byte(residual.Feed(readBuf[:read]))...)

			for {
				idx := bytes.IndexByte(lineBuf, '\n')
				if idx < 0 {
					break
				}
				line := string(lineBuf[:idx])
				lineBuf = append(lineBuf[:0], lineBuf[idx+1:]...)
				stdout.WriteString(detector.EnhanceLine(line))
				stdout.WriteString("\n")
			}
		}

		if fds[1].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			flushPartial()
			break
		}
	}
}

// exitCodeOf extracts a child process's exit code from cmd.Wait()'s error,
// matching the original fork loop's waitpid/exit-code propagation.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}
