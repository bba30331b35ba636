// Package stream runs the ffmpeg process that turns the greenhouse camera
// into an HLS playlist.
package stream

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const PlaylistName = "stream.m3u8"

type Config struct {
	Binary       string // ffmpeg executable
	Device       string // v4l2 camera device
	HLSDir       string
	ReadyTimeout time.Duration // how long to wait for the playlist
	StopTimeout  time.Duration // grace period between SIGTERM and SIGKILL
	KillStale    bool          // pkill leftover captures before starting
}

// Manager starts and stops a single capture process. It is safe for
// concurrent use.
type Manager struct {
	cfg Config
	log *zap.SugaredLogger

	// Command builds the capture process. Tests replace it.
	Command func(playlist string) *exec.Cmd

	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	stopping chan struct{} // closed once the process being stopped has exited
	ready    bool
}

func NewManager(cfg Config, log *zap.SugaredLogger) *Manager {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 15 * time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	m := &Manager{cfg: cfg, log: log}
	m.Command = func(playlist string) *exec.Cmd {
		return exec.Command(cfg.Binary, Args(cfg.Device, playlist)...)
	}
	return m
}

// Args is the ffmpeg command line for an MJPEG v4l2 camera encoded to
// low-latency H.264 HLS with 2s segments.
func Args(device, playlist string) []string {
	return []string{
		"-f", "v4l2",
		"-framerate", "30",
		"-input_format", "mjpeg",
		"-video_size", "640x480",
		"-i", device,
		"-vcodec", "libx264",
		"-preset", "veryfast",
		"-tune", "zerolatency",
		"-r", "30",
		"-g", "60",
		"-sc_threshold", "0",
		"-x264-params", "keyint=60:scenecut=0",
		"-an",
		"-f", "hls",
		"-hls_time", "2",
		"-hls_list_size", "20",
		"-hls_flags", "delete_segments",
		playlist,
	}
}

func (m *Manager) Playlist() string {
	return filepath.Join(m.cfg.HLSDir, PlaylistName)
}

// Start launches the capture unless one is already running and blocks until
// the playlist appears, the timeout passes, or ctx is done. Hitting the
// timeout still marks the stream ready; players retry the playlist.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	for m.cmd == nil && m.stopping != nil {
		stopping := m.stopping
		m.mu.Unlock()
		select {
		case <-stopping:
		case <-ctx.Done():
			return ctx.Err()
		}
		m.mu.Lock()
		if m.stopping == stopping {
			m.stopping = nil
		}
	}
	if m.cmd != nil {
		m.mu.Unlock()
		m.log.Debug("ffmpeg already running")
		return nil
	}
	if m.cfg.KillStale {
		m.killStale()
	}
	if err := os.MkdirAll(m.cfg.HLSDir, 0o755); err != nil {
		m.mu.Unlock()
		return errors.Wrap(err, "creating hls directory")
	}
	playlist := m.Playlist()
	os.Remove(playlist)

	cmd := m.Command(playlist)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		m.mu.Unlock()
		return errors.Wrap(err, "starting ffmpeg")
	}
	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		close(done)
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.cmd == cmd {
			m.log.Warnw("ffmpeg exited", "err", err)
			m.cmd, m.done, m.ready = nil, nil, false
		}
	}()
	m.cmd, m.done, m.ready = cmd, done, false
	m.mu.Unlock()
	m.log.Infow("ffmpeg started", "pid", cmd.Process.Pid, "playlist", playlist)

	err := waitForFile(ctx, playlist, m.cfg.ReadyTimeout, done)
	if errors.Is(err, errTimeout) {
		m.log.Warnw("timed out waiting for playlist", "playlist", playlist, "timeout", m.cfg.ReadyTimeout.String())
		err = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if errors.Is(err, errExited) {
		if m.cmd == cmd {
			m.cmd, m.done = nil, nil
		}
		return err
	}
	if m.cmd != cmd {
		return errors.New("ffmpeg was stopped before it became ready")
	}
	if err != nil {
		return err
	}
	m.ready = true
	return nil
}

var (
	errTimeout = errors.New("timed out")
	errExited  = errors.New("ffmpeg exited before the playlist was written")
)

func waitForFile(ctx context.Context, path string, timeout time.Duration, exited <-chan struct{}) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return errExited
		case <-deadline.C:
			return errTimeout
		case <-poll.C:
		}
	}
}

// Stop terminates the capture: SIGTERM first, SIGKILL if it is still
// running after the stop timeout. The lock is only held to detach the
// process, so Ready and Running answer while it shuts down.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.cmd == nil {
		m.mu.Unlock()
		m.log.Debug("no ffmpeg process running")
		return nil
	}
	cmd, done := m.cmd, m.done
	m.cmd, m.done, m.ready = nil, nil, false
	m.stopping = done
	m.mu.Unlock()

	m.log.Infow("stopping ffmpeg", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		select {
		case <-done:
			return nil
		default:
			return errors.Wrap(err, "signalling ffmpeg")
		}
	}
	select {
	case <-done:
		m.log.Info("ffmpeg terminated")
	case <-time.After(m.cfg.StopTimeout):
		m.log.Warn("ffmpeg did not exit in time, killing")
		if err := cmd.Process.Kill(); err != nil {
			return errors.Wrap(err, "killing ffmpeg")
		}
		<-done
	}
	return nil
}

func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cmd != nil
}

// killStale removes captures left over from a previous run of the server.
func (m *Manager) killStale() {
	pattern := filepath.Base(m.cfg.Binary) + " -f v4l2"
	out, err := exec.Command("pkill", "-f", pattern).CombinedOutput()
	if err != nil {
		// pkill exits 1 when nothing matched
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return
		}
		m.log.Warnw("could not kill stale ffmpeg", "err", err, "output", string(out))
		return
	}
	m.log.Info("killed stale ffmpeg processes")
}
