package monitor

import (
	"errors"
	"fmt"
	"os"

	"github.com/randomizedcoder/go-whep-stats/internal/recording"
)

// StartRecording opens a recording session.
func (m *Monitor) StartRecording() (recording.Session, error) {
	session, err := m.recorder.Start()
	if err != nil {
		return recording.Session{}, err
	}
	m.collector.SetRecording(true)
	return session, nil
}

// StopRecording closes the active session and exports it to the record
// directory. It returns the path written.
//
// An export that fails is kept as pending and retried by the next
// StopRecording, by RetryExports, and at shutdown.
func (m *Monitor) StopRecording() (string, error) {
	art, err := m.recorder.Stop()
	if err != nil {
		return "", err
	}
	m.collector.SetRecording(false)

	if _, err := m.RetryExports(); err != nil {
		m.logger.Warn("pending_export_failed", "error", err)
	}
	return m.export(art, m.config.RecordDir)
}

// export saves art into dir. On failure art is queued as pending.
func (m *Monitor) export(art *recording.Artifact, dir string) (string, error) {
	path, err := art.Save(dir, m.config.SourceLabel, m.config.DestLabel,
		m.config.Extension, m.config.DelimiterRune())
	if err != nil {
		m.mu.Lock()
		m.pending = append(m.pending, art)
		m.mu.Unlock()
		m.logger.Error("recording_export_failed", "session_id", art.ID, "dir", dir, "error", err)
		return "", fmt.Errorf("export recording %s: %w", art.ID, err)
	}

	m.mu.Lock()
	m.saved = append(m.saved, savedRecording{path: path, artifact: art})
	m.mu.Unlock()

	m.logger.Info("recording_saved",
		"session_id", art.ID,
		"path", path,
		"rows", art.Rows(),
	)
	return path, nil
}

// RetryExports tries every pending export again in the record directory and
// returns the paths written. Exports that fail again stay pending.
func (m *Monitor) RetryExports() ([]string, error) {
	return m.retryExports(m.config.RecordDir)
}

func (m *Monitor) retryExports(dir string) ([]string, error) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	var (
		paths []string
		errs  []error
	)
	for _, art := range pending {
		path, err := m.export(art, dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

// flushExports runs at shutdown: the record directory first, then the
// fallback directory for anything still pending.
func (m *Monitor) flushExports() error {
	if _, err := m.RetryExports(); err == nil {
		return nil
	}
	if m.fallbackDir == "" || m.fallbackDir == m.config.RecordDir {
		return m.pendingError()
	}
	paths, _ := m.retryExports(m.fallbackDir)
	for _, p := range paths {
		m.logger.Warn("recording_saved_to_fallback", "path", p)
	}
	return m.pendingError()
}

func (m *Monitor) pendingError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	return fmt.Errorf("%d recording(s) could not be exported", len(m.pending))
}

// Recording reports whether a recording session is active.
func (m *Monitor) Recording() bool {
	return m.recorder.Active()
}

// ToggleRecording starts a recording, or stops and exports the active one.
func (m *Monitor) ToggleRecording() (string, error) {
	if m.recorder.Active() {
		path, err := m.StopRecording()
		if err != nil {
			return "", err
		}
		return "recording saved to " + path, nil
	}
	session, err := m.StartRecording()
	if err != nil {
		return "", err
	}
	return "recording " + session.ID + " started", nil
}

type savedRecording struct {
	path     string
	artifact *recording.Artifact
}

// Saved returns the paths of every export written so far.
func (m *Monitor) Saved() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, len(m.saved))
	for i, s := range m.saved {
		paths[i] = s.path
	}
	return paths
}

// Pending returns the number of recordings waiting to be exported.
func (m *Monitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// defaultFallbackDir is where shutdown writes exports the record directory
// refused.
func defaultFallbackDir() string {
	return os.TempDir()
}
