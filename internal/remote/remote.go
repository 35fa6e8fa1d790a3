// Package remote mirrors the canonical "best model" artifact pair to and
// from a remote FTP store. It is used only for the one distinguished
// best-model slot, never for arbitrary paths, and is strictly best-effort:
// callers convert any failure into OutcomeUnavailable and carry on with
// local storage, which is authoritative.
package remote

import (
	"bytes"
	"io"
	"net"
	"strings"
	"time"

	"github.com/chesszero/chesszero/internal/config"
	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
)

// Fixed file names inside the remote directory, overwritten on each push.
const (
	ConfigFileName = "model_best_config.json"
	WeightFileName = "model_best_weight.h5"
)

// Outcome reports what happened to a remote synchronization attempt, so
// callers and tests can tell "skipped" from "attempted and failed" even
// though neither blocks the local operation.
type Outcome int

const (
	// OutcomeSkipped means no synchronization was attempted: the model is
	// not distributed, or the artifact pair is not the best-model slot.
	OutcomeSkipped Outcome = iota
	// OutcomeOK means the remote store was reached and both files were
	// transferred.
	OutcomeOK
	// OutcomeUnavailable means the attempt failed (transport, auth or
	// protocol) and the caller fell back to local storage.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeOK:
		return "ok"
	case OutcomeUnavailable:
		return "remote_unavailable"
	}
	return "invalid_outcome"
}

// Mirror is the capability the model layer consumes: fetch or push the
// best-model artifact pair as raw bytes.
type Mirror interface {
	// Fetch retrieves the (architecture, weights) pair from the store.
	Fetch() (configBytes, weightBytes []byte, err error)

	// Push overwrites the (architecture, weights) pair on the store.
	Push(configBytes, weightBytes []byte) error
}

// FTPMirror implements Mirror over a login-authenticated FTP session.
type FTPMirror struct {
	Server     string // host or host:port; port 21 is assumed if absent.
	User       string
	Password   string
	RemotePath string

	// DialTimeout bounds the connection attempt. Zero means DefaultTimeout.
	DialTimeout time.Duration
}

// DefaultTimeout for FTP dialing. The transfer itself has no explicit
// timeout beyond the transport's own defaults.
const DefaultTimeout = 30 * time.Second

var _ Mirror = (*FTPMirror)(nil)

// NewFTPMirror builds a mirror from the distributed-store resource settings.
func NewFTPMirror(res config.ResourceConfig) *FTPMirror {
	return &FTPMirror{
		Server:     res.FTPServer,
		User:       res.FTPUser,
		Password:   res.FTPPassword,
		RemotePath: res.FTPRemotePath,
	}
}

// connect dials, authenticates, and changes into the remote directory.
func (m *FTPMirror) connect() (*ftp.ServerConn, error) {
	addr := m.Server
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, "21")
	}
	timeout := m.DialTimeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to model store %s", addr)
	}
	if err = conn.Login(m.User, m.Password); err != nil {
		_ = conn.Quit()
		return nil, errors.Wrapf(err, "failed to authenticate to model store %s", addr)
	}
	if m.RemotePath != "" {
		if err = conn.ChangeDir(m.RemotePath); err != nil {
			_ = conn.Quit()
			return nil, errors.Wrapf(err, "failed to change to remote path %q", m.RemotePath)
		}
	}
	return conn, nil
}

// Fetch implements Mirror.
func (m *FTPMirror) Fetch() (configBytes, weightBytes []byte, err error) {
	conn, err := m.connect()
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = conn.Quit() }()

	if configBytes, err = retrieve(conn, ConfigFileName); err != nil {
		return nil, nil, err
	}
	if weightBytes, err = retrieve(conn, WeightFileName); err != nil {
		return nil, nil, err
	}
	return configBytes, weightBytes, nil
}

// Push implements Mirror.
func (m *FTPMirror) Push(configBytes, weightBytes []byte) error {
	conn, err := m.connect()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Quit() }()

	if err = conn.Stor(ConfigFileName, bytes.NewReader(configBytes)); err != nil {
		return errors.Wrapf(err, "failed to store %s", ConfigFileName)
	}
	if err = conn.Stor(WeightFileName, bytes.NewReader(weightBytes)); err != nil {
		return errors.Wrapf(err, "failed to store %s", WeightFileName)
	}
	return nil
}

func retrieve(conn *ftp.ServerConn, name string) ([]byte, error) {
	response, err := conn.Retr(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to retrieve %s", name)
	}
	defer func() { _ = response.Close() }()
	contents, err := io.ReadAll(response)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	return contents, nil
}
