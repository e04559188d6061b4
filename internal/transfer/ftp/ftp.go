// Package ftp provides a native FTP/FTPS transfer backend built on
// github.com/jlaffaye/ftp.
package ftp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jlaffaye/ftp"
	"golang.org/x/crypto/pkcs12"

	"github.com/lftpcmd/lftpcmd/internal/listing"
	"github.com/lftpcmd/lftpcmd/internal/profile"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

// ErrChmodUnsupported is returned for chmod, which the FTP library does not
// expose.
var ErrChmodUnsupported = errors.New("chmod is not supported over ftp")

// sessionCache is shared by all connections so TLS sessions can be resumed
// on data channels and across chains.
var sessionCache = tls.NewLRUClientSessionCache(64)

// serverConn is the subset of *ftp.ServerConn the backend uses.
type serverConn interface {
	Login(user, password string) error
	Type(t ftp.TransferType) error
	ChangeDir(dir string) error
	List(dir string) ([]*ftp.Entry, error)
	Retr(file string) (io.ReadCloser, error)
	Stor(file string, r io.Reader) error
	Delete(file string) error
	RemoveDir(dir string) error
	RemoveDirRecur(dir string) error
	Rename(from, to string) error
	MakeDir(dir string) error
	Quit() error
}

// DialFunc opens a logged-out control connection.
type DialFunc func(ctx context.Context, p profile.Profile) (serverConn, error)

// Backend executes chains over a native FTP connection.
type Backend struct {
	dial DialFunc
}

// Option configures the ftp backend.
type Option func(*Backend)

// WithDialer replaces the function used to connect.
func WithDialer(d DialFunc) Option {
	return func(b *Backend) {
		b.dial = d
	}
}

func init() {
	transfer.RegisterBackend(profile.BackendFTP, func() transfer.Backend { return New() })
}

// New creates a new ftp backend.
func New(opts ...Option) *Backend {
	b := &Backend{dial: dial}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Execute connects, logs in and interprets the chain. Connection and login
// failures are returned as errors; step failures are reported in the Result.
func (b *Backend) Execute(ctx context.Context, p profile.Profile, cmds []transfer.Command) (_ *transfer.Result, err error) {
	conn, err := b.dial(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", p.Target(), err)
	}
	defer func() {
		if qerr := conn.Quit(); qerr != nil && err != nil {
			err = multierror.Append(err, qerr)
		}
	}()

	user := p.Username
	if user == "" {
		user = "anonymous"
	}
	if err := conn.Login(user, p.Password); err != nil {
		return nil, fmt.Errorf("failed to login to %s: %w", p, err)
	}

	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		return nil, fmt.Errorf("failed to set binary mode: %w", err)
	}

	fs := &fileSystem{conn: conn}
	if p.Cwd != "" {
		if err := fs.ChangeDir(p.Cwd); err != nil {
			return nil, fmt.Errorf("failed to change to %s: %w", p.Cwd, err)
		}
	}

	return transfer.Interpret(ctx, fs, cmds), nil
}

// String returns a description of the backend.
func (b *Backend) String() string {
	return "ftp"
}

func dial(ctx context.Context, p profile.Profile) (serverConn, error) {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(time.Duration(p.Timeout) * time.Second),
	}

	if p.Protocol == "ftps" || p.TLS.Implicit {
		cfg, err := TLSConfig(p)
		if err != nil {
			return nil, err
		}
		if p.TLS.Implicit {
			opts = append(opts, ftp.DialWithTLS(cfg))
		} else {
			opts = append(opts, ftp.DialWithExplicitTLS(cfg))
		}
	}

	conn, err := ftp.Dial(p.Address(), opts...)
	if err != nil {
		return nil, err
	}
	return serverConnAdapter{conn}, nil
}

// TLSConfig builds the client TLS configuration for p, loading the PKCS#12
// client certificate if one is configured.
func TLSConfig(p profile.Profile) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName:         p.Host,
		InsecureSkipVerify: p.TLS.Insecure, //nolint:gosec // opt-in per server
		MinVersion:         tls.VersionTLS12,
		ClientSessionCache: sessionCache,
	}

	if p.TLS.ClientCert != "" {
		cert, err := loadPFX(p.TLS.ClientCert, p.TLS.ClientCertPassword)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

func loadPFX(certPath, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read client certificate %s: %w", certPath, err)
	}

	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to decode client certificate %s: %w", certPath, err)
	}

	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}, nil
}

// serverConnAdapter narrows Retr to an io.ReadCloser so fakes can stand in
// for *ftp.ServerConn.
type serverConnAdapter struct {
	*ftp.ServerConn
}

func (a serverConnAdapter) Retr(file string) (io.ReadCloser, error) {
	return a.ServerConn.Retr(file)
}

// fileSystem adapts a control connection to transfer.FileSystem.
type fileSystem struct {
	conn serverConn
}

func (f *fileSystem) ChangeDir(dir string) error {
	return f.conn.ChangeDir(dir)
}

func (f *fileSystem) List(dir string) ([]listing.Entry, error) {
	raw, err := f.conn.List(dir)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]listing.Entry, 0, len(raw))
	for _, e := range raw {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		entries = append(entries, toEntry(e, now))
	}
	return entries, nil
}

func toEntry(e *ftp.Entry, now time.Time) listing.Entry {
	entry := listing.Entry{
		Name:   e.Name,
		Type:   listing.TypeFile,
		Size:   int64(e.Size),
		Target: e.Target,
	}
	switch e.Type {
	case ftp.EntryTypeFolder:
		entry.Type = listing.TypeDir
	case ftp.EntryTypeLink:
		entry.Type = listing.TypeLink
	}
	if !e.Time.IsZero() {
		entry.Date = listing.Date(e.Time, now)
	}
	return entry
}

func (f *fileSystem) Retrieve(file string, w io.Writer) (err error) {
	r, err := f.conn.Retr(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(w, r)
	return err
}

func (f *fileSystem) Store(file string, r io.Reader) error {
	return f.conn.Stor(file, r)
}

func (f *fileSystem) Delete(file string) error {
	return f.conn.Delete(file)
}

func (f *fileSystem) RemoveDir(dir string) error {
	return f.conn.RemoveDir(dir)
}

// RemoveAll removes a directory tree, or a single file when p is not a
// directory. The type of p comes from a listing of its parent, so a
// symbolic link is deleted instead of entered.
func (f *fileSystem) RemoveAll(p string) error {
	p = path.Clean(p)
	parent := path.Dir(p)
	if parent == "." {
		parent = ""
	}

	entries, err := f.conn.List(parent)
	if err != nil {
		return err
	}

	name := path.Base(p)
	for _, e := range entries {
		if path.Base(e.Name) != name {
			continue
		}
		if e.Type == ftp.EntryTypeFolder {
			return f.conn.RemoveDirRecur(p)
		}
		return f.conn.Delete(p)
	}
	return fmt.Errorf("%s: %w", p, os.ErrNotExist)
}

func (f *fileSystem) Rename(from, to string) error {
	return f.conn.Rename(from, to)
}

func (f *fileSystem) MakeDir(dir string) error {
	return f.conn.MakeDir(path.Clean(dir))
}

func (f *fileSystem) Chmod(string, os.FileMode) error {
	return ErrChmodUnsupported
}

func (f *fileSystem) Close() error {
	return f.conn.Quit()
}

// Ensure Backend implements the transfer.Backend interface.
var _ transfer.Backend = (*Backend)(nil)

// Ensure fileSystem implements the transfer.FileSystem interface.
var _ transfer.FileSystem = (*fileSystem)(nil)
