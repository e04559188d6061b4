// Package sftp provides a native SFTP transfer backend built on
// github.com/pkg/sftp and golang.org/x/crypto/ssh.
package sftp

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/lftpcmd/lftpcmd/internal/listing"
	"github.com/lftpcmd/lftpcmd/internal/profile"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

// client is the subset of *sftp.Client the backend uses.
type client interface {
	Getwd() (string, error)
	Stat(p string) (os.FileInfo, error)
	Lstat(p string) (os.FileInfo, error)
	ReadDir(p string) ([]os.FileInfo, error)
	Open(p string) (io.ReadCloser, error)
	Create(p string) (io.WriteCloser, error)
	Remove(p string) error
	RemoveDirectory(p string) error
	Rename(from, to string) error
	Mkdir(p string) error
	Chmod(p string, mode os.FileMode) error
	Close() error
}

// DialFunc opens an authenticated sftp client.
type DialFunc func(ctx context.Context, p profile.Profile) (client, error)

// Backend executes chains over a native SFTP session.
type Backend struct {
	dial       DialFunc
	knownHosts string
}

// Option configures the sftp backend.
type Option func(*Backend)

// WithDialer replaces the function used to connect.
func WithDialer(d DialFunc) Option {
	return func(b *Backend) {
		b.dial = d
	}
}

// WithKnownHosts sets the known_hosts file used to verify servers when the
// profile does not auto-confirm host keys.
func WithKnownHosts(path string) Option {
	return func(b *Backend) {
		b.knownHosts = path
	}
}

func init() {
	transfer.RegisterBackend(profile.BackendSFTP, func() transfer.Backend { return New() })
}

// New creates a new sftp backend.
func New(opts ...Option) *Backend {
	b := &Backend{}
	if home, err := os.UserHomeDir(); err == nil {
		b.knownHosts = filepath.Join(home, ".ssh", "known_hosts")
	}
	b.dial = b.dialSSH

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Execute connects and interprets the chain. Connection and authentication
// failures are returned as errors; step failures are reported in the Result.
func (b *Backend) Execute(ctx context.Context, p profile.Profile, cmds []transfer.Command) (*transfer.Result, error) {
	c, err := b.dial(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", p.Target(), err)
	}

	fs, err := newFileSystem(c)
	if err != nil {
		c.Close()
		return nil, err
	}
	defer fs.Close()

	if p.Cwd != "" {
		if err := fs.ChangeDir(p.Cwd); err != nil {
			return nil, fmt.Errorf("failed to change to %s: %w", p.Cwd, err)
		}
	}

	return transfer.Interpret(ctx, fs, cmds), nil
}

// String returns a description of the backend.
func (b *Backend) String() string {
	return "sftp"
}

// ClientConfig builds the ssh configuration for p.
func (b *Backend) ClientConfig(p profile.Profile) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if p.SSHKey.Required {
		key, err := os.ReadFile(p.SSHKey.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ssh key %s: %w", p.SSHKey.Path, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if p.Password != "" {
		auth = append(auth, ssh.Password(p.Password))
	}

	hostKey := ssh.InsecureIgnoreHostKey() //nolint:gosec // auto-confirm opt-in
	if !p.AutoConfirm {
		cb, err := knownhosts.New(b.knownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %s: %w", b.knownHosts, err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            p.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         time.Duration(p.Timeout) * time.Second,
	}, nil
}

func (b *Backend) dialSSH(ctx context.Context, p profile.Profile) (client, error) {
	cfg, err := b.ClientConfig(p)
	if err != nil {
		return nil, err
	}

	d := net.Dialer{Timeout: cfg.Timeout}
	netConn, err := d.DialContext(ctx, "tcp", p.Address())
	if err != nil {
		return nil, err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, p.Address(), cfg)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sc, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("failed to start sftp subsystem: %w", err)
	}

	return &clientAdapter{Client: sc, ssh: sshClient}, nil
}

// clientAdapter narrows *sftp.File to io interfaces and closes the
// underlying ssh connection together with the sftp client.
type clientAdapter struct {
	*sftp.Client
	ssh *ssh.Client
}

func (a *clientAdapter) Open(p string) (io.ReadCloser, error) {
	return a.Client.Open(p)
}

func (a *clientAdapter) Create(p string) (io.WriteCloser, error) {
	return a.Client.Create(p)
}

func (a *clientAdapter) Close() error {
	var errs *multierror.Error
	if err := a.Client.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := a.ssh.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// fileSystem adapts an sftp client to transfer.FileSystem. SFTP has no
// server side working directory, so it is tracked here.
type fileSystem struct {
	client client
	cwd    string
}

func newFileSystem(c client) (*fileSystem, error) {
	wd, err := c.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return &fileSystem{client: c, cwd: wd}, nil
}

func (f *fileSystem) resolve(p string) string {
	if p == "" {
		return f.cwd
	}
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(f.cwd, p)
}

func (f *fileSystem) ChangeDir(dir string) error {
	target := f.resolve(dir)

	fi, err := f.client.Stat(target)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s: not a directory", target)
	}

	f.cwd = target
	return nil
}

func (f *fileSystem) List(dir string) ([]listing.Entry, error) {
	infos, err := f.client.ReadDir(f.resolve(dir))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]listing.Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, toEntry(fi, now))
	}
	return entries, nil
}

func toEntry(fi os.FileInfo, now time.Time) listing.Entry {
	e := listing.Entry{
		Name:        fi.Name(),
		Type:        listing.TypeFile,
		Size:        fi.Size(),
		Date:        listing.Date(fi.ModTime(), now),
		Permissions: fi.Mode().String(),
	}

	switch {
	case fi.IsDir():
		e.Type = listing.TypeDir
	case fi.Mode()&os.ModeSymlink != 0:
		e.Type = listing.TypeLink
	}

	if st, ok := fi.Sys().(*sftp.FileStat); ok {
		e.Owner = strconv.FormatUint(uint64(st.UID), 10)
		e.Group = strconv.FormatUint(uint64(st.GID), 10)
	}

	return e
}

func (f *fileSystem) Retrieve(file string, w io.Writer) (err error) {
	r, err := f.client.Open(f.resolve(file))
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
	w, err := f.client.Create(f.resolve(file))
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (f *fileSystem) Delete(file string) error {
	return f.client.Remove(f.resolve(file))
}

func (f *fileSystem) RemoveDir(dir string) error {
	return f.client.RemoveDirectory(f.resolve(dir))
}

// RemoveAll removes p and, if it is a directory, everything below it.
// Symbolic links are removed themselves and never followed. Removal
// continues past failures; all failures are returned.
func (f *fileSystem) RemoveAll(p string) error {
	return f.removeAll(f.resolve(p))
}

func (f *fileSystem) removeAll(p string) error {
	fi, err := f.client.Lstat(p)
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink != 0 || !fi.IsDir() {
		return f.client.Remove(p)
	}

	children, err := f.client.ReadDir(p)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for _, child := range children {
		if err := f.removeAll(path.Join(p, child.Name())); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := f.client.RemoveDirectory(p); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

func (f *fileSystem) Rename(from, to string) error {
	return f.client.Rename(f.resolve(from), f.resolve(to))
}

func (f *fileSystem) MakeDir(dir string) error {
	return f.client.Mkdir(f.resolve(dir))
}

func (f *fileSystem) Chmod(p string, mode os.FileMode) error {
	return f.client.Chmod(f.resolve(p), mode)
}

func (f *fileSystem) Close() error {
	return f.client.Close()
}

// Ensure Backend implements the transfer.Backend interface.
var _ transfer.Backend = (*Backend)(nil)

// Ensure fileSystem implements the transfer.FileSystem interface.
var _ transfer.FileSystem = (*fileSystem)(nil)
