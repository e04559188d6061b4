package ftp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lftpcmd/lftpcmd/internal/listing"
	"github.com/lftpcmd/lftpcmd/internal/profile"
	"github.com/lftpcmd/lftpcmd/internal/transfer"
)

// fakeConn is an in-memory FTP server keyed by path.
type fakeConn struct {
	user, pass string
	loginErr   error
	cwd        string
	files      map[string]string
	dirs       map[string][]*ftp.Entry
	calls      []string
	quit       bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		cwd:   "/",
		files: map[string]string{},
		dirs:  map[string][]*ftp.Entry{},
	}
}

func (c *fakeConn) Login(user, pass string) error {
	c.user, c.pass = user, pass
	return c.loginErr
}

func (c *fakeConn) Type(ftp.TransferType) error { return nil }

func (c *fakeConn) ChangeDir(dir string) error {
	c.calls = append(c.calls, "CWD "+dir)
	if _, ok := c.dirs[dir]; !ok {
		return errors.New("550 No such directory")
	}
	c.cwd = dir
	return nil
}

func (c *fakeConn) List(dir string) ([]*ftp.Entry, error) {
	if dir == "" {
		dir = c.cwd
	}
	return c.dirs[dir], nil
}

func (c *fakeConn) Retr(file string) (io.ReadCloser, error) {
	data, ok := c.files[file]
	if !ok {
		return nil, errors.New("550 Failed to open file")
	}
	return io.NopCloser(bytes.NewBufferString(data)), nil
}

func (c *fakeConn) Stor(file string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.files[file] = string(data)
	return nil
}

func (c *fakeConn) Delete(file string) error {
	c.calls = append(c.calls, "DELE "+file)
	if _, ok := c.files[file]; !ok {
		return errors.New("550 Delete operation failed")
	}
	delete(c.files, file)
	return nil
}

func (c *fakeConn) RemoveDir(dir string) error {
	c.calls = append(c.calls, "RMD "+dir)
	return nil
}

func (c *fakeConn) RemoveDirRecur(dir string) error {
	c.calls = append(c.calls, "RMD -r "+dir)
	if _, ok := c.dirs[dir]; !ok {
		return errors.New("550 not a directory")
	}
	delete(c.dirs, dir)
	return nil
}

func (c *fakeConn) Rename(from, to string) error {
	c.calls = append(c.calls, "RNFR "+from+" RNTO "+to)
	return nil
}

func (c *fakeConn) MakeDir(dir string) error {
	c.calls = append(c.calls, "MKD "+dir)
	return nil
}

func (c *fakeConn) Quit() error {
	c.quit = true
	return nil
}

func backendFor(conn *fakeConn) *Backend {
	return New(WithDialer(func(context.Context, profile.Profile) (serverConn, error) {
		return conn, nil
	}))
}

func TestExecuteListAndCat(t *testing.T) {
	conn := newFakeConn()
	conn.dirs["/in"] = []*ftp.Entry{
		{Name: ".", Type: ftp.EntryTypeFolder},
		{Name: "a.txt", Type: ftp.EntryTypeFile, Size: 5, Time: time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Name: "sub", Type: ftp.EntryTypeFolder},
	}
	conn.files["/in/a.txt"] = "hello"

	p := profile.Assemble(profile.Raw{}, &profile.Credentials{Username: "u", Password: "p"})
	s := transfer.Open(backendFor(conn), p)

	res, err := s.Cd("/in").Ls().Exec(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Error)

	entries := listing.Parse(res.Data)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, int64(5), entries[0].Size)
	assert.Equal(t, listing.TypeDir, entries[1].Type)

	assert.Equal(t, "u", conn.user)
	assert.Equal(t, "p", conn.pass)
	assert.True(t, conn.quit)

	res, err = s.Cat("/in/a.txt").Exec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Data)
}

func TestExecuteAnonymousLogin(t *testing.T) {
	conn := newFakeConn()
	conn.dirs["/"] = nil

	_, err := transfer.Open(backendFor(conn), profile.Assemble(profile.Raw{}, nil)).Ls().Exec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "anonymous", conn.user)
}

func TestExecuteLoginFailure(t *testing.T) {
	conn := newFakeConn()
	conn.loginErr = errors.New("530 Login incorrect")

	_, err := transfer.Open(backendFor(conn), profile.Assemble(profile.Raw{}, nil)).Ls().Exec(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "530")
	assert.True(t, conn.quit)
}

func TestExecuteDialFailure(t *testing.T) {
	b := New(WithDialer(func(context.Context, profile.Profile) (serverConn, error) {
		return nil, errors.New("connection refused")
	}))

	_, err := transfer.Open(b, profile.Assemble(profile.Raw{}, nil)).Ls().Exec(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp://localhost:21")
}

func TestExecuteProfileCwd(t *testing.T) {
	conn := newFakeConn()
	conn.dirs["/home/u"] = nil

	p := profile.Assemble(profile.Raw{Cwd: "/home/u"}, nil)
	_, err := transfer.Open(backendFor(conn), p).Ls().Exec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CWD /home/u"}, conn.calls)
}

func TestExecutePutAndRemove(t *testing.T) {
	conn := newFakeConn()
	conn.dirs["/"] = []*ftp.Entry{{Name: "tree", Type: ftp.EntryTypeFolder}}
	conn.dirs["/tree"] = nil

	local := filepath.Join(t.TempDir(), "up.txt")
	require.NoError(t, os.WriteFile(local, []byte("payload"), 0o644))

	s := transfer.Open(backendFor(conn), profile.Assemble(profile.Raw{}, nil))
	res, err := s.Put(local, "/out/up.txt").Raw("rm -r -f /tree").Mv("/out/up.txt", "/out/done.txt").Exec(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Error)

	assert.Equal(t, "payload", conn.files["/out/up.txt"])
	assert.Contains(t, conn.calls, "RMD -r /tree")
	assert.Contains(t, conn.calls, "RNFR /out/up.txt RNTO /out/done.txt")
}

func TestExecuteStepFailure(t *testing.T) {
	conn := newFakeConn()

	res, err := transfer.Open(backendFor(conn), profile.Assemble(profile.Raw{}, nil)).Rm("/missing").Exec(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.Error, "error")
	assert.Contains(t, res.Error, "550")
	assert.Equal(t, 1, res.ExitCode)
}

func TestRemoveAllByEntryType(t *testing.T) {
	conn := newFakeConn()
	conn.dirs["/"] = []*ftp.Entry{
		{Name: "f.txt", Type: ftp.EntryTypeFile},
		{Name: "work", Type: ftp.EntryTypeFolder},
	}
	conn.dirs["/work"] = []*ftp.Entry{
		{Name: "link", Type: ftp.EntryTypeLink, Target: "/precious"},
		{Name: "sub", Type: ftp.EntryTypeFolder},
	}
	conn.dirs["/work/sub"] = nil
	conn.dirs["/precious"] = []*ftp.Entry{{Name: "keep.txt", Type: ftp.EntryTypeFile}}
	conn.files["/f.txt"] = "x"
	conn.files["/work/link"] = "-> /precious"
	conn.files["/precious/keep.txt"] = "keep"

	fs := &fileSystem{conn: conn}

	require.NoError(t, fs.RemoveAll("/f.txt"))
	assert.NotContains(t, conn.files, "/f.txt")

	require.NoError(t, fs.RemoveAll("/work/link/"))
	assert.NotContains(t, conn.files, "/work/link")
	assert.Contains(t, conn.dirs, "/precious")
	assert.Contains(t, conn.files, "/precious/keep.txt")

	require.NoError(t, fs.RemoveAll("/work/sub"))
	assert.NotContains(t, conn.dirs, "/work/sub")

	assert.Equal(t, []string{"DELE /f.txt", "DELE /work/link", "RMD -r /work/sub"}, conn.calls)

	err := fs.RemoveAll("/nothing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestChmodUnsupported(t *testing.T) {
	conn := newFakeConn()

	res, err := transfer.Open(backendFor(conn), profile.Assemble(profile.Raw{}, nil)).Raw("chmod 644 f").Exec(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.Error, ErrChmodUnsupported.Error())
}

func TestToEntry(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	e := toEntry(&ftp.Entry{Name: "l", Type: ftp.EntryTypeLink, Target: "t"}, now)
	assert.Equal(t, listing.TypeLink, e.Type)
	assert.Equal(t, "t", e.Target)
	assert.Empty(t, e.Date)

	e = toEntry(&ftp.Entry{Name: "f", Size: 3, Time: time.Date(2024, 5, 20, 10, 30, 0, 0, time.UTC)}, now)
	assert.Equal(t, "May 20 10:30", e.Date)
}

func TestTLSConfig(t *testing.T) {
	p := profile.Assemble(profile.Raw{
		Host:     "secure.example.com",
		Protocol: "ftps",
		TLS:      profile.TLS{Insecure: true},
	}, nil)

	cfg, err := TLSConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "secure.example.com", cfg.ServerName)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.NotNil(t, cfg.ClientSessionCache)
	assert.Empty(t, cfg.Certificates)
}

func TestTLSConfigMissingClientCert(t *testing.T) {
	p := profile.Assemble(profile.Raw{
		TLS: profile.TLS{ClientCert: filepath.Join(t.TempDir(), "missing.pfx")},
	}, nil)

	_, err := TLSConfig(p)
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "ftp", New().String())
}
