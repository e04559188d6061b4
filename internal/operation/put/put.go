// Package put provides the operation that uploads a file.
package put

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lftpcmd/lftpcmd/internal/operation"
	"github.com/lftpcmd/lftpcmd/internal/staging"
)

// DefaultExtension is appended to generated filenames when the event names
// no extension.
const DefaultExtension = ".txt"

var now = time.Now

func init() {
	operation.Register(&Operation{})
}

// Operation uploads a local file, or the message payload, to
// workdir/filename.
type Operation struct{}

// Name returns the operation identifier.
func (o *Operation) Name() string {
	return "put"
}

// Run uploads the event's local file if one is set. Otherwise the payload
// content is staged in a temp file, uploaded and the temp file removed.
// Without either, Run fails with operation.ErrNothingToWrite before any
// I/O.
//
// An empty filename is replaced with the current unix time in milliseconds
// followed by the event's file extension.
func (o *Operation) Run(ctx context.Context, env operation.Env, ev operation.Event, msg operation.Message) (operation.Message, error) {
	filename := ev.Filename
	if filename == "" {
		filename = GenerateName(now(), ev.FileExtension)
	}
	path := operation.RemotePath(ev.Workdir, filename)

	reply := func() operation.Message {
		return operation.Reply(msg, ev.Workdir, operation.FileResult(filename, path))
	}

	if ev.LocalFilename != "" {
		env.Debugf("putting %s directly", ev.LocalFilename)
		if _, err := operation.Exec(ctx, env, o.Name(), env.Session().Put(ev.LocalFilename, path)); err != nil {
			return nil, err
		}
		return reply(), nil
	}

	content, err := Content(msg["payload"])
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, operation.ErrNothingToWrite
	}

	env.Debugf("putting %d bytes through a temp file", len(content))
	err = staging.WithTempFile(ctx, content, func(tmp string) error {
		_, err := operation.Exec(ctx, env, o.Name(), env.Session().Put(tmp, path))
		return err
	})
	if err != nil {
		return nil, err
	}

	return reply(), nil
}

// GenerateName returns a filename derived from t.
func GenerateName(t time.Time, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	return strconv.FormatInt(t.UnixMilli(), 10) + ext
}

// Content returns the bytes to upload for a payload: payload.filedata when
// it is a non-empty string or byte slice, otherwise the JSON encoding of the
// whole payload. A nil or empty-string payload has no content.
func Content(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
	case map[string]any:
		switch data := v["filedata"].(type) {
		case string:
			if data != "" {
				return []byte(data), nil
			}
		case []byte:
			if len(data) > 0 {
				return data, nil
			}
		}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return b, nil
}

// Ensure Operation implements the operation.Operation interface.
var _ operation.Operation = (*Operation)(nil)
