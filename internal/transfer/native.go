package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lftpcmd/lftpcmd/internal/listing"
)

// FileSystem is the set of remote primitives a protocol library offers.
// Native backends implement it and let Interpret run the chain.
type FileSystem interface {
	ChangeDir(dir string) error
	List(dir string) ([]listing.Entry, error)
	Retrieve(file string, w io.Writer) error
	Store(file string, r io.Reader) error
	Delete(file string) error
	RemoveDir(dir string) error
	RemoveAll(p string) error
	Rename(from, to string) error
	MakeDir(dir string) error
	Chmod(p string, mode os.FileMode) error
	Close() error
}

// StepError describes a failed step of a natively interpreted chain.
type StepError struct {
	Verb string
	Args []string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s: error: %v", e.Verb, strings.Join(e.Args, " "), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Interpret runs cmds against fs the way lftp would: output goes to
// Result.Data and step failures to Result.Error. Interpretation stops at the
// first failing step. Closing fs is left to the caller.
func Interpret(ctx context.Context, fs FileSystem, cmds []Command) *Result {
	var out bytes.Buffer
	result := &Result{}

	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			result.Error = fmt.Sprintf("error: %v", err)
			result.ExitCode = 1
			break
		}

		words, err := Words(cmd)
		if err != nil {
			result.Error = fmt.Sprintf("%s: error: %v", cmd.Op, err)
			result.ExitCode = 1
			break
		}
		if len(words) == 0 {
			continue
		}

		if err := runStep(fs, words[0], words[1:], &out); err != nil {
			result.Error = (&StepError{Verb: words[0], Args: words[1:], Err: err}).Error()
			result.ExitCode = 1
			break
		}
	}

	result.Data = out.String()
	return result
}

func runStep(fs FileSystem, verb string, args []string, out io.Writer) error {
	flags, operands := splitFlags(args)

	switch verb {
	case "cd":
		if len(operands) != 1 {
			return fmt.Errorf("cd requires one directory")
		}
		return fs.ChangeDir(operands[0])

	case "ls", "dir":
		dir := ""
		if len(operands) > 0 {
			dir = operands[0]
		}
		entries, err := fs.List(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintln(out, listing.Format(e))
		}
		return nil

	case "cat", "get":
		if len(operands) == 0 {
			return fmt.Errorf("%s requires a file", verb)
		}
		for _, f := range operands {
			if err := fs.Retrieve(f, out); err != nil {
				return err
			}
		}
		return nil

	case "put":
		return putStep(fs, args)

	case "rm":
		if len(operands) == 0 {
			return fmt.Errorf("rm requires a path")
		}
		recursive := flags["r"] || flags["rf"] || flags["fr"]
		force := flags["f"] || flags["rf"] || flags["fr"]
		return removeStep(fs, operands, recursive, force)

	case "rmdir":
		if len(operands) == 0 {
			return fmt.Errorf("rmdir requires a directory")
		}
		for _, d := range operands {
			if err := fs.RemoveDir(d); err != nil {
				return err
			}
		}
		return nil

	case "mv":
		if len(operands) != 2 {
			return fmt.Errorf("mv requires a source and a destination")
		}
		return fs.Rename(operands[0], operands[1])

	case "mkdir":
		if len(operands) == 0 {
			return fmt.Errorf("mkdir requires a directory")
		}
		for _, d := range operands {
			if err := makeDir(fs, d, flags["p"]); err != nil {
				return err
			}
		}
		return nil

	case "chmod":
		if len(operands) < 2 {
			return fmt.Errorf("chmod requires a mode and a path")
		}
		mode, err := strconv.ParseUint(operands[0], 8, 32)
		if err != nil {
			return fmt.Errorf("invalid mode %q: %w", operands[0], err)
		}
		for _, p := range operands[1:] {
			if err := fs.Chmod(p, os.FileMode(mode)); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unsupported directive %q", verb)
	}
}

// putStep handles "put local [-o remote]".
func putStep(fs FileSystem, args []string) error {
	var local, remote string
	for i := 0; i < len(args); i++ {
		if args[i] == "-o" && i+1 < len(args) {
			remote = args[i+1]
			i++
			continue
		}
		if local == "" {
			local = args[i]
		}
	}
	if local == "" {
		return fmt.Errorf("put requires a local file")
	}
	if remote == "" {
		remote = filepath.Base(local)
	}

	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer f.Close()

	return fs.Store(remote, f)
}

// removeStep removes each path. With force, failures are collected but not
// returned.
func removeStep(fs FileSystem, paths []string, recursive, force bool) error {
	var errs *multierror.Error
	for _, p := range paths {
		var err error
		if recursive {
			err = fs.RemoveAll(p)
		} else {
			err = fs.Delete(p)
		}
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if force {
		return nil
	}
	return errs.ErrorOrNil()
}

// makeDir creates dir; with parents it creates each component and ignores
// failures on the intermediate ones.
func makeDir(fs FileSystem, dir string, parents bool) error {
	if !parents {
		return fs.MakeDir(dir)
	}

	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}
	parts := strings.Split(strings.Trim(dir, "/"), "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		if err := fs.MakeDir(current); err != nil && i == len(parts)-1 {
			if _, statErr := listContains(fs, current); statErr != nil {
				return err
			}
		}
	}
	return nil
}

// listContains checks that p exists by listing its parent.
func listContains(fs FileSystem, p string) (bool, error) {
	entries, err := fs.List(path.Dir(p))
	if err != nil {
		return false, err
	}
	base := path.Base(p)
	for _, e := range entries {
		if e.Name == base {
			return true, nil
		}
	}
	return false, os.ErrNotExist
}

// splitFlags separates single-dash flags from operands. "-rf" is reported
// as the key "rf". "--" ends flag parsing.
func splitFlags(args []string) (map[string]bool, []string) {
	flags := map[string]bool{}
	var operands []string
	done := false
	for _, a := range args {
		if !done && a == "--" {
			done = true
			continue
		}
		if !done && len(a) > 1 && a[0] == '-' && a != "-o" {
			flags[a[1:]] = true
			continue
		}
		operands = append(operands, a)
	}
	return flags, operands
}
