// Package localstore mirrors registered profiles into a JSON array on local
// disk. One goroutine owns the file; every append is a read, append and
// atomic replace, so concurrent registrations never lose records and a crash
// never leaves a torn file.
package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/janisto/identity-gateway/internal/platform/logging"
)

var (
	// ErrLocalPersistence matches every *PersistenceError.
	ErrLocalPersistence = errors.New("local profile store failure")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("local profile store closed")
)

// PersistenceError reports which step of a file update failed.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("local profile store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrLocalPersistence }

// UserProfile is one element of the file's array.
type UserProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

type opKind int

const (
	opAppend opKind = iota
	opList
)

type request struct {
	ctx     context.Context
	op      opKind
	profile UserProfile
	reply   chan result
}

type result struct {
	profiles []UserProfile
	err      error
}

// Store serializes all access to one file.
type Store struct {
	path string

	reqs      chan request
	quit      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

// Open starts the writer for path. The file is created on first append.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, &PersistenceError{Op: "open", Path: path, Err: errors.New("empty path")}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Path: path, Err: err}
	}
	s := &Store{
		path:   abs,
		reqs:   make(chan request),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Path is the absolute file path.
func (s *Store) Path() string { return s.path }

// Append adds p to the end of the array. It returns once the new file is in
// place. ctx only bounds the wait for the writer; once the writer has taken
// the append, Append reports its real outcome.
func (s *Store) Append(ctx context.Context, p UserProfile) error {
	_, err := s.do(ctx, request{op: opAppend, profile: p})
	return err
}

// List returns the current array.
func (s *Store) List(ctx context.Context) ([]UserProfile, error) {
	return s.do(ctx, request{op: opList})
}

// Close stops the writer after any in-flight request. It is safe to call
// more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.exited
	return nil
}

func (s *Store) do(ctx context.Context, req request) ([]UserProfile, error) {
	req.ctx = ctx
	req.reply = make(chan result, 1)

	select {
	case s.reqs <- req:
	case <-s.quit:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	res := <-req.reply
	return res.profiles, res.err
}

func (s *Store) run() {
	defer close(s.exited)
	for {
		select {
		case <-s.quit:
			return
		case req := <-s.reqs:
			req.reply <- s.handle(req)
		}
	}
}

func (s *Store) handle(req request) result {
	profiles, err := s.read()
	if err != nil {
		logging.LogError(req.ctx, "local profile store read failed", err, zap.String("path", s.path))
		return result{err: err}
	}
	if req.op == opList {
		return result{profiles: profiles}
	}

	profiles = append(profiles, req.profile)
	if err := s.write(profiles); err != nil {
		logging.LogError(req.ctx, "local profile store write failed", err, zap.String("path", s.path))
		return result{err: err}
	}
	return result{}
}

// read treats a missing or blank file as an empty array. Anything that is not
// a JSON array is an error; the file is left untouched.
func (s *Store) read() ([]UserProfile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []UserProfile{}, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Path: s.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []UserProfile{}, nil
	}
	var profiles []UserProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, &PersistenceError{Op: "decode", Path: s.path, Err: err}
	}
	if profiles == nil {
		profiles = []UserProfile{}
	}
	return profiles, nil
}

func (s *Store) write(profiles []UserProfile) error {
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &PersistenceError{Op: "create temp", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &PersistenceError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &PersistenceError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PersistenceError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &PersistenceError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return &PersistenceError{Op: "rename", Path: s.path, Err: err}
	}
	committed = true

	// Persist the rename itself. Not every platform supports syncing a directory.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
