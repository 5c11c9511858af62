// Package server exposes the survey files of a data directory over HTTP.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"example.com/kmgate/internal/common"
	"example.com/kmgate/internal/indexcache"
	"example.com/kmgate/internal/kmall"
	"example.com/kmgate/internal/kmfile"
)

// Options configures server creation.
type Options struct {
	// DataDir holds the .kmall and .kmwcd files served.
	DataDir string
	// Cache is used when opening files so repeated queries skip the scan.
	Cache indexcache.Options
	// Journal, when set, is consulted for the indexing status of files.
	Journal *common.Journal
	// WorkDir receives rendered reports. Empty means a fresh directory
	// under the system temp dir.
	WorkDir string
}

// Server answers queries about the survey files in one directory.
type Server struct {
	dataDir string
	workDir string
	ownWork bool
	cache   indexcache.Options
	journal *common.Journal
}

var errBadFileName = errors.New("bad file name")

func NewServer(opts Options) (*Server, error) {
	if strings.TrimSpace(opts.DataDir) == "" {
		return nil, errors.New("data directory is required")
	}
	info, err := os.Stat(opts.DataDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", opts.DataDir)
	}
	s := &Server{dataDir: opts.DataDir, cache: opts.Cache, journal: opts.Journal, workDir: opts.WorkDir}
	if s.workDir == "" {
		if s.workDir, err = os.MkdirTemp("", "kmalld-"); err != nil {
			return nil, err
		}
		s.ownWork = true
	} else if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return nil, err
	}
	return s, nil
}

// Close removes the temporary state of the server.
func (s *Server) Close() error {
	if s == nil || !s.ownWork {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

// resolveFile maps a file name from a request to a survey file inside the
// data directory. Only plain names are accepted.
func (s *Server) resolveFile(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", errBadFileName, name)
	}
	if _, err := kmfile.PrimaryTagFor(name); err != nil {
		return "", err
	}
	path := filepath.Join(s.dataDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Server) open(name string) (*kmfile.File, error) {
	path, err := s.resolveFile(name)
	if err != nil {
		return nil, err
	}
	f, _, err := kmfile.OpenCached(path, s.cache, kmfile.Quiet())
	return f, err
}

// statusFor maps an error to the HTTP status reported for it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, errBadFileName), errors.Is(err, kmall.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, kmall.ErrUnsupportedSplitPing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
