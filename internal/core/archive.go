package core

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"quarry-packages/internal/shared"
	"quarry-packages/internal/types"
)

// tarballSizeLimit caps the summed uncompressed size of a declared
// tarball package. Deliberately small: declared tarballs carry project
// sources, not data.
const tarballSizeLimit int64 = 1_000_000

// hubSizeLimit caps hub release archives, which are full project
// snapshots served by the package hub.
const hubSizeLimit int64 = 1 << 30

// archiveFetch runs the acquire, checksum, validate and stage pipeline
// for one archive reference and remembers the result, so a metadata
// read and the final install share a single download and extraction.
type archiveFetch struct {
	ref          string
	checksum     string
	subdirectory string
	sizeLimit    int64

	origin     types.ArchiveOrigin
	staging    string
	stagedRoot string
	done       bool
}

// run executes the pipeline once and returns the staged package root.
func (f *archiveFetch) run(ctx context.Context, rt Runtime) (string, error) {
	if f.done {
		return f.stagedRoot, nil
	}
	archivePath, origin, removeArchive, err := acquireArchive(ctx, rt, f.ref)
	if err != nil {
		return "", err
	}
	defer removeArchive()
	f.origin = origin

	if f.checksum != "" {
		if err := verifyChecksum(archivePath, f.checksum); err != nil {
			return "", err
		}
	}
	info, err := inspectArchive(f.ref, archivePath)
	if err != nil {
		return "", err
	}
	if info.totalSize > f.sizeLimit {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("archive %s expands to %d bytes, over the %d byte limit", f.ref, info.totalSize, f.sizeLimit))
	}
	root, err := discoverRoot(f.ref, info, f.subdirectory)
	if err != nil {
		return "", err
	}
	downloads, err := rt.ensureDownloadsDir()
	if err != nil {
		return "", err
	}
	staging, err := stageExtract(f.ref, archivePath, downloads)
	if err != nil {
		return "", err
	}
	f.staging = staging
	f.stagedRoot = filepath.Join(staging, root)
	f.done = true
	log.Ctx(ctx).Debug().
		Str("archive", f.ref).
		Str("origin", string(origin)).
		Str("root", root).
		Msg("archive staged")
	return f.stagedRoot, nil
}

// cleanup removes the staging directory. Safe to call more than once.
func (f *archiveFetch) cleanup() error {
	if f.staging == "" {
		return nil
	}
	err := os.RemoveAll(f.staging)
	f.staging = ""
	f.stagedRoot = ""
	f.done = false
	return err
}

// acquireArchive resolves the archive reference to a local file,
// downloading through the retry budget when it is remote. The returned
// func removes the downloaded temp file; for local references it is a
// no-op, the caller's file is not ours to delete.
func acquireArchive(ctx context.Context, rt Runtime, ref string) (string, types.ArchiveOrigin, func(), error) {
	noop := func() {}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, types.ArchiveOriginLocal, noop, nil
	}
	parsed, err := url.Parse(ref)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", "", noop, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("tarball reference %s is neither an existing file nor an http(s) url", ref))
	}

	downloads, err := rt.ensureDownloadsDir()
	if err != nil {
		return "", "", noop, err
	}
	tmp, err := os.CreateTemp(downloads, "quarry-archive-*.tar.gz")
	if err != nil {
		return "", "", noop, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create download target").
			WithCause(err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	removeArchive := func() { _ = os.Remove(tmpPath) }

	err = withRetry(ctx, downloadAttempts, shared.IsConnection, func() error {
		return rt.Transport.DownloadFile(ctx, ref, tmpPath)
	})
	if err != nil {
		removeArchive()
		if shared.IsConnection(err) {
			return "", "", noop, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("download of %s failed after %d attempts", ref, downloadAttempts)).
				WithCause(err)
		}
		return "", "", noop, err
	}
	return tmpPath, types.ArchiveOriginRemote, removeArchive, nil
}

// verifyChecksum compares the SHA-1 digest of the file at path against
// the declared value. A mismatch is a content-integrity fact, never a
// transient fault, so it is never retried.
func verifyChecksum(archivePath string, declared string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to open %s for checksum", archivePath)).
			WithCause(err)
	}
	defer file.Close()

	digest := sha1.New()
	if _, err := io.Copy(digest, file); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to hash %s", archivePath)).
			WithCause(err)
	}
	actual := hex.EncodeToString(digest.Sum(nil))
	if !strings.EqualFold(actual, strings.TrimSpace(declared)) {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", archivePath, declared, actual))
	}
	return nil
}

type archiveInfo struct {
	totalSize int64
	topDirs   []string
}

// inspectArchive walks the archive once without extracting anything,
// summing declared member sizes and collecting top-level directory
// entries. Directories are inferred from member paths as well, since
// many tars omit explicit directory headers.
func inspectArchive(ref string, archivePath string) (archiveInfo, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return archiveInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to open archive %s", archivePath)).
			WithCause(err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return archiveInfo{}, invalidArchive(ref, err)
	}
	defer gz.Close()

	info := archiveInfo{}
	isDir := map[string]bool{}
	var order []string
	reader := tar.NewReader(gz)
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return archiveInfo{}, invalidArchive(ref, err)
		}
		name, err := cleanMemberName(ref, header.Name)
		if err != nil {
			return archiveInfo{}, err
		}
		if name == "" {
			continue
		}
		info.totalSize += header.Size

		top, rest, _ := strings.Cut(name, "/")
		if _, seen := isDir[top]; !seen {
			isDir[top] = false
			order = append(order, top)
		}
		if rest != "" || header.Typeflag == tar.TypeDir {
			isDir[top] = true
		}
	}
	for _, top := range order {
		if isDir[top] {
			info.topDirs = append(info.topDirs, top)
		}
	}
	return info, nil
}

// discoverRoot applies the declared subdirectory, or the exactly-one
// top-level directory rule when none was declared. Never guesses.
func discoverRoot(ref string, info archiveInfo, subdirectory string) (string, error) {
	if subdirectory != "" {
		for _, top := range info.topDirs {
			if top == subdirectory {
				return subdirectory, nil
			}
		}
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("subdirectory %s not found at the top level of %s", subdirectory, ref))
	}
	if len(info.topDirs) != 1 {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("archive %s must contain exactly one top-level directory, found %d", ref, len(info.topDirs)))
	}
	return info.topDirs[0], nil
}

// stageExtract unpacks the archive into a fresh private directory under
// parent and returns it. A failed extraction removes the partial tree.
func stageExtract(ref string, archivePath string, parent string) (string, error) {
	staging, err := os.MkdirTemp(parent, "quarry-stage-")
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create staging directory").
			WithCause(err)
	}
	if err := extractInto(ref, archivePath, staging); err != nil {
		_ = os.RemoveAll(staging)
		return "", err
	}
	return staging, nil
}

func extractInto(ref string, archivePath string, staging string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to open archive %s", archivePath)).
			WithCause(err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return invalidArchive(ref, err)
	}
	defer gz.Close()

	reader := tar.NewReader(gz)
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return invalidArchive(ref, err)
		}
		name, err := cleanMemberName(ref, header.Name)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}
		target := filepath.Join(staging, filepath.FromSlash(name))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return extractFailed(ref, name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return extractFailed(ref, name, err)
			}
			mode := header.FileInfo().Mode().Perm()
			if mode == 0 {
				mode = 0o644
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
			if err != nil {
				return extractFailed(ref, name, err)
			}
			if _, err := io.Copy(out, reader); err != nil {
				out.Close()
				return extractFailed(ref, name, err)
			}
			if err := out.Close(); err != nil {
				return extractFailed(ref, name, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return extractFailed(ref, name, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return extractFailed(ref, name, err)
			}
		default:
			// Hard links, devices and the like have no place in a
			// package archive.
			continue
		}
	}
}

func invalidArchive(ref string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("%s is not a valid gzipped tar archive", ref)).
		WithCause(cause)
}

func extractFailed(ref string, member string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("failed to extract %s from %s", member, ref)).
		WithCause(cause)
}

// cleanMemberName normalizes one member path and rejects entries that
// would land outside the extraction root.
func cleanMemberName(ref string, raw string) (string, error) {
	name := path.Clean(raw)
	if name == "." || name == "" {
		return "", nil
	}
	if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("archive %s member %s escapes the extraction root", ref, raw))
	}
	return name, nil
}
