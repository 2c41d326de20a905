package logging

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// archiveLayout names rotated files dya.<stamp>.zst so that the data dir
// cleanup counts them.
const archiveLayout = "20060102-150405"

// sinkConfig is read from the zstd:// URL query: ?level=fastest&max-size=4MiB.
type sinkConfig struct {
	path    string
	level   zstd.EncoderLevel
	maxSize uint64
}

func parseSinkURL(u *url.URL) (sinkConfig, error) {
	cfg := sinkConfig{path: u.Path, level: zstd.SpeedDefault}
	if cfg.path == "" {
		return cfg, errors.New("zstd sink needs a file path")
	}

	q := u.Query()
	if name := q.Get("level"); name != "" {
		ok, level := zstd.EncoderLevelFromString(name)
		if !ok {
			return cfg, fmt.Errorf("unknown zstd level %q", name)
		}
		cfg.level = level
	}
	if size := q.Get("max-size"); size != "" {
		n, err := humanize.ParseBytes(size)
		if err != nil {
			return cfg, fmt.Errorf("invalid max-size %q: %w", size, err)
		}
		cfg.maxSize = n
	}
	return cfg, nil
}

func sinkURL(path string, maxSize uint64) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: SinkScheme, Path: filepath.ToSlash(path)}
	if maxSize > 0 {
		u.RawQuery = url.Values{"max-size": {strconv.FormatUint(maxSize, 10)}}.Encode()
	}
	return u.String()
}

// newCompressedSink appends to the log file when it holds complete zstd
// frames. A file past max-size is archived first, and a file that does not
// decode, such as one cut short by a crash, is truncated.
func newCompressedSink(u *url.URL) (zap.Sink, error) {
	cfg, err := parseSinkURL(u)
	if err != nil {
		return nil, err
	}

	flags := os.O_CREATE | os.O_WRONLY
	if info, err := os.Stat(cfg.path); err == nil && info.Size() > 0 {
		switch {
		case cfg.maxSize > 0 && uint64(info.Size()) >= cfg.maxSize:
			if err := os.Rename(cfg.path, archivePath(cfg.path, info.ModTime())); err != nil {
				return nil, fmt.Errorf("failed to archive log file: %w", err)
			}
		case isValidZstdFile(cfg.path):
			flags |= os.O_APPEND
		default:
			flags |= os.O_TRUNC
		}
	}

	file, err := os.OpenFile(cfg.path, flags, 0644)
	if err != nil {
		return nil, err
	}

	encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(cfg.level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &compressedSink{file: file, encoder: encoder}, nil
}

// archivePath turns dir/dya.zst into dir/dya.<stamp>.zst.
func archivePath(path string, at time.Time) string {
	dir, name := filepath.Split(path)
	ext := filepath.Ext(name)
	return filepath.Join(dir, strings.TrimSuffix(name, ext)+"."+at.Format(archiveLayout)+ext)
}

// isValidZstdFile reports whether the whole file decodes as zstd frames.
func isValidZstdFile(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer func() {
		_ = file.Close()
	}()

	head := make([]byte, len(zstdMagic))
	if _, err := io.ReadFull(file, head); err != nil || string(head) != string(zstdMagic) {
		return false
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return false
	}

	dec, err := zstd.NewReader(file, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return false
	}
	defer dec.Close()

	_, err = io.Copy(io.Discard, dec)
	return err == nil
}

// compressedSink writes one zstd frame per Close; Sync flushes a block so
// entries reach the disk while the session runs.
type compressedSink struct {
	file    *os.File
	encoder *zstd.Encoder
}

// Write reports len(p) on success, not the compressed size.
func (s *compressedSink) Write(p []byte) (int, error) {
	if _, err := s.encoder.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *compressedSink) Sync() error {
	if err := s.encoder.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *compressedSink) Close() error {
	return errors.Join(s.encoder.Close(), s.file.Close())
}
