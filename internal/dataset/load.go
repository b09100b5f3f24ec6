package dataset

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/chessnnue/nnue769/internal/domain"
)

const (
	chunkSize    = 4096
	maxRowLength = 1024 * 1024
)

type rowChunk struct {
	index   int
	lines   []string
	tooLong int // rows dropped for exceeding maxRowLength
}

type source struct {
	io.Reader
	closers []io.Closer
}

func (s *source) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if e := s.closers[i].Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// openSource opens plain, .gz and .zst corpora.
func openSource(path string) (*source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.SourceUnavailableError{Path: path, Err: err}
	}
	switch filepath.Ext(path) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &domain.SourceUnavailableError{Path: path, Err: err}
		}
		return &source{Reader: zr, closers: []io.Closer{f, zr}}, nil
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &domain.SourceUnavailableError{Path: path, Err: err}
		}
		var rc = zr.IOReadCloser()
		return &source{Reader: rc, closers: []io.Closer{f, rc}}, nil
	default:
		return &source{Reader: f, closers: []io.Closer{f}}, nil
	}
}

// rowReader reads newline separated rows of any length. Rows longer than
// maxRowLength are consumed and reported through TooLong instead of Text.
type rowReader struct {
	r       *bufio.Reader
	line    []byte
	tooLong bool
	err     error
}

func newRowReader(r io.Reader) *rowReader {
	return &rowReader{r: bufio.NewReaderSize(r, 64*1024)}
}

func (rr *rowReader) Scan() bool {
	rr.line = rr.line[:0]
	rr.tooLong = false
	var started bool
	for {
		chunk, isPrefix, err := rr.r.ReadLine()
		if err != nil {
			if err != io.EOF {
				rr.err = err
			}
			return started
		}
		started = true
		if !rr.tooLong {
			if len(rr.line)+len(chunk) > maxRowLength {
				rr.tooLong = true
				rr.line = rr.line[:0]
			} else {
				rr.line = append(rr.line, chunk...)
			}
		}
		if !isPrefix {
			return true
		}
	}
}

func (rr *rowReader) Text() string  { return string(rr.line) }
func (rr *rowReader) TooLong() bool { return rr.tooLong }
func (rr *rowReader) Err() error    { return rr.err }

func countRows(path string) (int, error) {
	src, err := openSource(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	var count int
	var rows = newRowReader(src)
	for rows.Scan() {
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, &domain.SourceUnavailableError{Path: path, Err: err}
	}
	return count, nil
}

// readRows sends at most maxRows lines in chunks. Lines past the cap are
// never read.
func readRows(
	ctx context.Context,
	cfg Config,
	total int,
	chunks chan<- rowChunk,
) error {
	src, err := openSource(cfg.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	var send = func(chunk rowChunk) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunks <- chunk:
			return nil
		}
	}

	var rows int
	var chunk = rowChunk{lines: make([]string, 0, chunkSize)}
	var reader = newRowReader(src)
	for (cfg.MaxRows == 0 || rows < cfg.MaxRows) && reader.Scan() {
		if reader.TooLong() {
			chunk.tooLong++
		} else {
			chunk.lines = append(chunk.lines, reader.Text())
		}
		rows++
		if cfg.ProgressEvery != 0 && rows%cfg.ProgressEvery == 0 {
			log.Println("loadDataset",
				"read", humanize.Comma(int64(rows)),
				"of", humanize.Comma(int64(total)))
		}
		if len(chunk.lines)+chunk.tooLong == chunkSize {
			if err := send(chunk); err != nil {
				return err
			}
			chunk = rowChunk{index: chunk.index + 1, lines: make([]string, 0, chunkSize)}
		}
	}
	if err := reader.Err(); err != nil {
		return &domain.SourceUnavailableError{Path: cfg.Path, Err: err}
	}
	if len(chunk.lines)+chunk.tooLong != 0 {
		return send(chunk)
	}
	return nil
}
