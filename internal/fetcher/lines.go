package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MaxLineSize bounds a single line. GeoNames rows carry a comma-joined
// alternate-names column that can run to several kilobytes.
const MaxLineSize = 1 << 20

// ctxCheckEvery is how many lines are read between context checks.
const ctxCheckEvery = 4096

// ScanLines calls fn with each line of r, in order, without buffering the
// stream. Line terminators (\n or \r\n) are stripped. Lines longer than
// MaxLineSize are read through and dropped without calling fn; the number
// dropped is returned. It stops with an error on a read failure or when ctx
// is done.
func ScanLines(ctx context.Context, r io.Reader, fn func(line string)) (int, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var (
		buf      []byte
		n        int
		dropped  int
		overlong bool
	)
	for {
		if n%ctxCheckEvery == 0 && ctx.Err() != nil {
			return dropped, eris.Wrap(ctx.Err(), "lines: context cancelled")
		}

		chunk, err := br.ReadSlice('\n')
		if !overlong {
			if len(buf)+len(chunk) > MaxLineSize+2 {
				overlong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err != nil && !errors.Is(err, io.EOF):
			return dropped, eris.Wrapf(err, "lines: read after line %d", n)
		}

		eof := err != nil
		if eof && len(buf) == 0 && !overlong {
			return dropped, nil
		}

		n++
		if overlong {
			dropped++
			zap.L().Debug("lines: dropped over-long line", zap.Int("line", n))
		} else {
			line := bytes.TrimSuffix(buf, []byte("\n"))
			line = bytes.TrimSuffix(line, []byte("\r"))
			if len(line) <= MaxLineSize {
				fn(string(line))
			} else {
				dropped++
			}
		}
		buf = buf[:0]
		overlong = false

		if eof {
			return dropped, nil
		}
	}
}
