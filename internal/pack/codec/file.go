package codec

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"parkourcap.ai/internal/capture"
	"parkourcap.ai/internal/pack"
)

// WriteFile packs windows to path with the given backend, zstd-compressed
// when the path ends in .zst. The artifact is staged to a temporary file
// and renamed into place only after a clean close, so a failed encode
// leaves nothing that looks valid.
func WriteFile(path string, backend Backend, sess capture.Session, wins []pack.EncodedWindow) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("codec: create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	bw := bufio.NewWriterSize(f, 128*1024)
	var out io.Writer = bw
	sink := func() error { return bw.Flush() }
	if strings.HasSuffix(path, ".zst") {
		zw, zerr := zstd.NewWriter(bw, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zerr != nil {
			err = fmt.Errorf("codec: zstd writer: %w", zerr)
			return err
		}
		out = zw
		sink = func() error {
			if err := zw.Close(); err != nil {
				return err
			}
			return bw.Flush()
		}
	}

	if err = backend.Pack(out, sess, wins); err != nil {
		return fmt.Errorf("codec: pack %s: %w", path, err)
	}
	if err = sink(); err != nil {
		return fmt.Errorf("codec: flush %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("codec: close %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("codec: rename %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes a binary artifact from path, transparently
// decompressing .zst files.
func ReadFile(path string, logger *log.Logger) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("codec: read %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return Result{}, fmt.Errorf("codec: zstd reader: %w", err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return Result{}, fmt.Errorf("codec: decompress %s: %w", path, err)
		}
	}
	res, err := Decode(data, logger)
	if err != nil {
		return Result{}, fmt.Errorf("codec: decode %s: %w", path, err)
	}
	return res, nil
}
