package codec

import (
	"bytes"
	"compress/zlib"
	"io"
)

// zlibChunkSize mirrors the original implementation's 16 KiB inflate/deflate
// staging buffer; compress/zlib does its own internal buffering, but reading
// in fixed steps keeps the memory profile bounded and predictable.
const zlibChunkSize = 16384

// Inflate decompresses a single zlib stream from src into dst, which the
// caller must size appropriately (consumers pass a sub-slice of the raster
// arena). It returns the number of bytes written.
func Inflate(dst []byte, src []byte) (int, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, NewError(General, "inflate: %v", err)
	}
	defer r.Close()

	total := 0
	buf := make([]byte, zlibChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if total+n > len(dst) {
				return total, NewError(Memory, "inflate: destination too small (%d bytes)", len(dst))
			}
			copy(dst[total:total+n], buf[:n])
			total += n
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, NewError(General, "inflate: %v", err)
		}
	}
}

// Deflate compresses src into a complete zlib stream at the given
// compression level (zlib.DefaultCompression is a reasonable default,
// matching a single Z_FINISH call in the original C implementation).
func Deflate(src []byte, level int) ([]byte, error) {
	var out bytes.Buffer
	w, err := zlib.NewWriterLevel(&out, level)
	if err != nil {
		return nil, NewError(General, "deflate: %v", err)
	}
	if _, err := w.Write(src); err != nil {
		w.Close()
		return nil, NewError(General, "deflate: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, NewError(General, "deflate: %v", err)
	}
	return out.Bytes(), nil
}
