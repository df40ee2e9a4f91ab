package utils

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
	"lukechampine.com/blake3"
)

const archiveContentType = "application/x-msgpack+lz4"

// EncodeArchive packs v with msgpack and compresses it with lz4. The returned
// checksum is the hex blake3 hash of the compressed blob.
func EncodeArchive(v interface{}) ([]byte, string, error) {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode archive: %w", err)
	}
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, "", fmt.Errorf("failed to compress archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to compress archive: %w", err)
	}
	out := buf.Bytes()
	return out, Checksum(out), nil
}

// DecodeArchive reverses EncodeArchive into v.
func DecodeArchive(blob []byte, v interface{}) error {
	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(blob)))
	if err != nil {
		return fmt.Errorf("failed to decompress archive: %w", err)
	}
	if err := msgpack.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode archive: %w", err)
	}
	return nil
}

func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// StoreArchive uploads blob to R2 when it is configured, otherwise to the
// local archive directory. It returns where the blob can be found.
func StoreArchive(ctx context.Context, key string, blob []byte) (string, error) {
	if R2Enabled() {
		return UploadBytesToR2(ctx, key, blob, archiveContentType)
	}
	return SaveArchiveFile(key, blob)
}

// LoadArchive fetches a blob stored by StoreArchive and checks it against sum.
func LoadArchive(ctx context.Context, key, sum string) ([]byte, error) {
	var (
		blob []byte
		err  error
	)
	if R2Enabled() {
		blob, err = DownloadBytesFromR2(ctx, key)
	} else {
		blob, err = ReadArchiveFile(key)
	}
	if err != nil {
		return nil, err
	}
	if sum != "" && Checksum(blob) != sum {
		return nil, fmt.Errorf("archive %s failed checksum", key)
	}
	return blob, nil
}
