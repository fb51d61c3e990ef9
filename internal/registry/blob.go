package registry

import (
	"io"
	"os"
	"path/filepath"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	godigest "github.com/opencontainers/go-digest"
)

// writeBlobBytes writes data to destDir/blobs/sha256/<hex> and returns
// its digest.
func writeBlobBytes(destDir string, data []byte) (godigest.Digest, error) {
	dig := godigest.FromBytes(data)
	path := filepath.Join(destDir, "blobs", dig.Algorithm().String(), dig.Hex())
	if _, err := os.Stat(path); err == nil {
		return dig, nil // already present
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return dig, nil
}

// writeLayerBlob streams a layer's compressed content to
// destDir/blobs/<alg>/<hex>, named after the layer's own digest. A
// file already present at that path is left as is; no digest check is
// done on it here.
func writeLayerBlob(destDir string, layer v1.Layer) error {
	dig, err := layer.Digest()
	if err != nil {
		return err
	}
	dir := filepath.Join(destDir, "blobs", dig.Algorithm)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, dig.Hex)
	if _, err := os.Stat(path); err == nil {
		return nil // already present
	}

	rc, err := layer.Compressed()
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp := path + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
