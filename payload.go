package doro

import (
	"mime"
	"os"
	"path/filepath"
)

// A Payload names a local file to attach to an object. The file is
// opened, streamed, and closed during exactly one request; a Payload
// may be reused across calls, and each call re-opens the file.
type Payload struct {
	// Name the attachment will have on the server.
	Name string
	// Path of the local file to upload.
	Path string
	// MediaType declared for the attachment.
	MediaType string
}

// NewPayload builds a Payload for the file at path. The file must
// exist. If mediaType is empty it is sniffed from the file extension,
// falling back to application/octet-stream.
func NewPayload(name, path, mediaType string) (Payload, error) {
	if name == "" {
		return Payload{}, usageErrorf("payload needs a name")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Payload{}, err
	}
	if info.IsDir() {
		return Payload{}, usageErrorf("payload %s: %s is a directory", name, path)
	}
	if mediaType == "" {
		mediaType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return Payload{Name: name, Path: path, MediaType: mediaType}, nil
}

func (p Payload) open() (*os.File, error) {
	return os.Open(p.Path)
}

// A PayloadInfo describes an attachment stored on the server, as
// reported in an object's full record.
type PayloadInfo struct {
	Name      string
	MediaType string
	Filename  string
	Size      int64
}
