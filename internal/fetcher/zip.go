package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"

	"github.com/rotisserie/eris"
)

// OpenZIPMember opens the named file inside a ZIP archive as a stream. The
// member is decompressed on the fly, never extracted to disk. Matching is on
// the exact name first, then on the base name so "dump/cities15000.txt"
// matches "cities15000.txt". Closing the returned reader closes the archive.
func OpenZIPMember(zipPath, member string) (io.ReadCloser, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}

	f := findMember(r.File, member)
	if f == nil {
		_ = r.Close()
		return nil, eris.Errorf("zip: file %q not found in archive", member)
	}

	rc, err := f.Open()
	if err != nil {
		_ = r.Close()
		return nil, eris.Wrapf(err, "zip: open entry %s", f.Name)
	}

	return &zipMemberReader{ReadCloser: rc, archive: r}, nil
}

func findMember(files []*zip.File, member string) *zip.File {
	for _, f := range files {
		if f.Name == member {
			return f
		}
	}
	for _, f := range files {
		if !f.FileInfo().IsDir() && path.Base(f.Name) == member {
			return f
		}
	}
	return nil
}

type zipMemberReader struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (z *zipMemberReader) Close() error {
	entryErr := z.ReadCloser.Close()
	archiveErr := z.archive.Close()
	if entryErr != nil {
		return eris.Wrap(entryErr, "zip: close entry")
	}
	return eris.Wrap(archiveErr, "zip: close archive")
}

// OpenSource opens a local source file: the named ZIP member when member is
// set, otherwise the file itself.
func OpenSource(localPath, member string) (io.ReadCloser, error) {
	if member != "" {
		return OpenZIPMember(localPath, member)
	}
	f, err := os.Open(localPath)
	if err != nil {
		return nil, eris.Wrap(err, "open source file")
	}
	return f, nil
}
