package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	manifestItem = regexp.MustCompile(`<item\b[^>]*>`)
	itemID       = regexp.MustCompile(`\bid="([^"]+)"`)
	spineOpen    = regexp.MustCompile(`<spine\b[^>]*>`)
)

// navFirst rewrites the container at path so the navigation document is
// the first spine entry, ahead of the chapter. go-epub lists only sections
// in the spine.
func navFirst(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".spine-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := zip.NewWriter(tmp)
	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ".opf") {
			if err := w.Copy(f); err != nil {
				tmp.Close()
				return fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			tmp.Close()
			return err
		}
		opf, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			tmp.Close()
			return err
		}

		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
		if err != nil {
			tmp.Close()
			return err
		}
		if _, err := fw.Write(spineWithNav(opf)); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	r.Close()
	return os.Rename(tmp.Name(), path)
}

// spineWithNav inserts an itemref for the manifest's nav item at the start
// of the spine. The document is returned unchanged if there is no nav item
// or it is already in the spine.
func spineWithNav(opf []byte) []byte {
	var navID string
	for _, item := range manifestItem.FindAll(opf, -1) {
		if !bytes.Contains(item, []byte(`properties="nav"`)) {
			continue
		}
		if m := itemID.FindSubmatch(item); m != nil {
			navID = string(m[1])
			break
		}
	}
	if navID == "" {
		return opf
	}

	ref := []byte(`<itemref idref="` + navID + `"`)
	if bytes.Contains(opf, ref) {
		return opf
	}
	loc := spineOpen.FindIndex(opf)
	if loc == nil {
		return opf
	}

	out := make([]byte, 0, len(opf)+len(ref)+16)
	out = append(out, opf[:loc[1]]...)
	out = append(out, ref...)
	out = append(out, []byte(`></itemref>`)...)
	out = append(out, opf[loc[1]:]...)
	return out
}
