package compressor

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func writeGzip(path string, content []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		return err
	}
	if _, err := w.Write(content); err != nil {
		return err
	}
	return w.Close()
}

func TestGzipDecompressor(t *testing.T) {
	Convey("Given a GzipDecompressor", t, func() {
		decompressor := NewGzip()
		dir, err := os.MkdirTemp("", "gzip_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		Convey("When decompressing a valid gzip file", func() {
			inputContent := []byte("This is a test content for decompression")
			source := filepath.Join(dir, "dump.sql.gz")
			So(writeGzip(source, inputContent), ShouldBeNil)
			output := filepath.Join(dir, "dump.sql")

			err := decompressor.Decompress(source, output)

			Convey("It should decompress successfully", func() {
				So(err, ShouldBeNil)
				decompressed, err := os.ReadFile(output)
				So(err, ShouldBeNil)
				So(decompressed, ShouldResemble, inputContent)
			})
		})

		Convey("When the source file does not exist", func() {
			err := decompressor.Decompress(filepath.Join(dir, "nonexistent.gz"), filepath.Join(dir, "out"))

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to open source file")
			})
		})

		Convey("When the source file is not a valid gzip file", func() {
			invalid := filepath.Join(dir, "plain.gz")
			So(os.WriteFile(invalid, []byte("not a gzip file"), 0644), ShouldBeNil)
			output := filepath.Join(dir, "plain")

			err := decompressor.Decompress(invalid, output)

			Convey("It should return an error and write nothing", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to create gzip reader")
				_, statErr := os.Stat(output)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When the destination directory does not exist", func() {
			source := filepath.Join(dir, "dump.sql.gz")
			So(writeGzip(source, []byte("test content")), ShouldBeNil)

			err := decompressor.Decompress(source, filepath.Join(dir, "missing", "dump.sql"))

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to create dest file")
			})
		})
	})
}
