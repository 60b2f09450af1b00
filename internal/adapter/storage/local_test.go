package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLocalDownloads(t *testing.T) {
	Convey("Given a downloads directory", t, func() {
		tempDir, err := os.MkdirTemp("", "local_downloads_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)
		ctx := context.Background()

		Convey("NewLocal", func() {
			Convey("When creating with non-existent path", func() {
				newPath := filepath.Join(tempDir, "new", "nested", "dir")
				downloads, err := NewLocal(newPath)

				Convey("It should create directory and succeed", func() {
					So(err, ShouldBeNil)
					So(downloads.basePath, ShouldEqual, newPath)

					info, err := os.Stat(newPath)
					So(err, ShouldBeNil)
					So(info.IsDir(), ShouldBeTrue)
				})
			})
		})

		Convey("Save method", func() {
			downloads, _ := NewLocal(tempDir)

			Convey("When saving a stream", func() {
				path, err := downloads.Save(ctx, "orders_full_20260102_030405.sql.gz", strings.NewReader("dump"))

				Convey("It should write the file and leave no partial file", func() {
					So(err, ShouldBeNil)
					So(path, ShouldEqual, filepath.Join(tempDir, "orders_full_20260102_030405.sql.gz"))

					content, err := os.ReadFile(path)
					So(err, ShouldBeNil)
					So(string(content), ShouldEqual, "dump")

					entries, _ := os.ReadDir(tempDir)
					So(len(entries), ShouldEqual, 1)
				})
			})

			Convey("When the name escapes the directory", func() {
				_, err := downloads.Save(ctx, "../escape.sql", strings.NewReader("x"))
				So(err, ShouldNotBeNil)
			})

			Convey("When the context is cancelled", func() {
				cancelled, cancel := context.WithCancel(ctx)
				cancel()
				_, err := downloads.Save(cancelled, "late.sql", strings.NewReader("x"))

				Convey("It should fail without creating the file", func() {
					So(err, ShouldNotBeNil)
					_, statErr := os.Stat(filepath.Join(tempDir, "late.sql"))
					So(os.IsNotExist(statErr), ShouldBeTrue)
				})
			})
		})

		Convey("List method", func() {
			downloads, _ := NewLocal(tempDir)
			os.WriteFile(filepath.Join(tempDir, "file1.sql"), []byte("test"), 0644)
			os.WriteFile(filepath.Join(tempDir, "file2.sql"), []byte("test"), 0644)
			os.WriteFile(filepath.Join(tempDir, ".partial-123"), []byte("test"), 0644)
			os.Mkdir(filepath.Join(tempDir, "subdir"), 0755)

			files, err := downloads.List(ctx)

			Convey("It should list only completed files", func() {
				So(err, ShouldBeNil)
				So(len(files), ShouldEqual, 2)
				So(files, ShouldContain, "file1.sql")
				So(files, ShouldContain, "file2.sql")
				So(files, ShouldNotContain, "subdir")
				So(files, ShouldNotContain, ".partial-123")
			})
		})

		Convey("Delete method", func() {
			downloads, _ := NewLocal(tempDir)

			Convey("When deleting existing file", func() {
				os.WriteFile(filepath.Join(tempDir, "delete_me.sql"), []byte("test"), 0644)
				err := downloads.Delete(ctx, "delete_me.sql")

				Convey("It should delete successfully", func() {
					So(err, ShouldBeNil)
					_, err := os.Stat(filepath.Join(tempDir, "delete_me.sql"))
					So(os.IsNotExist(err), ShouldBeTrue)
				})
			})

			Convey("When deleting non-existent file", func() {
				err := downloads.Delete(ctx, "nonexistent.sql")

				Convey("It should return error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to delete file")
				})
			})
		})

		Convey("GetOldFiles method", func() {
			downloads, _ := NewLocal(tempDir)

			oldFile := filepath.Join(tempDir, "old.sql")
			os.WriteFile(oldFile, []byte("test"), 0644)
			oldTime := time.Now().Add(-10 * 24 * time.Hour)
			os.Chtimes(oldFile, oldTime, oldTime)
			os.WriteFile(filepath.Join(tempDir, "new.sql"), []byte("test"), 0644)

			oldFiles, err := downloads.GetOldFiles(ctx, time.Now().Add(-7*24*time.Hour))

			Convey("It should return only old files", func() {
				So(err, ShouldBeNil)
				So(oldFiles, ShouldResemble, []string{"old.sql"})
			})
		})
	})
}
