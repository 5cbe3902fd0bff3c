package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/semmidev/arxivsync/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLocalStorage(t *testing.T) {
	Convey("Given a LocalStorage", t, func() {
		tempDir, err := os.MkdirTemp("", "local_storage_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		ctx := context.Background()

		Convey("NewLocal", func() {
			Convey("When creating with non-existent path", func() {
				newPath := filepath.Join(tempDir, "new", "nested", "dir")
				storage, err := NewLocal(newPath)

				Convey("It should create directory and succeed", func() {
					So(err, ShouldBeNil)
					So(storage.basePath, ShouldEqual, newPath)

					info, err := os.Stat(newPath)
					So(err, ShouldBeNil)
					So(info.IsDir(), ShouldBeTrue)
				})
			})
		})

		Convey("Put and Exists", func() {
			storage, _ := NewLocal(tempDir)
			key := "arxiv-papers/2025/01/02/2501.00001.pdf"

			Convey("When the key has not been written", func() {
				ok, err := storage.Exists(ctx, key)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})

			Convey("When an object is put", func() {
				err := storage.Put(ctx, domain.PutObject{
					Key:         key,
					Body:        []byte("%PDF-1.7"),
					ContentType: "application/pdf",
					Metadata:    map[string]string{"arxiv-id": "2501.00001", "title": "Agents"},
				})
				So(err, ShouldBeNil)

				Convey("It should exist with its body and metadata", func() {
					ok, err := storage.Exists(ctx, key)
					So(err, ShouldBeNil)
					So(ok, ShouldBeTrue)

					content, err := os.ReadFile(storage.GetPath(key))
					So(err, ShouldBeNil)
					So(string(content), ShouldEqual, "%PDF-1.7")

					contentType, meta, err := storage.Metadata(key)
					So(err, ShouldBeNil)
					So(contentType, ShouldEqual, "application/pdf")
					So(meta["arxiv-id"], ShouldEqual, "2501.00001")
				})
			})

			Convey("When the key uses the sidecar suffix", func() {
				err := storage.Put(ctx, domain.PutObject{Key: "x.meta.json"})
				So(err, ShouldNotBeNil)
			})
		})

		Convey("WalkPages", func() {
			storage, _ := NewLocal(tempDir)
			for _, key := range []string{"a/1", "a/2", "a/3", "b/1"} {
				So(storage.Put(ctx, domain.PutObject{Key: key, Body: []byte("x")}), ShouldBeNil)
			}

			Convey("When listing a prefix in pages of two", func() {
				var pages [][]string
				err := storage.WalkPages(ctx, "a/", 2, func(page []domain.StoredObject) error {
					var keys []string
					for _, obj := range page {
						keys = append(keys, obj.Key)
					}
					pages = append(pages, keys)
					return nil
				})

				Convey("It should page in key order and skip sidecars", func() {
					So(err, ShouldBeNil)
					So(pages, ShouldResemble, [][]string{{"a/1", "a/2"}, {"a/3"}})
				})
			})

			Convey("When a sibling directory sorts between path segments", func() {
				So(storage.Put(ctx, domain.PutObject{Key: "a-b/x", Body: []byte("x")}), ShouldBeNil)

				var keys []string
				err := storage.WalkPages(ctx, "a", 1000, func(page []domain.StoredObject) error {
					for _, obj := range page {
						keys = append(keys, obj.Key)
					}
					return nil
				})

				Convey("It should use plain string order across directories", func() {
					So(err, ShouldBeNil)
					So(keys, ShouldResemble, []string{"a-b/x", "a/1", "a/2", "a/3"})
				})
			})

			Convey("When nothing matches the prefix", func() {
				calls := 0
				var got []domain.StoredObject
				err := storage.WalkPages(ctx, "zzz/", 2, func(page []domain.StoredObject) error {
					calls++
					got = page
					return nil
				})

				Convey("It should deliver a single empty page", func() {
					So(err, ShouldBeNil)
					So(calls, ShouldEqual, 1)
					So(got, ShouldBeEmpty)
				})
			})

			Convey("It should report modification times", func() {
				old := time.Now().Add(-10 * 24 * time.Hour)
				So(os.Chtimes(storage.GetPath("b/1"), old, old), ShouldBeNil)

				var obj domain.StoredObject
				storage.WalkPages(ctx, "b/", 10, func(page []domain.StoredObject) error {
					obj = page[0]
					return nil
				})
				So(obj.LastModified.Before(time.Now().Add(-9*24*time.Hour)), ShouldBeTrue)
			})
		})

		Convey("DeleteBatch", func() {
			storage, _ := NewLocal(tempDir)
			So(storage.Put(ctx, domain.PutObject{Key: "a/1", Body: []byte("x")}), ShouldBeNil)

			Convey("When deleting an existing and a missing key", func() {
				deleted, failed, err := storage.DeleteBatch(ctx, []string{"a/1", "a/missing"})

				Convey("It should report each key separately", func() {
					So(err, ShouldBeNil)
					So(deleted, ShouldResemble, []string{"a/1"})
					So(failed, ShouldHaveLength, 1)
					So(failed[0].Key, ShouldEqual, "a/missing")

					_, err := os.Stat(storage.GetPath("a/1") + metaSuffix)
					So(os.IsNotExist(err), ShouldBeTrue)
				})
			})
		})
	})
}
